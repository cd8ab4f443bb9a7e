// Package keydetect estimates the musical key of a mono PCM signal.
//
// A centered window of the signal is cut into Hann-windowed frames, each
// frame is transformed with a radix-2 FFT, spectral magnitude inside the
// analysis band is folded into a 12-bin chroma vector, and the chroma is
// correlated against Krumhansl-Kessler major and minor profiles in all 12
// rotations. The best of the 24 candidates is reported as a label such as
// "A Minor", or Unknown when the window carries no energy in band.
package keydetect

import (
	"errors"
	"fmt"
)

const (
	// FrameSize is the FFT length in samples. Must be a power of two.
	FrameSize = 8192
	// HopSize is the distance between frame starts (half a frame).
	HopSize = FrameSize / 2
	// MinFrequency is the lowest bin center frequency accumulated, in Hz.
	MinFrequency = 60.0
	// MaxFrequency is the highest bin center frequency accumulated, in Hz.
	MaxFrequency = 4200.0
	// MaxWindowSeconds caps the analysed span, centered on the buffer midpoint.
	MaxWindowSeconds = 30.0

	// ReferencePitch anchors the pitch mapping: A4 in Hz.
	ReferencePitch = 440.0
	// ReferenceMIDI is the MIDI note number of ReferencePitch.
	ReferenceMIDI = 69

	// Unknown is returned when no key can be inferred.
	Unknown = "Unknown"
)

// ErrInvalidSampleRate is returned when the sample rate is not positive.
var ErrInvalidSampleRate = errors.New("sample rate must be positive")

// Config holds the tunable analysis parameters.
type Config struct {
	FrameSize    int     // FFT length in samples
	HopSize      int     // Samples between frame starts
	MinFrequency float64 // Lower edge of the analysis band in Hz
	MaxFrequency float64 // Upper edge of the analysis band in Hz
	MaxWindow    float64 // Longest analysed span in seconds
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		FrameSize:    FrameSize,
		HopSize:      HopSize,
		MinFrequency: MinFrequency,
		MaxFrequency: MaxFrequency,
		MaxWindow:    MaxWindowSeconds,
	}
}

// Validate reports whether the configuration can drive an analysis.
// Frame sizes that are not a power of two are accepted; they are
// transformed with the slower general DFT.
func (c Config) Validate() error {
	if c.FrameSize < 2 {
		return fmt.Errorf("frame size %d: must be at least 2", c.FrameSize)
	}
	if c.HopSize <= 0 {
		return fmt.Errorf("hop size %d: must be positive", c.HopSize)
	}
	if c.MinFrequency < 0 || c.MaxFrequency <= c.MinFrequency {
		return fmt.Errorf("frequency band [%g, %g]: invalid", c.MinFrequency, c.MaxFrequency)
	}
	if c.MaxWindow <= 0 {
		return fmt.Errorf("max window %gs: must be positive", c.MaxWindow)
	}
	return nil
}
