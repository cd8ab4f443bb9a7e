package keydetect

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PitchClasses is the number of semitones in an octave.
const PitchClasses = 12

// PitchClass maps a frequency to its nearest equal-tempered pitch class,
// 0 = C through 11 = B, with A4 = 440 Hz = MIDI 69.
func PitchClass(freq float64) int {
	midi := 12*math.Log2(freq/ReferencePitch) + ReferenceMIDI
	return ((int(math.Round(midi)) % PitchClasses) + PitchClasses) % PitchClasses
}

// BinPitchClasses maps each positive-frequency bin of a frameSize FFT to its
// pitch class, or -1 when the bin center lies outside [lo, hi] Hz.
// The mapping depends only on the bin index and sample rate.
func BinPitchClasses(frameSize, sampleRate int, lo, hi float64) []int {
	bins := make([]int, frameSize/2)
	for k := range bins {
		freq := float64(k) * float64(sampleRate) / float64(frameSize)
		if freq >= lo && freq <= hi {
			bins[k] = PitchClass(freq)
		} else {
			bins[k] = -1
		}
	}
	return bins
}

// Chroma is a 12-bin pitch-class energy histogram indexed from C.
type Chroma [PitchClasses]float64

// AccumulateFrame adds the spectral magnitude of every mapped bin to its
// pitch class. Bin 0 (DC) is skipped.
func (c *Chroma) AccumulateFrame(re, im []float64, bins []int) {
	for k := 1; k < len(bins); k++ {
		pc := bins[k]
		if pc < 0 {
			continue
		}
		c[pc] += math.Sqrt(re[k]*re[k] + im[k]*im[k])
	}
}

// Max returns the largest bin value.
func (c *Chroma) Max() float64 {
	return floats.Max(c[:])
}

// Normalize scales the histogram so its largest bin is 1. It reports false,
// leaving the histogram untouched, when every bin is zero.
func (c *Chroma) Normalize() bool {
	peak := c.Max()
	if peak == 0 {
		return false
	}
	floats.Scale(1/peak, c[:])
	return true
}

// Rotate returns the histogram re-indexed so that pitch class shift is bin 0.
func (c Chroma) Rotate(shift int) Chroma {
	var out Chroma
	for i := range out {
		out[i] = c[(i+shift)%PitchClasses]
	}
	return out
}
