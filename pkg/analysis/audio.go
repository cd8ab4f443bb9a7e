// Package analysis provides audio decoding and track-level key analysis.
// This file provides audio file loading and mono mixdown.
package analysis

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

var (
	// ErrUnsupportedFormat is returned for file extensions with no decoder.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrAudioTooShort is returned when a file decodes to no samples.
	ErrAudioTooShort = errors.New("audio too short")
)

// LoadAudioMono loads an audio file and returns mono float32 samples and sample rate.
func LoadAudioMono(path string) ([]float32, int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !isDecodable(ext) {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	return DecodeAudio(data, ext)
}

// DecodeAudio decodes an in-memory file with the given extension (".mp3", ".wav").
func DecodeAudio(data []byte, ext string) ([]float32, int, error) {
	var (
		samples    []float32
		sampleRate int
		err        error
	)
	switch strings.ToLower(ext) {
	case ".mp3":
		samples, sampleRate, err = decodeMP3Mono(data)
	case ".wav", ".wave":
		samples, sampleRate, err = decodeWAVMono(data)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, 0, err
	}
	if len(samples) == 0 {
		return nil, 0, ErrAudioTooShort
	}
	return samples, sampleRate, nil
}

func isDecodable(ext string) bool {
	switch ext {
	case ".mp3", ".wav", ".wave":
		return true
	default:
		return false
	}
}

// Additional samples that go-mp3 produces compared to browser decoders.
const goMP3DecoderDelay = 924

// Default encoder delay if we can't read it from the LAME header
const defaultEncoderDelay = 576

// mp3Delay returns the total leading samples to skip: LAME encoder delay
// (from the header) plus the go-mp3 decoder delay.
func mp3Delay(data []byte) int {
	return readLAMEEncoderDelay(data) + goMP3DecoderDelay
}

// readLAMEEncoderDelay reads the encoder delay from a LAME/Xing header if present.
func readLAMEEncoderDelay(data []byte) int {
	buf := data[:min(len(data), 4096)]
	if len(buf) < 200 {
		return defaultEncoderDelay
	}

	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	// 12 bits of encoder delay, 21 bytes past the marker
	delayOffset := lameIdx + 21
	if delayOffset+3 > len(buf) {
		return defaultEncoderDelay
	}

	b := buf[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)
	if delay > 4096 {
		return defaultEncoderDelay
	}

	return delay
}

// decodeMP3Mono decodes MP3 data into mono float32 samples.
func decodeMP3Mono(data []byte) ([]float32, int, error) {
	totalDelay := mp3Delay(data)

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	sampleRate := decoder.SampleRate()

	// 16-bit signed stereo interleaved
	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	numSamplePairs := len(pcmData) / 4
	samples := make([]float32, numSamplePairs)

	for i := range numSamplePairs {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcmData[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[offset+2:]))

		mono := (float32(left) + float32(right)) / 2.0
		samples[i] = mono / 32768.0
	}

	if len(samples) > totalDelay {
		samples = samples[totalDelay:]
	}

	return samples, sampleRate, nil
}
