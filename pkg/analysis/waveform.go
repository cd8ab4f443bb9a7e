package analysis

import "math"

// Waveform contains downsampled waveform data for visualization.
type Waveform struct {
	PixelsPerSec int       `json:"pixels_per_sec"`
	Peaks        []float64 `json:"peaks"`
	Troughs      []float64 `json:"troughs"`
	Bars         []float64 `json:"bars,omitempty"` // Mean absolute amplitude per block, max = 1
}

// GenerateWaveform creates downsampled waveform data for visualization.
// pixelsPerSec controls the peak/trough resolution; bars is the number of
// normalized amplitude bars (0 to skip).
func GenerateWaveform(samples []float32, sampleRate, pixelsPerSec, bars int) *Waveform {
	samplesPerPixel := max(1, sampleRate/max(1, pixelsPerSec))
	numPixels := len(samples) / samplesPerPixel

	peaks := make([]float64, numPixels)
	troughs := make([]float64, numPixels)

	for i := range numPixels {
		start := i * samplesPerPixel
		end := min(start+samplesPerPixel, len(samples))

		maxVal := float32(-1.0)
		minVal := float32(1.0)
		for _, s := range samples[start:end] {
			maxVal = max(maxVal, s)
			minVal = min(minVal, s)
		}

		peaks[i] = float64(maxVal)
		troughs[i] = float64(minVal)
	}

	return &Waveform{
		PixelsPerSec: pixelsPerSec,
		Peaks:        peaks,
		Troughs:      troughs,
		Bars:         amplitudeBars(samples, bars),
	}
}

// amplitudeBars splits samples into n equal blocks and returns each block's
// mean absolute amplitude scaled so the loudest block is 1.
func amplitudeBars(samples []float32, n int) []float64 {
	if n <= 0 {
		return nil
	}
	blockSize := len(samples) / n
	if blockSize == 0 {
		return nil
	}

	bars := make([]float64, n)
	var loudest float64
	for i := range bars {
		var sum float64
		for _, s := range samples[i*blockSize : (i+1)*blockSize] {
			sum += math.Abs(float64(s))
		}
		bars[i] = sum / float64(blockSize)
		loudest = max(loudest, bars[i])
	}

	if loudest > 0 {
		for i := range bars {
			bars[i] /= loudest
		}
	}
	return bars
}
