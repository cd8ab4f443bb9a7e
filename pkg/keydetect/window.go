package keydetect

import "math"

// SelectWindow returns the centered span of at most maxSeconds of audio,
// never less than one sample. Buffers shorter than the cap are returned
// whole, as are all buffers when maxSeconds is not positive. The result
// aliases samples.
func SelectWindow(samples []float64, sampleRate int, maxSeconds float64) []float64 {
	if maxSeconds <= 0 || sampleRate <= 0 {
		return samples
	}
	maxSamples := max(1, int(float64(sampleRate)*maxSeconds))
	if len(samples) <= maxSamples {
		return samples
	}

	start := max(0, (len(samples)-maxSamples)/2)
	end := min(len(samples), start+maxSamples)
	return samples[start:end]
}

// hannWindow generates a periodic Hann window: w[i] = 0.5 - 0.5*cos(2πi/N).
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size))
	}
	return w
}

// frames yields the start offset of every full frame in a window.
func frames(n, frameSize, hopSize int) []int {
	var offsets []int
	for offset := 0; offset+frameSize <= n; offset += hopSize {
		offsets = append(offsets, offset)
	}
	return offsets
}
