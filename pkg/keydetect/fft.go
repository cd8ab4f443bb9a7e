package keydetect

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// FFT computes the forward DFT of (re, im) in place using the iterative
// radix-2 Cooley-Tukey algorithm. Both slices must share a power-of-two length.
func FFT(re, im []float64) {
	n := len(re)
	if len(im) != n {
		panic(fmt.Sprintf("keydetect: FFT length mismatch %d != %d", n, len(im)))
	}
	if !IsPowerOfTwo(n) {
		panic(fmt.Sprintf("keydetect: FFT length %d is not a power of two", n))
	}

	// Bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	// Butterflies
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		angle := -2 * math.Pi / float64(size)
		wRe, wIm := math.Cos(angle), math.Sin(angle)

		for start := 0; start < n; start += size {
			curRe, curIm := 1.0, 0.0
			for k := 0; k < half; k++ {
				a, b := start+k, start+k+half
				tRe := curRe*re[b] - curIm*im[b]
				tIm := curRe*im[b] + curIm*re[b]
				re[b] = re[a] - tRe
				im[b] = im[a] - tIm
				re[a] += tRe
				im[a] += tIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// Transform computes the forward DFT of (re, im) in place for any length.
// Power-of-two lengths use FFT; other lengths fall back to gonum's general
// complex transform.
func Transform(re, im []float64) {
	if IsPowerOfTwo(len(re)) {
		FFT(re, im)
		return
	}
	dft(re, im)
}

func dft(re, im []float64) {
	n := len(re)
	if len(im) != n {
		panic(fmt.Sprintf("keydetect: DFT length mismatch %d != %d", n, len(im)))
	}
	if n == 0 {
		return
	}

	seq := make([]complex128, n)
	for i := range seq {
		seq[i] = complex(re[i], im[i])
	}
	coeffs := fourier.NewCmplxFFT(n).Coefficients(nil, seq)
	for i, c := range coeffs {
		re[i] = real(c)
		im[i] = imag(c)
	}
}
