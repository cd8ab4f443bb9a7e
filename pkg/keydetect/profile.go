package keydetect

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Krumhansl-Kessler tonal hierarchy profiles, indexed from the tonic.
var (
	MajorProfile = [PitchClasses]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	MinorProfile = [PitchClasses]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// NoteNames labels pitch classes using sharps.
var NoteNames = [PitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Mode is the tonal mode of a key.
type Mode int

const (
	Major Mode = iota
	Minor
)

func (m Mode) String() string {
	if m == Minor {
		return "Minor"
	}
	return "Major"
}

func (m Mode) profile() *[PitchClasses]float64 {
	if m == Minor {
		return &MinorProfile
	}
	return &MajorProfile
}

// Key is a tonic pitch class and a mode.
type Key struct {
	Tonic int  // Pitch class of the tonic, 0 = C
	Mode  Mode // Major or Minor
}

// Note returns the tonic's name.
func (k Key) Note() string {
	return NoteNames[k.Tonic]
}

func (k Key) String() string {
	return k.Note() + " " + k.Mode.String()
}

// Candidate is a key scored against a chroma vector.
type Candidate struct {
	Key         Key
	Correlation float64
}

// Pearson returns the Pearson correlation of x and y, or 0 when either
// input has zero variance.
func Pearson(x, y []float64) float64 {
	meanX := stat.Mean(x, nil)
	meanY := stat.Mean(y, nil)

	var num, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	denom := math.Sqrt(varX * varY)
	if denom == 0 {
		return 0
	}
	return num / denom
}

// Candidates scores all 24 keys. The order is tonic ascending from C with
// the major key before the minor key of the same tonic.
func Candidates(c Chroma) []Candidate {
	out := make([]Candidate, 0, 2*PitchClasses)
	for shift := range PitchClasses {
		rotated := c.Rotate(shift)
		for _, mode := range []Mode{Major, Minor} {
			out = append(out, Candidate{
				Key:         Key{Tonic: shift, Mode: mode},
				Correlation: Pearson(rotated[:], mode.profile()[:]),
			})
		}
	}
	return out
}

// BestKey returns the highest scoring candidate. Ties go to the candidate
// that comes first in Candidates order.
func BestKey(c Chroma) Candidate {
	best := Candidate{Correlation: math.Inf(-1)}
	for _, cand := range Candidates(c) {
		if cand.Correlation > best.Correlation {
			best = cand
		}
	}
	return best
}
