package keydetect

import (
	"fmt"
	"sync"
)

// maxCachedRates bounds the per-sample-rate bin tables a Detector keeps.
const maxCachedRates = 8

// Result describes one key analysis.
type Result struct {
	Label       string  // Key label such as "C Major", or Unknown
	Key         Key     // Best key; meaningful only when Known
	Known       bool    // False when the window had no usable energy
	Correlation float64 // Pearson correlation of the best key
	Chroma      Chroma  // Normalized chroma vector
	Frames      int     // Number of frames analysed
}

// Detector runs key analysis with a fixed configuration.
// It holds no per-call state and is safe for concurrent use.
type Detector struct {
	cfg    Config
	window []float64

	mu   sync.Mutex
	bins map[int][]int // sample rate -> bin pitch classes
}

// New creates a Detector for cfg.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Detector{
		cfg:    cfg,
		window: hannWindow(cfg.FrameSize),
		bins:   map[int][]int{},
	}, nil
}

var defaultDetector, _ = New(DefaultConfig())

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// pitchBins returns the bin to pitch-class table for sampleRate. Tables are
// read-only once built and shared between calls.
func (d *Detector) pitchBins(sampleRate int) []int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if bins, ok := d.bins[sampleRate]; ok {
		return bins
	}
	bins := BinPitchClasses(d.cfg.FrameSize, sampleRate, d.cfg.MinFrequency, d.cfg.MaxFrequency)
	if len(d.bins) < maxCachedRates {
		d.bins[sampleRate] = bins
	}
	return bins
}

// Analyze estimates the key of a mono signal. Signals that are empty,
// shorter than one frame, or silent in the analysis band yield a Result
// labelled Unknown and a nil error. A non-positive sampleRate returns
// ErrInvalidSampleRate.
func (d *Detector) Analyze(samples []float64, sampleRate int) (Result, error) {
	if sampleRate <= 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}

	unknown := Result{Label: Unknown}

	data := SelectWindow(samples, sampleRate, d.cfg.MaxWindow)
	offsets := frames(len(data), d.cfg.FrameSize, d.cfg.HopSize)
	if len(offsets) == 0 {
		return unknown, nil
	}

	bins := d.pitchBins(sampleRate)

	var chroma Chroma
	re := make([]float64, d.cfg.FrameSize)
	im := make([]float64, d.cfg.FrameSize)
	for _, offset := range offsets {
		for i, w := range d.window {
			re[i] = data[offset+i] * w
			im[i] = 0
		}
		Transform(re, im)
		chroma.AccumulateFrame(re, im, bins)
	}

	unknown.Frames = len(offsets)
	if !chroma.Normalize() {
		return unknown, nil
	}

	best := BestKey(chroma)
	return Result{
		Label:       best.Key.String(),
		Key:         best.Key,
		Known:       true,
		Correlation: best.Correlation,
		Chroma:      chroma,
		Frames:      len(offsets),
	}, nil
}

// Detect estimates the key of a mono signal with the default configuration
// and returns its label.
func Detect(samples []float64, sampleRate int) (string, error) {
	res, err := defaultDetector.Analyze(samples, sampleRate)
	if err != nil {
		return "", err
	}
	return res.Label, nil
}

// DetectFloat32 is Detect for decoders that produce float32 samples.
func DetectFloat32(samples []float32, sampleRate int) (string, error) {
	buf := make([]float64, len(samples))
	for i, s := range samples {
		buf[i] = float64(s)
	}
	return Detect(buf, sampleRate)
}
