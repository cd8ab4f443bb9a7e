// Package analysis provides audio decoding and track-level key analysis.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nzoschke/keylab/pkg/keydetect"
)

// TrackAnalysis represents the JSON output for an analyzed track.
type TrackAnalysis struct {
	File           string    `json:"file"`
	Duration       float64   `json:"duration"`
	DurationText   string    `json:"duration_text"`
	SampleRate     int       `json:"sample_rate"`
	SampleRateText string    `json:"sample_rate_text"`
	Key            string    `json:"key"`
	Correlation    float64   `json:"correlation,omitempty"`
	Chroma         []float64 `json:"chroma,omitempty"`
	Waveform       *Waveform `json:"waveform,omitempty"`
}

// Analyzer decodes tracks and estimates their key.
type Analyzer struct {
	detector     *keydetect.Detector
	pixelsPerSec int
	bars         int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithDetector replaces the default key detector.
func WithDetector(d *keydetect.Detector) Option {
	return func(a *Analyzer) { a.detector = d }
}

// WithWaveform sets waveform resolution. pixelsPerSec of 0 disables the waveform.
func WithWaveform(pixelsPerSec, bars int) Option {
	return func(a *Analyzer) {
		a.pixelsPerSec = pixelsPerSec
		a.bars = bars
	}
}

// New creates an Analyzer with the default detector and a 100 px/s waveform.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{pixelsPerSec: 100, bars: 200}
	for _, opt := range opts {
		opt(a)
	}

	if a.detector == nil {
		d, err := keydetect.New(keydetect.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("create detector: %w", err)
		}
		a.detector = d
	}
	return a, nil
}

// Detector returns the key detector in use.
func (a *Analyzer) Detector() *keydetect.Detector {
	return a.detector
}

// AnalyzeFile decodes and analyzes a single audio file.
func (a *Analyzer) AnalyzeFile(ctx context.Context, audioPath string) (*TrackAnalysis, error) {
	samples, sampleRate, err := LoadAudioMono(audioPath)
	if err != nil {
		return nil, fmt.Errorf("load audio: %w", err)
	}
	return a.AnalyzeSamples(ctx, filepath.Base(audioPath), samples, sampleRate)
}

// AnalyzeSamples analyzes decoded mono samples. Key detection runs on a
// background goroutine while the waveform is built.
func (a *Analyzer) AnalyzeSamples(ctx context.Context, name string, samples []float32, sampleRate int) (*TrackAnalysis, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", keydetect.ErrInvalidSampleRate, sampleRate)
	}

	pcm := make([]float64, len(samples))
	for i, s := range samples {
		pcm[i] = float64(s)
	}
	keyCh := DetectKeyAsync(ctx, a.detector, pcm, sampleRate)

	duration := float64(len(samples)) / float64(sampleRate)
	result := &TrackAnalysis{
		File:           name,
		Duration:       duration,
		DurationText:   FormatDuration(duration),
		SampleRate:     sampleRate,
		SampleRateText: FormatSampleRate(sampleRate),
	}

	if a.pixelsPerSec > 0 {
		result.Waveform = GenerateWaveform(samples, sampleRate, a.pixelsPerSec, a.bars)
	}

	key, err := WaitKey(ctx, keyCh)
	if err != nil {
		return nil, fmt.Errorf("detect key: %w", err)
	}
	result.Key = key.Label
	if key.Known {
		result.Correlation = key.Correlation
		result.Chroma = key.Chroma[:]
	}

	slog.Debug("analysis.AnalyzeSamples", "file", name, "key", result.Key, "frames", key.Frames)
	return result, nil
}

// AnalyzeDir recursively analyzes all audio files in a directory.
// For each audio file, it creates a corresponding .json sidecar file.
// If force is true, existing JSON files are overwritten.
func (a *Analyzer) AnalyzeDir(ctx context.Context, dir string, force bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !isDecodable(ext) {
			return nil
		}

		jsonPath := SidecarPath(path)
		if !force {
			if _, err := os.Stat(jsonPath); err == nil {
				fmt.Printf("Skipping %s (already analyzed)\n", filepath.Base(path))
				return nil
			}
		}

		fmt.Printf("Analyzing %s...\n", filepath.Base(path))

		analysis, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			fmt.Printf("  Error: %v\n", err)
			return nil // Continue with other files
		}

		if err := analysis.WriteJSON(jsonPath); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}

		fmt.Printf("  Duration: %s (%s)\n", analysis.DurationText, analysis.SampleRateText)
		fmt.Printf("  Key: %s\n", analysis.Key)
		return nil
	})
}

// SidecarPath returns the .json path stored next to an audio file.
func SidecarPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".json"
}

// IsAudioFile returns true if the extension is a known audio format, whether
// or not it can be decoded for analysis.
func IsAudioFile(ext string) bool {
	switch ext {
	case ".mp3", ".m4a", ".aac", ".wav", ".wave", ".flac", ".ogg", ".aiff":
		return true
	default:
		return false
	}
}

// WriteJSON writes the analysis to a JSON file.
func (ta *TrackAnalysis) WriteJSON(path string) error {
	data, err := json.MarshalIndent(ta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
