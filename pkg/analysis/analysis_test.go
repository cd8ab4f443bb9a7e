package analysis

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nzoschke/keylab/pkg/keydetect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toFloat32(src []float64) []float32 {
	out := make([]float32, len(src))
	for i, s := range src {
		out[i] = float32(s)
	}
	return out
}

func TestAnalyzeSamples(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	samples := toFloat32(sine(440, 22050, 5))
	result, err := a.AnalyzeSamples(context.Background(), "a440.wav", samples, 22050)
	require.NoError(t, err)

	assert.Equal(t, "a440.wav", result.File)
	assert.InDelta(t, 5.0, result.Duration, 1e-9)
	assert.Equal(t, "0:05", result.DurationText)
	assert.Equal(t, "22.1 kHz", result.SampleRateText)
	assert.True(t, strings.HasPrefix(result.Key, "A "), result.Key)
	assert.Len(t, result.Chroma, keydetect.PitchClasses)
	require.NotNil(t, result.Waveform)
	assert.Len(t, result.Waveform.Peaks, 110250/220)
	assert.Len(t, result.Waveform.Bars, 200)
}

func TestAnalyzeSamples_Silence(t *testing.T) {
	a, err := New(WithWaveform(0, 0))
	require.NoError(t, err)

	result, err := a.AnalyzeSamples(context.Background(), "quiet.wav", make([]float32, 44100*2), 44100)
	require.NoError(t, err)

	assert.Equal(t, keydetect.Unknown, result.Key)
	assert.Nil(t, result.Chroma)
	assert.Nil(t, result.Waveform)
}

func TestAnalyzeSamples_InvalidSampleRate(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	_, err = a.AnalyzeSamples(context.Background(), "x", make([]float32, 10), 0)
	assert.ErrorIs(t, err, keydetect.ErrInvalidSampleRate)
}

func TestAnalyzeSamples_CustomDetector(t *testing.T) {
	cfg := keydetect.DefaultConfig()
	cfg.FrameSize = 2048
	cfg.HopSize = 1024
	d, err := keydetect.New(cfg)
	require.NoError(t, err)

	a, err := New(WithDetector(d), WithWaveform(10, 0))
	require.NoError(t, err)
	assert.Same(t, d, a.Detector())

	// One second at 8 kHz holds a few 2048-sample frames.
	result, err := a.AnalyzeSamples(context.Background(), "short", toFloat32(sine(440, 8000, 1)), 8000)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Key, "A "), result.Key)
	assert.Nil(t, result.Waveform.Bars)
}

func TestAnalyzeDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "album")
	require.NoError(t, os.MkdirAll(sub, 0755))

	wav := encodeWAV(t, 8000, 16, false, sine(440, 8000, 3))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "01 - tone.wav"), wav, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "broken.wav"), []byte("nope"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("skip"), 0644))

	a, err := New()
	require.NoError(t, err)
	require.NoError(t, a.AnalyzeDir(context.Background(), dir, false))

	data, err := os.ReadFile(filepath.Join(sub, "01 - tone.json"))
	require.NoError(t, err)

	var got TrackAnalysis
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "01 - tone.wav", got.File)
	assert.Equal(t, 8000, got.SampleRate)
	assert.True(t, strings.HasPrefix(got.Key, "A "), got.Key)

	assert.NoFileExists(t, filepath.Join(sub, "broken.json"))
	assert.NoFileExists(t, filepath.Join(sub, "notes.json"))

	// Existing sidecars are kept unless forced.
	require.NoError(t, os.WriteFile(filepath.Join(sub, "01 - tone.json"), []byte("{}"), 0644))
	require.NoError(t, a.AnalyzeDir(context.Background(), dir, false))
	data, _ = os.ReadFile(filepath.Join(sub, "01 - tone.json"))
	assert.Equal(t, "{}", string(data))

	require.NoError(t, a.AnalyzeDir(context.Background(), dir, true))
	data, _ = os.ReadFile(filepath.Join(sub, "01 - tone.json"))
	assert.Contains(t, string(data), `"key"`)
}

func TestAnalyzeDir_Cancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), encodeWAV(t, 8000, 16, false, sine(440, 8000, 1)), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := New()
	require.NoError(t, err)
	assert.ErrorIs(t, a.AnalyzeDir(ctx, dir, false), context.Canceled)
}

func TestDetectKeyAsync(t *testing.T) {
	d, err := keydetect.New(keydetect.DefaultConfig())
	require.NoError(t, err)

	ch := DetectKeyAsync(context.Background(), d, sine(440, 44100, 3), 44100)
	res, err := WaitKey(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "A", res.Key.Note())

	_, err = WaitKey(context.Background(), DetectKeyAsync(context.Background(), d, nil, -1))
	assert.ErrorIs(t, err, keydetect.ErrInvalidSampleRate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WaitKey(context.Background(), DetectKeyAsync(ctx, d, nil, 44100))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateWaveform(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.4, -0.8, 0.2, 0.2, 0, 0}

	f := func(v float32) float64 { return float64(v) }

	w := GenerateWaveform(samples, 4, 2, 4)
	assert.Equal(t, []float64{f(0.1), f(0.4), f(0.2), 0}, w.Peaks)
	assert.Equal(t, []float64{f(-0.2), f(-0.8), f(0.2), 0}, w.Troughs)

	require.Len(t, w.Bars, 4)
	assert.InDelta(t, 1.0, w.Bars[1], 1e-9)
	assert.InDelta(t, 0.25, w.Bars[0], 1e-6)
	assert.Zero(t, w.Bars[3])

	assert.Nil(t, amplitudeBars(samples, 100))
	assert.Equal(t, []float64{0, 0}, amplitudeBars(make([]float32, 4), 2))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "0:59", FormatDuration(59.9))
	assert.Equal(t, "3:07", FormatDuration(187.2))
	assert.Equal(t, "61:01", FormatDuration(3661))
	assert.Equal(t, "0:00", FormatDuration(-3))

	assert.Equal(t, "44.1 kHz", FormatSampleRate(44100))
	assert.Equal(t, "48.0 kHz", FormatSampleRate(48000))
	assert.Equal(t, "22.1 kHz", FormatSampleRate(22050))
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "music/a/song.json", SidecarPath("music/a/song.mp3"))
	assert.True(t, IsAudioFile(".flac"))
	assert.False(t, IsAudioFile(".json"))
}
