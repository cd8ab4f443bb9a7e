package analysis

import (
	"context"

	"github.com/nzoschke/keylab/pkg/keydetect"
)

// KeyResult is the one-shot message delivered by DetectKeyAsync.
type KeyResult struct {
	Result keydetect.Result
	Err    error
}

// DetectKeyAsync runs key detection on its own goroutine and delivers
// exactly one KeyResult on the returned buffered channel. Cancelling ctx
// abandons the wait; a started analysis runs to completion.
func DetectKeyAsync(ctx context.Context, d *keydetect.Detector, samples []float64, sampleRate int) <-chan KeyResult {
	out := make(chan KeyResult, 1)
	go func() {
		if err := ctx.Err(); err != nil {
			out <- KeyResult{Err: err}
			return
		}
		res, err := d.Analyze(samples, sampleRate)
		out <- KeyResult{Result: res, Err: err}
	}()
	return out
}

// WaitKey waits for the result of DetectKeyAsync or for ctx to end.
func WaitKey(ctx context.Context, ch <-chan KeyResult) (keydetect.Result, error) {
	select {
	case r := <-ch:
		return r.Result, r.Err
	case <-ctx.Done():
		return keydetect.Result{}, ctx.Err()
	}
}
