package analysis

import (
	"fmt"
	"math"
)

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	mins := int(seconds / 60)
	secs := int(math.Mod(seconds, 60))
	return fmt.Sprintf("%d:%02d", mins, secs)
}

// FormatSampleRate renders a sample rate in kHz with one decimal, e.g. "44.1 kHz".
func FormatSampleRate(rate int) string {
	return fmt.Sprintf("%.1f kHz", float64(rate)/1000)
}
