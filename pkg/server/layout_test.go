package server

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	ts := httptest.NewServer(newTestServer(t, t.TempDir()).Handler())
	defer ts.Close()

	// Launch browser
	url, err := launcher.New().Headless(true).Launch()
	if err != nil {
		t.Skipf("no browser available: %v", err)
	}
	browser := rod.New().ControlURL(url).MustConnect()
	defer browser.MustClose()

	// Add timestamp to bust cache
	page := browser.MustPage(fmt.Sprintf("%s/?t=%d", ts.URL, time.Now().UnixNano()))
	page.MustWaitLoad()

	// Wait for the converts counter to be fetched
	page.Timeout(5 * time.Second).MustWait(`() => document.getElementById('converts').textContent === '7'`)

	layout := page.MustEval(`() => {
		const header = document.querySelector('header');
		const drop = document.getElementById('drop');
		const result = document.getElementById('result');

		const out = { title: document.title };
		if (header) {
			const rect = header.getBoundingClientRect();
			out.header = { top: rect.top, height: rect.height };
		}
		if (drop) {
			const rect = drop.getBoundingClientRect();
			out.drop = { top: rect.top, height: rect.height, width: rect.width };
		}
		out.resultHidden = result ? result.hidden : null;
		return out;
	}`).Map()

	t.Logf("Layout: %+v", layout)

	assert.Equal(t, "Key Finder", layout["title"].Str())

	// Test 1: Header is at top
	headerData := layout["header"].Map()
	require.NotNil(t, headerData, "Header should exist")
	assert.InDelta(t, 0, headerData["top"].Num(), 2, "Header should be at top of page")
	assert.Greater(t, headerData["height"].Num(), float64(30), "Header should have height")

	// Test 2: Drop zone sits below the header
	dropData := layout["drop"].Map()
	require.NotNil(t, dropData, "Drop zone should exist")
	assert.Greater(t, dropData["top"].Num(), headerData["height"].Num())
	assert.Greater(t, dropData["width"].Num(), float64(100))

	// Test 3: Result is hidden until a file is analyzed
	assert.True(t, layout["resultHidden"].Bool())

	// Test 4: Uploading a file shows its key
	path := filepath.Join(t.TempDir(), "a440.wav")
	require.NoError(t, os.WriteFile(path, sineWAV(440, 16000, 4), 0644))
	page.MustElement("#file").MustSetFiles(path)

	page.Timeout(10 * time.Second).MustWait(`() => !document.getElementById('result').hidden`)
	key := page.MustElement("#key").MustText()
	t.Logf("Key: %s", key)
	assert.Regexp(t, `^A (Major|Minor)$`, key)
	assert.Equal(t, "0:04", page.MustElement("#duration").MustText())

	fmt.Println("All layout tests passed!")
}
