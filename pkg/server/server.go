// Package server provides the Echo web server for the key finder.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdobak/go-xerrors"
	"github.com/nzoschke/keylab/pkg/analysis"
	"github.com/nzoschke/keylab/pkg/counter"
)

//go:embed static
var static embed.FS

// Config holds server settings.
type Config struct {
	Addr      string // Listen address, e.g. ":8080"
	MusicDir  string // Library root served under /api/music
	BodyLimit string // Max request body, echo size syntax such as "64M"
}

// DefaultConfig returns the settings used when no flags or env are given.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		MusicDir:  "music",
		BodyLimit: "64M",
	}
}

// Track represents a track in the music library.
type Track struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	HasJSON  bool   `json:"has_json"`
	JSONPath string `json:"json_path,omitempty"`
	Key      string `json:"key,omitempty"`
}

// Server wires HTTP handlers to the analyzer and conversions counter.
type Server struct {
	cfg      Config
	analyzer *analysis.Analyzer
	converts *counter.Counter
	echo     *echo.Echo
}

// New creates a Server and registers its routes.
func New(cfg Config, a *analysis.Analyzer, converts *counter.Counter) *Server {
	s := &Server{
		cfg:      cfg,
		analyzer: a,
		converts: converts,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	// Routes
	e.GET("/", s.serveIndex)
	e.POST("/api/analyze", s.analyze)
	e.GET("/api/converts", s.getConverts)
	e.POST("/api/converts", s.incrementConverts)
	e.GET("/api/music", s.listMusic)
	e.GET("/api/music/*", s.serveMusic)

	s.echo = e
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server.Run", "addr", s.cfg.Addr, "music dir", s.cfg.MusicDir)
		errCh <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

// serveIndex serves the upload page.
func (s *Server) serveIndex(c echo.Context) error {
	page, err := fs.ReadFile(static, "static/index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, page)
}

// analyze decodes an uploaded audio file and returns its analysis.
func (s *Server) analyze(c echo.Context) error {
	ctx := c.Request().Context()

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing audio file")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}

	samples, sampleRate, err := analysis.DecodeAudio(data, filepath.Ext(fh.Filename))
	if err != nil {
		slog.ErrorContext(ctx, "failed to decode upload",
			slog.String("file", fh.Filename), slog.Any("error", xerrors.New(err)))
		if errors.Is(err, analysis.ErrUnsupportedFormat) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unable to decode audio")
	}

	result, err := s.analyzer.AnalyzeSamples(ctx, filepath.Base(fh.Filename), samples, sampleRate)
	if err != nil {
		slog.ErrorContext(ctx, "failed to analyze upload",
			slog.String("file", fh.Filename), slog.Any("error", xerrors.New(err)))
		return echo.NewHTTPError(http.StatusInternalServerError, "analysis failed")
	}

	slog.InfoContext(ctx, "analyzed upload",
		slog.String("file", fh.Filename),
		slog.Int("sampleRate", sampleRate),
		slog.Float64("duration", result.Duration),
		slog.String("key", result.Key),
	)
	return c.JSON(http.StatusOK, result)
}

type convertsOut struct {
	Count int64 `json:"count"`
}

func (s *Server) getConverts(c echo.Context) error {
	return c.JSON(http.StatusOK, convertsOut{Count: s.converts.Load()})
}

func (s *Server) incrementConverts(c echo.Context) error {
	return c.JSON(http.StatusOK, convertsOut{Count: s.converts.Increment()})
}

// listMusic returns a list of all tracks in the music directory.
func (s *Server) listMusic(c echo.Context) error {
	tracks := []Track{}

	err := filepath.WalkDir(s.cfg.MusicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.cfg.MusicDir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !analysis.IsAudioFile(ext) {
			return nil
		}

		relPath, err := filepath.Rel(s.cfg.MusicDir, path)
		if err != nil {
			return err
		}
		jsonPath := analysis.SidecarPath(path)

		track := Track{
			Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Path: filepath.ToSlash(relPath),
		}

		if sidecar, err := readSidecar(jsonPath); err == nil {
			track.HasJSON = true
			track.JSONPath = filepath.ToSlash(analysis.SidecarPath(relPath))
			track.Key = sidecar.Key
		}

		tracks = append(tracks, track)
		return nil
	})

	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tracks)
}

// serveMusic serves audio files and JSON analysis files from the music directory.
func (s *Server) serveMusic(c echo.Context) error {
	decodedPath, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Security: prevent directory traversal
	if strings.Contains(decodedPath, "..") {
		return echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}
	fullPath := filepath.Join(s.cfg.MusicDir, decodedPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}

	ext := strings.ToLower(filepath.Ext(decodedPath))
	if analysis.IsAudioFile(ext) {
		return c.File(fullPath)
	}
	if ext == ".json" {
		sidecar, err := readSidecar(fullPath)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "invalid JSON")
		}
		return c.JSON(http.StatusOK, sidecar)
	}
	return echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
}

// readSidecar reads and validates a JSON analysis sidecar.
func readSidecar(path string) (*analysis.TrackAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ta analysis.TrackAnalysis
	if err := json.Unmarshal(data, &ta); err != nil {
		return nil, err
	}
	return &ta, nil
}
