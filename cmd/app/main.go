// CLI for musical key analysis and the key finder web server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/nzoschke/keylab/pkg/analysis"
	"github.com/nzoschke/keylab/pkg/counter"
	"github.com/nzoschke/keylab/pkg/keydetect"
	"github.com/nzoschke/keylab/pkg/server"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "app",
	Short:         "Musical key analysis and key finder server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		return setupLogger(level)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <directory>",
	Short: "Analyze audio files and create JSON sidecars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runAnalyze(cmd.Context(), args[0], force)
	},
}

var keyCmd = &cobra.Command{
	Use:   "key <file>...",
	Short: "Print the detected key of each audio file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKey(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the key finder web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := server.DefaultConfig()
		cfg.Addr = flagOrEnv(cmd, "addr", "KEYLAB_ADDR")
		cfg.MusicDir = flagOrEnv(cmd, "music-dir", "KEYLAB_MUSIC_DIR")
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	defaults := server.DefaultConfig()

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	analyzeCmd.Flags().BoolP("force", "f", false, "Force re-analysis even if JSON exists")
	serveCmd.Flags().String("addr", defaults.Addr, "Listen address (env KEYLAB_ADDR)")
	serveCmd.Flags().String("music-dir", defaults.MusicDir, "Music library directory (env KEYLAB_MUSIC_DIR)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.ErrorContext(ctx, "command failed", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
}

func setupLogger(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// flagOrEnv returns the flag value when set explicitly, then the env var,
// then the flag default.
func flagOrEnv(cmd *cobra.Command, flag, env string) string {
	v, _ := cmd.Flags().GetString(flag)
	if cmd.Flags().Changed(flag) {
		return v
	}
	if e := os.Getenv(env); e != "" {
		return e
	}
	return v
}

func runAnalyze(ctx context.Context, dir string, force bool) error {
	analyzer, err := analysis.New()
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	return analyzer.AnalyzeDir(ctx, dir, force)
}

func runKey(cmd *cobra.Command, files []string) error {
	var failed int
	for _, path := range files {
		samples, sampleRate, err := analysis.LoadAudioMono(path)
		if err != nil {
			slog.Error("failed to load audio", slog.String("file", path), slog.Any("error", xerrors.New(err)))
			failed++
			continue
		}

		label, err := keydetect.DetectFloat32(samples, sampleRate)
		if err != nil {
			slog.Error("failed to detect key", slog.String("file", path), slog.Any("error", xerrors.New(err)))
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, label)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func runServe(ctx context.Context, cfg server.Config) error {
	analyzer, err := analysis.New()
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	return server.New(cfg, analyzer, counter.Default).Run(ctx)
}
