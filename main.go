package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dhcgn/kakaotalk-to-doc/cmd"
	"github.com/dhcgn/kakaotalk-to-doc/config"
	"github.com/dhcgn/kakaotalk-to-doc/encode"
	"github.com/dhcgn/kakaotalk-to-doc/progress"
	"github.com/dhcgn/kakaotalk-to-doc/runner"
	"github.com/dhcgn/kakaotalk-to-doc/state"
	"github.com/dhcgn/kakaotalk-to-doc/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "kakaotalk-to-doc",
		Short:        "Convert KakaoTalk chat exports into xlsx, csv or pdf documents",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, logger, cleanup, err := setup(c)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()
			if len(args) == 1 {
				cfg.InputPath = args[0]
			}
			if err := cfg.RequireInput(); err != nil {
				return err
			}

			logger.Info("starting kakaotalk-to-doc", "input", cfg.InputPath, "session", cfg.UseSession, "format", cfg.Format)
			return run(cfg, logger)
		},
		Args: cobra.MaximumNArgs(1),
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	rootCmd.AddCommand(cmd.NewUploadCommand(setup), cmd.NewStatsCommand(setup))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setup(c *cobra.Command) (config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger, cleanup, err := setupLogger(cfg)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, cleanup, nil
}

func run(cfg config.Config, logger *slog.Logger) error {
	var store state.Store
	if cfg.UseSession || cfg.SaveState {
		s, err := state.Open(cfg.StateBackend, cfg.StateDir)
		if err != nil {
			return fmt.Errorf("state.Open: %w", err)
		}
		defer s.Close()
		store = s
	}

	r, err := runner.New(cfg, logger, store)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	reporter := stats.NewReporter(r, logger)

	bar := progress.New(cfg.Progress)
	r.Subscribe("progress-bar", bar.Update)
	defer bar.Stop()

	if cfg.UseSession && cfg.InputPath == "" {
		err = r.LoadSession()
	} else {
		err = r.LoadFile(cfg.InputPath)
	}
	if err != nil {
		return err
	}

	artifact, err := r.Export(cfg.Format)
	var empty *encode.EmptyInputError
	if errors.As(err, &empty) {
		pterm.Warning.Println("No messages match the current filters; nothing was written. A saved sender filter can be cleared with --sender \"\".")
		return nil
	}
	if err != nil {
		return err
	}

	path, err := r.Write(artifact)
	if err != nil {
		return err
	}
	logger.Info("document written", "path", path, "format", cfg.Format, "rows", artifact.Rows)

	if cfg.SaveState {
		if err := r.Save(); err != nil {
			logger.Warn("saving options failed", "err", err)
		}
	}

	reporter.Log()
	if cfg.Progress {
		progress.PrintSummary(reporter.Summary())
	}
	return nil
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("kakaotalk-to-doc-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
