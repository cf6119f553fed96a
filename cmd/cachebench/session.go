package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/cachebench/harness"
	"github.com/weiihann/cachebench/scenario"
)

// session owns the log file, the optional latency hold and the
// collaborators of one benchmark run.
type session struct {
	logFile *os.File
	latency *harness.LatencyHold
	runner  *scenario.Runner
}

func (a *app) newSession(
	ctx context.Context,
	cmd *cobra.Command,
	template string,
	defaultPreset string,
) (*session, error) {
	cfg := a.cfg

	preset, err := cfg.ResolvePreset(defaultPreset)
	if err != nil {
		return nil, err
	}

	buildDir, err := filepath.Abs(cfg.BuildDir)
	if err != nil {
		return nil, fmt.Errorf("resolve build dir: %w", err)
	}

	vcs, err := harness.NewShellCheckout(template, buildDir, nil, a.logger)
	if err != nil {
		if errors.Is(err, harness.ErrTemplate) {
			return nil, &usageError{cmd: cmd, err: err}
		}

		return nil, err
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := cfg.LogPath(time.Now())

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	s := &session{logFile: logFile}

	if cfg.LowLatency {
		s.latency, err = harness.HoldLowLatency(cfg.LatencyDevice)
		if err != nil {
			logFile.Close()
			return nil, err
		}

		a.logger.InfoContext(ctx, "holding CPU DMA latency at 0us",
			slog.String("device", cfg.LatencyDevice),
		)
	}

	vcs.Log = logFile
	env := cfg.Env(logFile)

	load := &harness.LoadGen{
		Binary:     cfg.Loadgen,
		Dir:        buildDir,
		Env:        env,
		KeyMaximum: preset.KeyMaximum,
		Logger:     a.logger,
	}

	trials := harness.NewRunner(env, harness.RunConfig{
		Dir:          buildDir,
		ServerPath:   cfg.Server,
		Launchers:    cfg.Launchers(),
		ConnLimit:    cfg.ConnLimit,
		ReadyTimeout: cfg.ReadyTimeout,
		StopTimeout:  cfg.StopTimeout,
		Duration:     preset.TestTime,
	}, load, a.logger)

	a.logger.InfoContext(ctx, "starting session",
		slog.String("addr", env.Addr()),
		slog.String("dir", buildDir),
		slog.String("log", logPath),
		slog.String("preset", preset.Name),
		slog.Int("key_maximum", preset.KeyMaximum),
		slog.Duration("test_time", preset.TestTime),
	)

	s.runner = &scenario.Runner{
		Builder: &harness.Builder{
			Dir:    buildDir,
			Jobs:   cfg.MakeJobs,
			Log:    logFile,
			Logger: a.logger,
		},
		VCS:       vcs,
		Trials:    trials,
		Commits:   cfg.Commits,
		BaseTitle: cfg.BaseTitle,
		Logger:    a.logger,
	}

	return s, nil
}

// Close releases the latency hold and closes the log file.
func (s *session) Close() error {
	var errs []error

	if s.latency != nil {
		errs = append(errs, s.latency.Release())
	}

	errs = append(errs, s.logFile.Close())

	return errors.Join(errs...)
}
