package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/cachebench/memtier"
)

// RunConfig holds the settings shared by every trial.
type RunConfig struct {
	// Dir is the server's working directory. A relative ServerPath and the
	// gramine manifest are resolved against it.
	Dir          string
	ServerPath   string
	Launchers    Launchers
	ConnLimit    int
	ReadyTimeout time.Duration
	StopTimeout  time.Duration
	// Duration is the load generator test time.
	Duration time.Duration
}

// Runner executes single trials: launch the server, drive load against
// it, parse the report, stop the server.
type Runner struct {
	Env    Env
	Config RunConfig
	Load   *LoadGen
	Logger *slog.Logger
}

// NewRunner creates a Runner for the given environment.
func NewRunner(env Env, cfg RunConfig, load *LoadGen, logger *slog.Logger) *Runner {
	return &Runner{
		Env:    env,
		Config: cfg,
		Load:   load,
		Logger: logger,
	}
}

// Run performs one trial. The server is stopped on every return path.
func (r *Runner) Run(ctx context.Context, mode Mode, p Params) (stats memtier.Stats, err error) {
	logger := r.Logger.With(
		slog.String("mode", string(mode)),
		slog.Int("threads", p.Threads),
		slog.Int("size", p.Size),
	)

	cmdCfg, err := WrapCommand(mode, r.Config.Launchers, r.Config.ServerPath)
	if err != nil {
		return stats, err
	}

	logger.DebugContext(ctx, "starting trial")

	srv, err := Launch(ctx, logger, LaunchConfig{
		Command:      cmdCfg,
		Dir:          r.Config.Dir,
		Threads:      p.Threads,
		ConnLimit:    r.Config.ConnLimit,
		Env:          r.Env,
		ReadyTimeout: r.Config.ReadyTimeout,
		StopTimeout:  r.Config.StopTimeout,
	})
	if err != nil {
		return stats, fmt.Errorf("launch %s server: %w", mode, err)
	}

	defer func() {
		if stopErr := srv.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("stop %s server: %w", mode, stopErr)
		}
	}()

	wallStart := time.Now()

	out, err := r.Load.Run(ctx, p.Size, r.Config.Duration)
	if err != nil {
		return stats, err
	}

	stats, err = memtier.Parse(out)
	if err != nil {
		return stats, fmt.Errorf("parse %s report: %w", mode, err)
	}

	logger.InfoContext(ctx, "trial finished",
		slog.Float64("ops_per_sec", stats[memtier.OpsPerSec]),
		slog.Duration("wall_time", time.Since(wallStart)),
	)

	return stats, nil
}
