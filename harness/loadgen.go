package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// LoadGen runs memtier_benchmark against the server at Env.
type LoadGen struct {
	Binary string
	// Dir is the working directory of the load generator. A relative
	// Binary is resolved against it.
	Dir        string
	Env        Env
	KeyMaximum int
	Logger     *slog.Logger
}

// Args returns the memtier_benchmark command line for one run.
func (g *LoadGen) Args(size int, duration time.Duration) []string {
	return []string{
		"-s", g.Env.Host,
		"-p", strconv.Itoa(g.Env.Port),
		"--protocol=memcache_binary",
		"--hide-histogram",
		"--distinct-client-seed",
		"--key-maximum=" + strconv.Itoa(g.KeyMaximum),
		"-d", strconv.Itoa(size),
		"--randomize",
		"--test-time=" + strconv.Itoa(testTimeSeconds(duration)),
		"--ratio=1:9",
		"--pipeline=6",
		"-c", "6",
		"-t", "7",
	}
}

// Run executes the load generator and returns its standard output. It
// blocks for roughly duration.
func (g *LoadGen) Run(ctx context.Context, size int, duration time.Duration) (string, error) {
	args := g.Args(size, duration)

	cmd := exec.CommandContext(ctx, g.Binary, args...)
	cmd.Dir = g.Dir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = g.Env.Log

	g.Logger.DebugContext(ctx, "running load generator",
		slog.Int("size", size),
		slog.Duration("duration", duration),
	)

	start := time.Now()

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("run %s: %w", g.Binary, err)
	}

	g.Logger.DebugContext(ctx, "load generator finished",
		slog.Duration("wall_time", time.Since(start)),
	)

	return stdout.String(), nil
}

func testTimeSeconds(d time.Duration) int {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}

	return secs
}
