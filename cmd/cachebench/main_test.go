package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/cachebench/config"
	"github.com/weiihann/cachebench/harness"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	a := &app{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  new(slog.LevelVar),
	}

	root := newRootCmd(a)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func TestMissingTemplateIsUsageError(t *testing.T) {
	for _, sub := range []string{"compare", "sweep"} {
		t.Run(sub, func(t *testing.T) {
			_, err := execute(t, sub)
			require.Error(t, err)

			var ue *usageError
			assert.True(t, errors.As(err, &ue), "err = %v", err)
			assert.Equal(t, exitUsage, exitCode(err, slog.New(slog.NewTextHandler(io.Discard, nil))))
		})
	}
}

func TestTemplateWithoutPlaceholders(t *testing.T) {
	logDir := t.TempDir()

	_, err := execute(t, "compare", "git checkout COMMIT", "--log-dir", logDir)
	require.Error(t, err)

	var ue *usageError
	assert.True(t, errors.As(err, &ue), "err = %v", err)
	assert.ErrorIs(t, err, harness.ErrTemplate)

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "usage error left a log file behind")
}

func testApp(cfg config.Config) *app {
	return &app{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  new(slog.LevelVar),
		cfg:    cfg,
	}
}

func TestSessionLowLatency(t *testing.T) {
	device := filepath.Join(t.TempDir(), "cpu_dma_latency")
	require.NoError(t, os.WriteFile(device, nil, 0o600))

	a := testApp(config.Config{
		Host:          "127.0.0.1",
		Port:          20000,
		Server:        "./memcached",
		Loadgen:       "./memtier_benchmark/memtier_benchmark",
		BuildDir:      t.TempDir(),
		LogDir:        t.TempDir(),
		LowLatency:    true,
		LatencyDevice: device,
	})

	s, err := a.newSession(context.Background(), &cobra.Command{},
		"git fetch REMOTE && git checkout COMMIT", config.PresetCompare)
	require.NoError(t, err)
	require.NotNil(t, s.latency)

	data, err := os.ReadFile(device)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)

	require.NoError(t, s.Close())
}

func TestSessionLowLatencyDeviceMissing(t *testing.T) {
	logDir := t.TempDir()

	a := testApp(config.Config{
		Host:          "127.0.0.1",
		Port:          20000,
		BuildDir:      t.TempDir(),
		LogDir:        logDir,
		LowLatency:    true,
		LatencyDevice: filepath.Join(t.TempDir(), "missing"),
	})

	_, err := a.newSession(context.Background(), &cobra.Command{},
		"git fetch REMOTE && git checkout COMMIT", config.PresetCompare)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSessionRunsFromBuildDir(t *testing.T) {
	buildDir := t.TempDir()

	a := testApp(config.Config{
		Host:     "127.0.0.1",
		Port:     20000,
		Server:   "./memcached",
		Loadgen:  "./memtier_benchmark/memtier_benchmark",
		BuildDir: buildDir,
		LogDir:   t.TempDir(),
	})

	s, err := a.newSession(context.Background(), &cobra.Command{},
		"git fetch REMOTE && git checkout COMMIT", config.PresetCompare)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.Nil(t, s.latency)

	trials, ok := s.runner.Trials.(*harness.Runner)
	require.True(t, ok)
	assert.Equal(t, buildDir, trials.Config.Dir)
	assert.Equal(t, buildDir, trials.Load.Dir)
}

func TestInvalidSweepRange(t *testing.T) {
	_, err := execute(t, "sweep", "git checkout REMOTE/COMMIT",
		"--threads-min", "4", "--threads-max", "2")

	var ue *usageError
	assert.True(t, errors.As(err, &ue), "err = %v", err)
}

func TestOtherErrorsExitOne(t *testing.T) {
	_, err := execute(t, "compare", "git checkout REMOTE/COMMIT", "--preset", "forever")
	require.Error(t, err)

	assert.Equal(t, 1, exitCode(err, slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestConfigShow(t *testing.T) {
	out, err := execute(t, "config", "show", "--port", "23456", "--sgx-launcher", "/opt/gramine-sgx")
	require.NoError(t, err)

	assert.Contains(t, out, "23456")
	assert.Contains(t, out, "/opt/gramine-sgx")
	assert.Contains(t, out, "rwlock")
}

func TestVerboseSetsDebugLevel(t *testing.T) {
	a := &app{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  new(slog.LevelVar),
	}

	root := newRootCmd(a)
	root.SetOut(io.Discard)
	root.SetArgs([]string{"config", "show", "--verbose"})

	require.NoError(t, root.Execute())
	assert.Equal(t, slog.LevelDebug, a.level.Level())
}
