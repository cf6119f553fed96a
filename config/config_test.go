package config

import (
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/cachebench/harness"
)

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))

	v, err := New(fs)
	require.NoError(t, err)

	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "./memcached", cfg.Server)
	assert.Equal(t, "./memtier_benchmark/memtier_benchmark", cfg.Loadgen)
	assert.Equal(t, "gramine-direct", cfg.DirectLauncher)
	assert.Equal(t, "gramine-sgx", cfg.SGXLauncher)
	assert.Equal(t, 8, cfg.MakeJobs)
	assert.Equal(t, 4096, cfg.ConnLimit)
	assert.Equal(t, 2*time.Minute, cfg.ReadyTimeout)
	assert.Equal(t, 30*time.Second, cfg.StopTimeout)
	assert.Equal(t, "master", cfg.BaseTitle)
	assert.Equal(t, DefaultCommits(), cfg.Commits)
	assert.False(t, cfg.LowLatency)
	assert.Equal(t, "/dev/cpu_dma_latency", cfg.LatencyDevice)

	assert.GreaterOrEqual(t, cfg.Port, 10000)
	assert.LessOrEqual(t, cfg.Port, 30000)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := load(t,
		"--port=12345",
		"--make-jobs=4",
		"--stop-timeout=5s",
		"--verbose",
		"--preset=sweep",
		"--low-latency",
	)
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Port)
	assert.Equal(t, 4, cfg.MakeJobs)
	assert.Equal(t, 5*time.Second, cfg.StopTimeout)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "sweep", cfg.Preset)
	assert.True(t, cfg.LowLatency)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CACHEBENCH_SERVER", "/opt/memcached/memcached")
	t.Setenv("CACHEBENCH_READY_TIMEOUT", "5s")
	t.Setenv("CACHEBENCH_PORT", "23456")

	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "/opt/memcached/memcached", cfg.Server)
	assert.Equal(t, 5*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, 23456, cfg.Port)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cachebench.yaml")
	content := `
port: 20001
stop-timeout: 10s
sgx-launcher: /usr/bin/gramine-sgx
commits:
  - remote: upstream
    commit: aaaa
    title: master
  - remote: fork
    commit: bbbb
    title: sharded
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := load(t, "--config="+path)
	require.NoError(t, err)

	assert.Equal(t, 20001, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.StopTimeout)
	assert.Equal(t, "/usr/bin/gramine-sgx", cfg.SGXLauncher)
	assert.Equal(t, []harness.Commit{
		{Remote: "upstream", ID: "aaaa", Title: "master"},
		{Remote: "fork", ID: "bbbb", Title: "sharded"},
	}, cfg.Commits)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(t, "--config="+filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := load(t, "--preset=forever")
	assert.ErrorContains(t, err, "unknown preset")

	_, err = load(t, "--port=70000")
	assert.ErrorContains(t, err, "out of range")

	_, err = load(t, "--server=")
	assert.Error(t, err)
}

func TestResolvePreset(t *testing.T) {
	cfg := Config{}

	p, err := cfg.ResolvePreset(PresetCompare)
	require.NoError(t, err)
	assert.Equal(t, 10_000_000, p.KeyMaximum)
	assert.Equal(t, 30*time.Second, p.TestTime)

	cfg.Preset = PresetSweep
	cfg.TestTime = 180 * time.Second

	p, err = cfg.ResolvePreset(PresetCompare)
	require.NoError(t, err)
	assert.Equal(t, PresetSweep, p.Name)
	assert.Equal(t, 100_000, p.KeyMaximum)
	assert.Equal(t, 180*time.Second, p.TestTime)

	_, err = Config{Preset: "nope"}.ResolvePreset(PresetSweep)
	assert.Error(t, err)
}

func TestPresetNames(t *testing.T) {
	assert.Equal(t, []string{"compare", "sweep"}, PresetNames())
}

func TestPickPort(t *testing.T) {
	port, err := PickPort("127.0.0.1", rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, port, 10000)
	assert.LessOrEqual(t, port, 30000)

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err, "picked port is not free")
	_ = ln.Close()
}

func TestLogPath(t *testing.T) {
	cfg := Config{LogDir: "logs"}
	now := time.Date(2026, 10, 18, 13, 5, 9, 0, time.UTC)

	assert.Equal(t, filepath.Join("logs", "log_2026-10-18_13-05-09.txt"), cfg.LogPath(now))
}
