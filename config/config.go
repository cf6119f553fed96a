// Package config resolves the harness configuration from flags, the
// environment and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io"
	mrand "math/rand"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/weiihann/cachebench/harness"
)

const (
	// EnvPrefix is prepended to environment variable overrides.
	EnvPrefix = "CACHEBENCH"

	portBase     = 10000
	portSpan     = 20000
	portAttempts = 32
)

// Config is constructed once at startup and handed to every component.
type Config struct {
	Host           string           `mapstructure:"host"`
	Port           int              `mapstructure:"port"`
	Server         string           `mapstructure:"server"`
	Loadgen        string           `mapstructure:"loadgen"`
	DirectLauncher string           `mapstructure:"direct-launcher"`
	SGXLauncher    string           `mapstructure:"sgx-launcher"`
	BuildDir       string           `mapstructure:"build-dir"`
	MakeJobs       int              `mapstructure:"make-jobs"`
	ConnLimit      int              `mapstructure:"conn-limit"`
	ReadyTimeout   time.Duration    `mapstructure:"ready-timeout"`
	StopTimeout    time.Duration    `mapstructure:"stop-timeout"`
	LogDir         string           `mapstructure:"log-dir"`
	Verbose        bool             `mapstructure:"verbose"`
	Preset         string           `mapstructure:"preset"`
	TestTime       time.Duration    `mapstructure:"test-time"`
	Commits        []harness.Commit `mapstructure:"commits"`
	BaseTitle      string           `mapstructure:"base-title"`
	Seed           int64            `mapstructure:"seed"`
	LowLatency     bool             `mapstructure:"low-latency"`
	LatencyDevice  string           `mapstructure:"latency-device"`
}

// DefaultCommits are the merge base of master and the rwlock branch, and
// the tip of the rwlock branch.
func DefaultCommits() []harness.Commit {
	return []harness.Commit{
		{Remote: "origin", ID: "634d0392c3acec724dad5a6af8e6305f166eca57", Title: "master"},
		{Remote: "origin", ID: "46c5b157012dce9c7cf943fc7fe9e4e27a20eeaf", Title: "rwlock"},
	}
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("host", "127.0.0.1", "address the server listens on")
	fs.Int("port", 0, "server port (0 = random in [10000, 30000])")
	fs.String("server", "./memcached", "server binary")
	fs.String("loadgen", "./memtier_benchmark/memtier_benchmark", "memtier_benchmark binary")
	fs.String("direct-launcher", "gramine-direct", "launcher for direct mode")
	fs.String("sgx-launcher", "gramine-sgx", "launcher for SGX mode")
	fs.String("build-dir", ".", "server source tree")
	fs.Int("make-jobs", 8, "parallel make jobs")
	fs.Int("conn-limit", 4096, "server connection limit")
	fs.Duration("ready-timeout", 2*time.Minute, "time to wait for the server to accept connections")
	fs.Duration("stop-timeout", 30*time.Second, "time to wait after SIGTERM before killing the server")
	fs.String("log-dir", ".", "directory for the subprocess log file")
	fs.BoolP("verbose", "v", false, "log progress at debug level")
	fs.String("preset", "", "benchmark preset: "+strings.Join(PresetNames(), ", "))
	fs.Duration("test-time", 0, "load generator test time (0 = preset default)")
	fs.String("base-title", "master", "commit title the sweep runs against")
	fs.Int64("seed", 0, "sweep order seed (0 = current time)")
	fs.Bool("low-latency", false, "keep CPUs out of deep idle states for the whole run (needs root)")
	fs.String("latency-device", harness.DefaultLatencyDevice, "PM QoS device written by --low-latency")
}

// New returns a viper instance bound to fs and the environment.
func New(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	commits := make([]map[string]any, 0, 2)
	for _, c := range DefaultCommits() {
		commits = append(commits, map[string]any{
			"remote": c.Remote,
			"commit": c.ID,
			"title":  c.Title,
		})
	}

	v.SetDefault("commits", commits)

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	return v, nil
}

// Load reads the config file, if any, and decodes the configuration. The
// server port is chosen here when none is configured.
func Load(v *viper.Viper) (Config, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		port, err := PickPort(cfg.Host, mrand.New(mrand.NewSource(time.Now().UnixNano())))
		if err != nil {
			return Config{}, err
		}

		cfg.Port = port
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	if c.Server == "" || c.Loadgen == "" {
		errs = append(errs, errors.New("server and loadgen binaries must be set"))
	}

	for _, commit := range c.Commits {
		if commit.ID == "" || commit.Title == "" {
			errs = append(errs, fmt.Errorf("commit %+v needs an id and a title", commit))
		}
	}

	if c.Preset != "" {
		if _, err := LookupPreset(c.Preset); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Env returns the shared endpoint and log sink for trials.
func (c Config) Env(log io.Writer) harness.Env {
	return harness.Env{Host: c.Host, Port: c.Port, Log: log}
}

// Launchers returns the sandbox launchers.
func (c Config) Launchers() harness.Launchers {
	return harness.Launchers{Direct: c.DirectLauncher, SGX: c.SGXLauncher}
}

// ResolvePreset returns the configured preset, or fallback when none is
// set, with the test time override applied.
func (c Config) ResolvePreset(fallback string) (Preset, error) {
	name := c.Preset
	if name == "" {
		name = fallback
	}

	p, err := LookupPreset(name)
	if err != nil {
		return Preset{}, err
	}

	if c.TestTime > 0 {
		p.TestTime = c.TestTime
	}

	return p, nil
}

// LogPath returns the subprocess log file path for a run started at now.
func (c Config) LogPath(now time.Time) string {
	return filepath.Join(c.LogDir, "log_"+now.Format("2006-01-02_15-04-05")+".txt")
}

// PickPort draws random ports in [10000, 30000] until one can be bound
// on host.
func PickPort(host string, rng *mrand.Rand) (int, error) {
	for range portAttempts {
		port := portBase + rng.Intn(portSpan+1)

		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			continue
		}

		if err := ln.Close(); err != nil {
			return 0, fmt.Errorf("release probe port %d: %w", port, err)
		}

		return port, nil
	}

	return 0, fmt.Errorf("no free port on %s after %d attempts", host, portAttempts)
}
