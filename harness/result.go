// Package harness launches, drives, and tears down the server under test
// and the memtier_benchmark load generator.
package harness

import (
	"fmt"
	"io"
	"net"
	"strconv"
)

// Mode selects how the server binary is executed.
type Mode string

// Supported execution modes.
const (
	ModeNative Mode = "native"
	ModeDirect Mode = "direct"
	ModeSGX    Mode = "sgx"
)

// SandboxModes lists the modes that run behind a gramine launcher.
var SandboxModes = []Mode{ModeDirect, ModeSGX}

// Params are the per-trial knobs varied by a sweep.
type Params struct {
	Threads int `json:"threads"`
	Size    int `json:"size"`
}

// DefaultParams are used by the fixed comparison and the sweep baseline.
var DefaultParams = Params{Threads: 16, Size: 4096}

// Env is the process-wide endpoint and log sink shared by every trial.
type Env struct {
	Host string
	Port int
	// Log receives the output of every spawned process. It is never
	// read back.
	Log io.Writer
}

// Addr returns the host:port the server listens on.
func (e Env) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Commit names a revision of the server source tree.
type Commit struct {
	Remote string `json:"remote" mapstructure:"remote"`
	ID     string `json:"commit" mapstructure:"commit"`
	Title  string `json:"title" mapstructure:"title"`
}

func (c Commit) String() string {
	return fmt.Sprintf("%s/%s (%s)", c.Remote, c.ID, c.Title)
}
