package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

const (
	pollInterval       = 100 * time.Millisecond
	defaultStopTimeout = 30 * time.Second
	defaultConnLimit   = 4096
)

var (
	// ErrNotReady is returned when the server does not accept connections
	// within the readiness timeout.
	ErrNotReady = errors.New("server did not become ready")
	// ErrExited is returned when the server process exits before it
	// accepts connections.
	ErrExited = errors.New("server exited before becoming ready")
)

// Launchers holds the sandbox launcher executables.
type Launchers struct {
	Direct string
	SGX    string
}

// CommandConfig holds the resolved executable and the arguments that
// precede the server flags.
type CommandConfig struct {
	Binary    string
	ExtraArgs []string
}

// WrapCommand returns the exec configuration for running the server in
// the given mode. Sandboxed modes execute the launcher with the server
// path as its first argument.
func WrapCommand(mode Mode, launchers Launchers, serverPath string) (CommandConfig, error) {
	switch mode {
	case ModeNative:
		return CommandConfig{Binary: serverPath}, nil
	case ModeDirect:
		return CommandConfig{
			Binary:    launchers.Direct,
			ExtraArgs: []string{serverPath},
		}, nil
	case ModeSGX:
		return CommandConfig{
			Binary:    launchers.SGX,
			ExtraArgs: []string{serverPath},
		}, nil
	default:
		return CommandConfig{}, fmt.Errorf("unknown mode %q", mode)
	}
}

// LaunchConfig describes one server instance.
type LaunchConfig struct {
	Command      CommandConfig
	Dir          string
	Threads      int
	ConnLimit    int
	Env          Env
	ReadyTimeout time.Duration
	StopTimeout  time.Duration
}

// ServerArgs returns the full argument list passed to the executable.
func (c LaunchConfig) ServerArgs() []string {
	connLimit := c.ConnLimit
	if connLimit <= 0 {
		connLimit = defaultConnLimit
	}

	args := make([]string, 0, len(c.Command.ExtraArgs)+8)
	args = append(args, c.Command.ExtraArgs...)
	args = append(args,
		"-t", strconv.Itoa(c.Threads),
		"-c", strconv.Itoa(connLimit),
		"-p", strconv.Itoa(c.Env.Port),
		"-B", "binary",
	)

	return args
}

// Server is a running server process. It owns the process until Stop
// returns.
type Server struct {
	cmd         *exec.Cmd
	stopTimeout time.Duration
	logger      *slog.Logger

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

// Launch starts the server and blocks until its port accepts a TCP
// connection. If the server does not become ready it is stopped before
// Launch returns.
func Launch(ctx context.Context, logger *slog.Logger, cfg LaunchConfig) (*Server, error) {
	args := cfg.ServerArgs()

	cmd := exec.Command(cfg.Command.Binary, args...)
	cmd.Dir = cfg.Dir
	cmd.Stdout = cfg.Env.Log
	cmd.Stderr = cfg.Env.Log

	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	logger.DebugContext(ctx, "starting server",
		slog.String("binary", cfg.Command.Binary),
		slog.String("dir", cfg.Dir),
		slog.Any("args", args),
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command.Binary, err)
	}

	s := &Server{
		cmd:         cmd,
		stopTimeout: stopTimeout,
		logger:      logger.With(slog.Int("pid", cmd.Process.Pid)),
		done:        make(chan struct{}),
	}

	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()

	s.logger.DebugContext(ctx, "waiting for the server",
		slog.String("addr", cfg.Env.Addr()),
	)

	if err := waitReady(ctx, cfg.Env.Addr(), cfg.ReadyTimeout, s.done); err != nil {
		if errors.Is(err, ErrExited) {
			err = fmt.Errorf("%w: %v", err, s.waitErr)
		}

		if stopErr := s.Stop(); stopErr != nil {
			s.logger.Warn("failed to stop server", slog.String("error", stopErr.Error()))
		}

		return nil, err
	}

	s.logger.DebugContext(ctx, "server is up")

	return s, nil
}

// Pid returns the process id of the server (or of its launcher).
func (s *Server) Pid() int {
	return s.cmd.Process.Pid
}

// Stop sends SIGTERM and waits for the process to exit. If it is still
// running after the stop timeout it is killed. Stop is safe to call more
// than once.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
	})

	return s.stopErr
}

func (s *Server) stop() error {
	select {
	case <-s.done:
		return nil
	default:
	}

	s.logger.Debug("stopping server")

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal server: %w", err)
	}

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-s.done:
		s.logger.Debug("server stopped")
		return nil
	case <-timer.C:
	}

	s.logger.Warn("server ignored SIGTERM, killing",
		slog.Duration("timeout", s.stopTimeout),
	)

	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill server: %w", err)
	}

	<-s.done

	return nil
}

// WaitReady polls addr until a TCP connection succeeds. A non-positive
// timeout waits until ctx is done.
func WaitReady(ctx context.Context, addr string, timeout time.Duration) error {
	return waitReady(ctx, addr, timeout, nil)
}

func waitReady(
	ctx context.Context,
	addr string,
	timeout time.Duration,
	exited <-chan struct{},
) error {
	pollCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var dialer net.Dialer

	for {
		dialCtx, cancel := context.WithTimeout(pollCtx, pollInterval)
		conn, err := dialer.DialContext(dialCtx, "tcp", addr)
		cancel()

		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-exited:
			return ErrExited
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("%s after %s: %w", addr, timeout, ErrNotReady)
		case <-ticker.C:
		}
	}
}
