// Package main provides the CLI entry point for cachebench, which
// benchmarks memcached natively and under gramine sandboxes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weiihann/cachebench/config"
)

// exitUsage is returned for a missing or malformed checkout template.
const exitUsage = 2

// usageError marks errors caused by invalid command-line arguments.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

type app struct {
	logger *slog.Logger
	level  *slog.LevelVar
	cfg    config.Config
}

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root := newRootCmd(&app{logger: logger, level: level})
	err := root.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(exitCode(err, logger))
	}
}

func exitCode(err error, logger *slog.Logger) int {
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(os.Stderr, "Usage: %s\n%v\n", ue.cmd.UseLine(), ue.err)
		return exitUsage
	}

	logger.Error("cachebench failed", slog.String("error", err.Error()))

	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cachebench",
		Short: "Benchmark memcached natively and under gramine sandboxes",
		Long: `Cachebench builds memcached, runs it natively and under gramine-direct
and gramine-sgx, drives memtier_benchmark against every instance and prints
absolute and relative latency/throughput tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(cmd.Flags())
			if err != nil {
				return err
			}

			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if cfg.Verbose {
				a.level.Set(slog.LevelDebug)
			}

			a.cfg = cfg

			return nil
		},
	}

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.newCompareCmd(),
		a.newSweepCmd(),
		a.newConfigCmd(),
	)

	return root
}

// templateArg requires exactly one checkout command template.
func templateArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return &usageError{
			cmd: cmd,
			err: fmt.Errorf("expected one checkout command template, got %d arguments", len(args)),
		}
	}

	return nil
}
