package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/cachebench/config"
	"github.com/weiihann/cachebench/harness"
	"github.com/weiihann/cachebench/report"
	"github.com/weiihann/cachebench/scenario"
	"github.com/weiihann/cachebench/workload"
)

const separatorWidth = 150

func (a *app) newSweepCmd() *cobra.Command {
	var (
		plan       = workload.DefaultConfig()
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "sweep CHECKOUT_COMMAND_TEMPLATE",
		Short: "Sweep server threads and payload sizes against a native baseline",
		Long: `Measure a native baseline, rebuild the base commit with SGX=1 and run every
(threads, payload size) point under gramine-direct and gramine-sgx in random
order. Both Ops/s delta matrices are reprinted after every point, so an
interrupted sweep still leaves readable partial results.`,
		Args: templateArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			plan.Seed = a.cfg.Seed
			if plan.Seed == 0 {
				plan.Seed = time.Now().UnixNano()
			}

			if err := plan.Validate(); err != nil {
				return &usageError{cmd: cmd, err: err}
			}

			s, err := a.newSession(ctx, cmd, args[0], config.PresetSweep)
			if err != nil {
				return err
			}
			defer s.Close()

			gen := workload.NewGenerator(plan)
			threads, sizes := gen.Threads(), gen.Sizes()
			points := gen.Generate()

			a.logger.InfoContext(ctx, "starting sweep",
				slog.Int("points", len(points)),
				slog.Int64("seed", plan.Seed),
			)

			out := cmd.OutOrStdout()
			progress := report.NewProgress(cmd.ErrOrStderr())

			res, err := s.runner.Sweep(ctx, points, func(res *scenario.SweepResult) {
				if !outputJSON {
					fmt.Fprintln(out, report.Separator(separatorWidth))

					for _, mode := range harness.SandboxModes {
						fmt.Fprintln(out, report.Heading(string(mode)+" vs native, Ops/s"))
						report.Matrix(out, threads, sizes, res.Modes[mode])
						fmt.Fprintln(out)
					}
				}

				progress.Update(res.Done, res.Total)
			})

			if outputJSON && res != nil {
				if jsonErr := report.SweepJSON(out, res); jsonErr != nil && err == nil {
					err = fmt.Errorf("generate JSON report: %w", jsonErr)
				}
			}

			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}

			a.logger.InfoContext(ctx, "sweep complete")

			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&plan.MinThreads, "threads-min", plan.MinThreads,
		"Smallest server thread count")
	flags.IntVar(&plan.MaxThreads, "threads-max", plan.MaxThreads,
		"Largest server thread count (inclusive)")
	flags.IntVar(&plan.MinSize, "size-min", plan.MinSize,
		"Smallest payload size in bytes")
	flags.IntVar(&plan.SizeLimit, "size-limit", plan.SizeLimit,
		"Payload size upper bound in bytes (exclusive)")
	flags.IntVar(&plan.SizeStep, "size-step", plan.SizeStep,
		"Payload size step in bytes")
	flags.BoolVar(&outputJSON, "json", false,
		"Output the final matrices as JSON instead of tables")

	return cmd
}
