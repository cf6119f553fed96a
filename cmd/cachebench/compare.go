package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weiihann/cachebench/config"
	"github.com/weiihann/cachebench/report"
	"github.com/weiihann/cachebench/scenario"
)

func (a *app) newCompareCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "compare CHECKOUT_COMMAND_TEMPLATE",
		Short: "Compare native, gramine-direct and gramine-sgx across commits",
		Long: `Build and run memcached natively, then check out every configured commit,
rebuild it with SGX=1 and run it under gramine-direct and gramine-sgx.

The template is run through sh with REMOTE and COMMIT replaced, e.g.
  cachebench compare 'git fetch REMOTE && git checkout COMMIT'`,
		Args: templateArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := a.newSession(ctx, cmd, args[0], config.PresetCompare)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := s.runner.Compare(ctx)
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}

			out := cmd.OutOrStdout()

			if outputJSON {
				if err := report.GenerateJSON(out, rows); err != nil {
					return fmt.Errorf("generate JSON report: %w", err)
				}

				return nil
			}

			report.Table(out, rows)
			fmt.Fprintln(out)

			if err := report.DeltaTable(out, rows, scenario.NativeLabel, nil); err != nil {
				return err
			}

			for _, pair := range s.runner.Comparisons() {
				fmt.Fprintln(out)

				if err := report.DeltaTable(out, rows, pair[0], []string{pair[1]}); err != nil {
					return err
				}
			}

			a.logger.InfoContext(ctx, "benchmark complete")

			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of tables")

	return cmd
}
