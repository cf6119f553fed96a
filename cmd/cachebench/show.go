package main

import (
	"fmt"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show config settings",
		Long: `Show the configuration after applying the config file, CACHEBENCH_*
environment variables and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := pp.Fprintln(cmd.OutOrStdout(), a.cfg); err != nil {
				return fmt.Errorf("print config: %w", err)
			}

			return nil
		},
	})

	return cmd
}
