package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func addSeed(topLevel *cobra.Command, opts *rootOptions) {
	cmd := &cobra.Command{
		Use:   "seed [fixture.yaml]",
		Short: "Import conversations into the local mailbox.",
		Long:  "Imports a YAML fixture, or the built-in demo mailbox when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLocal("seed"); err != nil {
				return err
			}

			var n int
			if len(args) == 0 {
				n, err = rt.local.ImportDemo(ctx)
			} else {
				f, ferr := os.Open(args[0])
				if ferr != nil {
					return fmt.Errorf("failed to open fixture: %w", ferr)
				}
				defer f.Close()
				n, err = rt.local.ImportFixture(ctx, f)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d messages into %s\n", n, rt.cfg.Database)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
