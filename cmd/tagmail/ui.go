package main

import (
	"strings"

	"github.com/ajramos/tagmail/internal/config"
	"github.com/ajramos/tagmail/internal/tui"
	"github.com/spf13/cobra"
)

func addUI(topLevel *cobra.Command, opts *rootOptions) {
	cmd := &cobra.Command{
		Use:   "ui [query]",
		Short: "Browse conversations interactively.",
		Example: `
tagmail ui
tagmail ui tag:todo
tagmail ui "tag:inbox -tag:deleted"
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			keymap, err := config.LoadKeymap(rt.cfg.Keymap)
			if err != nil {
				return err
			}
			app, err := tui.NewApp(rt.session, rt.cfg, keymap, rt.logger)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			if query == "" {
				query = rt.cfg.DefaultQuery
			}
			return app.Run(ctx, query)
		},
	}
	topLevel.AddCommand(cmd)
}
