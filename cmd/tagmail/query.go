package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func addQuery(topLevel *cobra.Command, opts *rootOptions) {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Manage saved queries.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var description string
	save := &cobra.Command{
		Use:     "save <name> <query>",
		Short:   "Save a query under a name.",
		Example: `tagmail query save today "tag:inbox tag:unread" --description "unread inbox"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			q, err := rt.queries.SaveQuery(cmd.Context(), args[0], strings.Join(args[1:], " "), description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s: %s\n", q.Name, q.Query)
			return nil
		},
	}
	save.Flags().StringVar(&description, "description", "", "what the query is for")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved queries, most recently used first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			queries, err := rt.queries.ListQueries(cmd.Context())
			if err != nil {
				return err
			}
			if len(queries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved queries.")
				return nil
			}
			tbl := uitable.New()
			tbl.AddRow("NAME", "QUERY", "USES", "LAST USED", "DESCRIPTION")
			for _, q := range queries {
				lastUsed := "never"
				if q.LastUsed > 0 {
					lastUsed = humanize.Time(time.Unix(q.LastUsed, 0))
				}
				tbl.AddRow(q.Name, q.Query, q.UseCount, lastUsed, q.Description)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved query.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.queries.DeleteQuery(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(save, list, remove)
	topLevel.AddCommand(cmd)
}

// savedQuery resolves a saved query by name and counts the use
func (rt *runtime) savedQuery(cmd *cobra.Command, name string) (string, error) {
	return rt.queries.ResolveQuery(cmd.Context(), name)
}
