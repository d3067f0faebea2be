package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/services"
	"github.com/spf13/cobra"
)

func addCalendar(topLevel *cobra.Command, opts *rootOptions) {
	cmd := &cobra.Command{
		Use:   "calendar [query]",
		Short: "Show due dates from today to the last one.",
		Long:  "Buckets the conversations matching query (default: the todo query) by due date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			query := strings.Join(args, " ")
			if query == "" {
				query = rt.cfg.TodoQuery
			}
			if err := rt.refresh(ctx, query, true); err != nil {
				return err
			}
			printCalendar(cmd.OutOrStdout(), services.BuildCalendar(rt.session.Entries(), time.Now()))
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func printCalendar(w io.Writer, cal services.Calendar) {
	if len(cal.Overdue) > 0 {
		fmt.Fprintf(w, "Overdue: %s\n", strings.Join(cal.Overdue, " "))
	}
	if cal.IsEmpty() {
		fmt.Fprintln(w, "Nothing due.")
		return
	}
	for _, y := range cal.Years {
		fmt.Fprintf(w, "%d\n", y.Year)
		for _, m := range y.Months {
			fmt.Fprintf(w, "  %s\n", m.Month)
			for _, d := range m.Days {
				if len(d.ThreadIDs) == 0 {
					continue
				}
				fmt.Fprintf(w, "    %s  %s\n", d.Date.Format("Mon 02"), strings.Join(d.ThreadIDs, " "))
			}
		}
	}
}
