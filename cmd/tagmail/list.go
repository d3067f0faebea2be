package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/services"
	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func addList(topLevel *cobra.Command, opts *rootOptions) {
	var (
		saved string
		byDue bool
	)
	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List the conversations matching a query.",
		Example: `
tagmail list
tagmail list tag:work -tag:deleted
tagmail list --saved today
tagmail list tag:todo --due
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			query := strings.Join(args, " ")
			if saved != "" {
				if query != "" {
					return fmt.Errorf("a query and --saved cannot be combined")
				}
				if query, err = rt.savedQuery(cmd, saved); err != nil {
					return err
				}
			}
			if err := rt.refresh(ctx, query, byDue); err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), rt.session.Entries(), time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&saved, "saved", "", "run a saved query by name")
	cmd.Flags().BoolVar(&byDue, "due", false, "order by earliest due date")
	topLevel.AddCommand(cmd)
}

// printEntries writes one row per conversation; group members follow
// their group's row, indented
func printEntries(w io.Writer, entries []mail.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	tbl := uitable.New()
	tbl.MaxColWidth = 60
	tbl.AddRow("ID", "DATE", "AUTHORS", "COUNT", "SUBJECT", "TAGS")
	for _, e := range entries {
		if e.IsGroup() {
			members := e.Members()
			tbl.AddRow(e.ID(), "", "", fmt.Sprintf("%d conversations", len(members)), "", "")
			for _, s := range members {
				addSummaryRow(tbl, "  ", s, now)
			}
			continue
		}
		addSummaryRow(tbl, "", e.Members()[0], now)
	}
	fmt.Fprintln(w, tbl)
}

func addSummaryRow(tbl *uitable.Table, indent string, s *mail.Summary, now time.Time) {
	due := ""
	if tag, ok := services.EarliestDue(mail.ConversationEntry(s)); ok {
		date, _ := mail.DueDate(tag)
		due = " due " + date
	}
	tbl.AddRow(
		indent+s.ThreadID,
		humanize.RelTime(s.Newest, now, "ago", "from now"),
		strings.Join(s.Authors, ", "),
		fmt.Sprintf("%d/%d", s.Matched, s.Total),
		s.Subject+due,
		strings.Join(mail.SortedTags(s.Tags), " "),
	)
}
