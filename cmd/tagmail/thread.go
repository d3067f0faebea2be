package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/threading"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func addThread(topLevel *cobra.Command, opts *rootOptions) {
	var anchor string
	cmd := &cobra.Command{
		Use:   "thread <thread-id>",
		Short: "Show a conversation and its focused view.",
		Long: "Shows every message of a conversation with its reply chain index, then the\n" +
			"focused view: the anchor's ancestors, the anchor and its first replies.\n" +
			"The anchor defaults to the first unread message.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			msgs, err := rt.backend.FetchMessages(ctx, args[0])
			if err != nil {
				return err
			}
			msgs = threading.Assemble(msgs)

			var anchorMsg *mail.Message
			if anchor != "" {
				for _, m := range msgs {
					if m.ID == anchor {
						anchorMsg = m
					}
				}
				if anchorMsg == nil {
					return fmt.Errorf("message %q is not part of %s", anchor, args[0])
				}
			}
			printThread(cmd.OutOrStdout(), msgs, threading.ResolveFocusedView(msgs, anchorMsg))
			return nil
		},
	}
	cmd.Flags().StringVar(&anchor, "anchor", "", "message id to focus on")
	topLevel.AddCommand(cmd)
}

func printThread(w io.Writer, msgs []*mail.Message, view threading.FocusedView) {
	tbl := uitable.New()
	tbl.MaxColWidth = 50
	tbl.AddRow("ID", "CHAIN", "FROM", "DATE", "SUBJECT", "TAGS")
	for _, m := range msgs {
		tbl.AddRow(m.ID, m.Depth, m.From, m.Date.Format("2006-01-02 15:04"), m.Subject, strings.Join(mail.SortedTags(m.Tags), " "))
	}
	fmt.Fprintln(w, tbl)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Focused view:")
	for i, m := range view.Sequence {
		marker := "  "
		if i == view.AnchorIndex {
			marker = "> "
		}
		fmt.Fprintf(w, "%s%s  %s\n", marker, m.ID, m.From)
	}
}
