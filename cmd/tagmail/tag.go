package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/services"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// editFunc runs one editor operation over resolved targets and returns
// the line to print
type editFunc func(ctx context.Context, ed *services.Editor, targets []string) (string, error)

// addEditCommand registers a command that loads scope, checks that every
// id is part of it and then edits the listed conversations or groups
func addEditCommand(topLevel *cobra.Command, opts *rootOptions, cmd *cobra.Command, minArgs int, run func(args []string) ([]string, editFunc)) {
	scope := "*"
	cmd.Args = cobra.MinimumNArgs(minArgs)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := opts.open(ctx, cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.refresh(ctx, scope, false); err != nil {
			return err
		}
		ids, edit := run(args)
		if err := rt.checkTargets(ids); err != nil {
			return err
		}
		msg, err := edit(ctx, rt.session.Editor(), ids)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}
	cmd.Flags().StringVar(&scope, "scope", scope, "query that must cover the targets")
	topLevel.AddCommand(cmd)
}

// checkTargets rejects ids that are neither a listed conversation nor a
// listed group
func (rt *runtime) checkTargets(ids []string) error {
	known := make(map[string]struct{})
	for _, e := range rt.session.Entries() {
		known[e.ID()] = struct{}{}
		for _, s := range e.Members() {
			known[s.ThreadID] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%q: %w", id, services.ErrNotFound)
		}
	}
	return nil
}

func addTagCommands(topLevel *cobra.Command, opts *rootOptions) {
	addEditCommand(topLevel, opts, &cobra.Command{
		Use:   "tag <expression> <id>...",
		Short: "Apply a tag edit expression to conversations.",
		Example: `
tagmail tag "+work -inbox" release-plan invoice-0931
tagmail tag due:2026-11-01 group:offsite
`,
	}, 2, func(args []string) ([]string, editFunc) {
		expr := args[0]
		return args[1:], func(ctx context.Context, ed *services.Editor, targets []string) (string, error) {
			if err := ed.ApplyTagEdit(ctx, targets, expr); err != nil {
				return "", err
			}
			return fmt.Sprintf("Applied %q to %d targets", expr, len(targets)), nil
		}
	})

	addEditCommand(topLevel, opts, &cobra.Command{
		Use:   "rename-tag <from> <to> [id...]",
		Short: "Rename a tag on the given conversations, or on every carrier.",
	}, 2, func(args []string) ([]string, editFunc) {
		from, to := args[0], args[1]
		return args[2:], func(ctx context.Context, ed *services.Editor, targets []string) (string, error) {
			if err := ed.RenameTag(ctx, targets, from, to); err != nil {
				return "", err
			}
			return fmt.Sprintf("Renamed %s to %s", from, to), nil
		}
	})

	addEditCommand(topLevel, opts, &cobra.Command{
		Use:   "delete <id>...",
		Short: "Mark conversations deleted and read.",
	}, 1, func(args []string) ([]string, editFunc) {
		return args, func(ctx context.Context, ed *services.Editor, targets []string) (string, error) {
			if err := ed.Delete(ctx, targets); err != nil {
				return "", err
			}
			return fmt.Sprintf("Deleted %d targets", len(targets)), nil
		}
	})

	addEditCommand(topLevel, opts, &cobra.Command{
		Use:   "done <id>...",
		Short: "Remove todo and due tags from conversations.",
	}, 1, func(args []string) ([]string, editFunc) {
		return args, func(ctx context.Context, ed *services.Editor, targets []string) (string, error) {
			if err := ed.MarkDone(ctx, targets); err != nil {
				return "", err
			}
			return fmt.Sprintf("Marked %d targets done", len(targets)), nil
		}
	})

	addEditCommand(topLevel, opts, &cobra.Command{
		Use:   "group <id>...",
		Short: "Group conversations, or ungroup a whole group.",
		Long: "Puts the given conversations and groups into one new group. When the ids\n" +
			"are exactly the members of one group, that group is dissolved instead.",
	}, 1, func(args []string) ([]string, editFunc) {
		return args, func(ctx context.Context, ed *services.Editor, targets []string) (string, error) {
			marker, err := ed.Group(ctx, targets)
			if err != nil {
				return "", err
			}
			if marker == "" {
				return "Ungrouped", nil
			}
			return "Grouped as " + marker, nil
		}
	})

	tags := &cobra.Command{
		Use:   "tags",
		Short: "List every tag of the local mailbox with its conversation count.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireLocal("tags"); err != nil {
				return err
			}
			counts, err := rt.local.Tags(ctx)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)

			tbl := uitable.New()
			tbl.AddRow("TAG", "CONVERSATIONS", "KIND")
			for _, name := range names {
				tbl.AddRow(name, counts[name], tagKind(name))
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
	topLevel.AddCommand(tags)
}

func tagKind(tag string) string {
	switch {
	case mail.IsGroupMarker(tag):
		return "group"
	case mail.IsDueTag(tag):
		return "due"
	case tag == mail.TagUnread, tag == mail.TagDeleted, tag == mail.TagTodo:
		return "reserved"
	}
	return ""
}
