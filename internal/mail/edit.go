package mail

import (
	"errors"
	"strings"
)

// ErrEmptyEdit is returned when an edit expression contains no tags.
var ErrEmptyEdit = errors.New("empty tag edit expression")

// TagEdit is a parsed tag edit expression.
type TagEdit struct {
	Add    []string
	Remove []string
}

// ParseTagEdit parses a whitespace-separated edit expression. A token
// prefixed with "-" removes a tag, anything else (optionally "+"-prefixed)
// adds it. A later token for the same tag wins.
func ParseTagEdit(expr string) (TagEdit, error) {
	var edit TagEdit
	for _, tok := range strings.Fields(expr) {
		switch {
		case strings.HasPrefix(tok, "-"):
			tag := strings.TrimPrefix(tok, "-")
			if tag == "" {
				continue
			}
			edit.Add = without(edit.Add, tag)
			edit.Remove = appendUnique(edit.Remove, tag)
		default:
			tag := strings.TrimPrefix(tok, "+")
			if tag == "" {
				continue
			}
			edit.Remove = without(edit.Remove, tag)
			edit.Add = appendUnique(edit.Add, tag)
		}
	}
	if edit.IsEmpty() {
		return TagEdit{}, ErrEmptyEdit
	}
	return edit, nil
}

// IsEmpty reports whether the edit changes nothing.
func (e TagEdit) IsEmpty() bool {
	return len(e.Add) == 0 && len(e.Remove) == 0
}

// String renders the canonical expression: additions first, then removals.
func (e TagEdit) String() string {
	parts := make([]string, 0, len(e.Add)+len(e.Remove))
	parts = append(parts, e.Add...)
	for _, t := range e.Remove {
		parts = append(parts, "-"+t)
	}
	return strings.Join(parts, " ")
}

// Apply returns tags with the edit applied. Adding a present tag and
// removing an absent tag are no-ops. The input slice is not modified.
func (e TagEdit) Apply(tags []string) []string {
	out := make([]string, 0, len(tags)+len(e.Add))
	for _, t := range tags {
		if HasTag(e.Remove, t) {
			continue
		}
		out = append(out, t)
	}
	for _, t := range e.Add {
		if !HasTag(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Diff reports the edit that applying e to tags actually performs.
func (e TagEdit) Diff(tags []string) TagEdit {
	var d TagEdit
	for _, t := range e.Add {
		if !HasTag(tags, t) {
			d.Add = append(d.Add, t)
		}
	}
	for _, t := range e.Remove {
		if HasTag(tags, t) {
			d.Remove = append(d.Remove, t)
		}
	}
	return d
}

// Inverse swaps additions and removals.
func (e TagEdit) Inverse() TagEdit {
	return TagEdit{
		Add:    append([]string(nil), e.Remove...),
		Remove: append([]string(nil), e.Add...),
	}
}

// Then composes e followed by next into the single edit with the same net
// effect, assuming both were diffs against the tags they ran on.
func (e TagEdit) Then(next TagEdit) TagEdit {
	out := TagEdit{
		Add:    append([]string(nil), e.Add...),
		Remove: append([]string(nil), e.Remove...),
	}
	for _, t := range next.Add {
		if HasTag(out.Remove, t) {
			out.Remove = without(out.Remove, t)
			continue
		}
		out.Add = appendUnique(out.Add, t)
	}
	for _, t := range next.Remove {
		if HasTag(out.Add, t) {
			out.Add = without(out.Add, t)
			continue
		}
		out.Remove = appendUnique(out.Remove, t)
	}
	return out
}

func appendUnique(list []string, tag string) []string {
	if HasTag(list, tag) {
		return list
	}
	return append(list, tag)
}

func without(list []string, tag string) []string {
	var out []string
	for _, t := range list {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}
