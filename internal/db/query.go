package db

import (
	"strings"
)

// queryTerm is one whitespace-separated token of a search query.
// Terms are ANDed and evaluated per message.
type queryTerm struct {
	tag    string // tag:x
	text   string // free text against subject and sender
	negate bool   // leading "-"
}

type searchQuery []queryTerm

// parseQuery understands "tag:x", "-tag:x", "*" and free words
func parseQuery(q string) searchQuery {
	var out searchQuery
	for _, tok := range strings.Fields(q) {
		if tok == "*" {
			continue
		}
		var term queryTerm
		if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			term.negate = true
			tok = tok[1:]
		}
		switch {
		case strings.HasPrefix(tok, "tag:") && len(tok) > len("tag:"):
			term.tag = strings.TrimPrefix(tok, "tag:")
		case strings.HasPrefix(tok, "is:") && len(tok) > len("is:"):
			term.tag = strings.TrimPrefix(tok, "is:")
		default:
			term.text = tok
		}
		out = append(out, term)
	}
	return out
}

// sql renders the WHERE clause over the messages table aliased m
func (q searchQuery) sql() (string, []any) {
	if len(q) == 0 {
		return "1=1", nil
	}
	var conds []string
	var args []any
	for _, t := range q {
		var cond string
		if t.tag != "" {
			cond = "EXISTS (SELECT 1 FROM message_tags mt WHERE mt.message_id = m.id AND mt.tag = ?)"
			args = append(args, t.tag)
		} else {
			cond = "(m.subject LIKE ? ESCAPE '\\' OR m.sender LIKE ? ESCAPE '\\')"
			pattern := "%" + escapeLike(t.text) + "%"
			args = append(args, pattern, pattern)
		}
		if t.negate {
			cond = "NOT " + cond
		}
		conds = append(conds, cond)
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
