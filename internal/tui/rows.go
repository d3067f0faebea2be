package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/config"
	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/services"
	"github.com/ajramos/tagmail/internal/threading"
	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Column widths of the conversation list
const (
	authorsWidth = 22
	subjectWidth = 60
	indentWidth  = 2
)

// row is the rendered form of one visible unit
type row struct {
	Mark    string
	Date    string
	Authors string
	Count   string
	Subject string
	Tags    string
	Color   tcell.Color
}

// snapshot is what one render reads from the session
type snapshot struct {
	units    []services.Unit
	active   int
	mode     services.Mode
	view     threading.FocusedView
	selected map[string]bool
	summary  func(threadID string) (mail.Summary, bool)
	messages func(threadID string) []*mail.Message
}

func takeSnapshot(s *services.Session) snapshot {
	nav, ed := s.Navigator(), s.Editor()
	snap := snapshot{
		units:    nav.Units(),
		active:   -1,
		mode:     nav.Mode(),
		selected: make(map[string]bool),
		summary:  s.Summary,
		messages: s.Messages,
	}
	if _, idx, ok := nav.Active(); ok {
		snap.active = idx
	}
	snap.view = nav.FocusedView()
	for _, id := range ed.Selected() {
		snap.selected[id] = true
	}
	return snap
}

// buildRow formats one unit. Flat-mode units are single messages, the rest
// are whole conversations.
func buildRow(snap snapshot, u services.Unit, now time.Time, colors config.ColorsConfig) row {
	r := row{Mark: " ", Color: colors.Foreground.Color()}
	if snap.selected[u.SelectionID()] {
		r.Mark = "*"
		r.Color = colors.Selected.Color()
	}

	sum, _ := snap.summary(u.ThreadID)
	if u.MessageID != "" {
		if m := findMessage(snap.messages(u.ThreadID), u.MessageID); m != nil {
			r.Date = relativeDate(m.Date, now)
			r.Authors = truncate(strings.Repeat(" ", u.Depth*indentWidth)+authorName(m.From), authorsWidth)
			r.Subject = truncate(m.Subject, subjectWidth)
			r.Tags = formatTags(m.Tags)
			if r.Mark == " " {
				r.Color = tagColor(m.Tags, colors)
			}
			return r
		}
	}

	r.Date = relativeDate(sum.Newest, now)
	r.Authors = truncate(strings.Join(sum.Authors, ", "), authorsWidth)
	r.Count = fmt.Sprintf("%d/%d", sum.Matched, sum.Total)
	subject := sum.Subject
	if u.Representative {
		subject = fmt.Sprintf("[%s] %s", strings.TrimPrefix(u.GroupMarker, mail.GroupPrefix), subject)
		if r.Mark == " " {
			r.Mark = "+"
			r.Color = colors.Group.Color()
		}
	} else if u.GroupMarker != "" && r.Mark == " " {
		r.Mark = "|"
	}
	r.Subject = truncate(subject, subjectWidth)
	r.Tags = formatTags(sum.Tags)
	if r.Color == colors.Foreground.Color() {
		r.Color = tagColor(sum.Tags, colors)
	}
	return r
}

func tagColor(tags []string, colors config.ColorsConfig) tcell.Color {
	switch {
	case mail.HasTag(tags, mail.TagDeleted):
		return colors.Deleted.Color()
	case mail.HasTag(tags, mail.TagUnread):
		return colors.Unread.Color()
	case len(mail.DueTags(tags)) > 0:
		return colors.Due.Color()
	}
	return colors.Foreground.Color()
}

// formatTags hides markers and the unread flag, which the row already shows
func formatTags(tags []string) string {
	var shown []string
	for _, t := range mail.SortedTags(tags) {
		if t == mail.TagUnread || mail.IsGroupMarker(t) {
			continue
		}
		shown = append(shown, t)
	}
	if len(shown) == 0 {
		return ""
	}
	return "(" + strings.Join(shown, " ") + ")"
}

// threadLines renders the focused view of the active conversation, one line
// per message indented by depth, the anchor marked.
func threadLines(view threading.FocusedView) []string {
	lines := make([]string, 0, len(view.Sequence))
	for i, m := range view.Sequence {
		marker := "  "
		if i == view.AnchorIndex {
			marker = "> "
		}
		lines = append(lines, fmt.Sprintf("%s%s%s  %s  %s",
			marker,
			strings.Repeat(" ", m.Depth*indentWidth),
			authorName(m.From),
			m.Date.Format("2006-01-02 15:04"),
			formatTags(m.Tags)))
	}
	return lines
}

func findMessage(msgs []*mail.Message, id string) *mail.Message {
	for _, m := range msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// relativeDate shows recent dates relative to now and older ones as a date
func relativeDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) > 7*24*time.Hour {
		return t.Format("Jan 02")
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func truncate(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func authorName(from string) string {
	from = strings.TrimSpace(from)
	if i := strings.Index(from, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return strings.Trim(from, "<>")
}
