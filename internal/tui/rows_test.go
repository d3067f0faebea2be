package tui

import (
	"testing"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/threading"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestKeyName(t *testing.T) {
	tests := []struct {
		ev   *tcell.EventKey
		want string
	}{
		{tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone), "j"},
		{tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), " "},
		{tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), "Enter"},
		{tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone), "Tab"},
		{tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone), "Down"},
		{tcell.NewEventKey(tcell.KeyCtrlU, 0, tcell.ModCtrl), "Ctrl+U"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyName(tt.ev))
	}
}

func TestFormatTags(t *testing.T) {
	assert.Equal(t, "(inbox todo)", formatTags([]string{"todo", "unread", "group:x", "inbox"}))
	assert.Empty(t, formatTags([]string{"unread"}))
}

func TestRelativeDate(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "3 hours ago", relativeDate(now.Add(-3*time.Hour), now))
	assert.Equal(t, "Sep 01", relativeDate(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Empty(t, relativeDate(time.Time{}, now))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc  ", truncate("abc", 5))
	got := truncate("a very long subject line", 10)
	assert.Equal(t, 10, runewidth.StringWidth(got))
	assert.Contains(t, got, "…")
	assert.Equal(t, 6, runewidth.StringWidth(truncate("日本語テキスト", 6)))
}

func TestThreadLines(t *testing.T) {
	root := &mail.Message{ID: "1", From: "Ann <ann@x>", Date: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC), Tags: []string{"inbox"}}
	reply := &mail.Message{ID: "2", From: "Bob <bob@x>", Date: time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC), Depth: 1}

	lines := threadLines(threading.FocusedView{Sequence: []*mail.Message{root, reply}, AnchorIndex: 1})
	assert.Equal(t, []string{
		"  Ann  2026-10-01 09:00  (inbox)",
		">   Bob  2026-10-01 10:00  ",
	}, lines)

	assert.Empty(t, threadLines(threading.FocusedView{AnchorIndex: -1}))
}

func TestAuthorName(t *testing.T) {
	assert.Equal(t, "Ann Lee", authorName(`"Ann Lee" <ann@x>`))
	assert.Equal(t, "ann@x", authorName("ann@x"))
}
