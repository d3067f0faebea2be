package threading

import (
	"testing"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFocusedView_AncestorsAndReplies(t *testing.T) {
	a := msg("1", "a@x", "")
	b := msg("2", "b@x", "<a@x>")
	c := msg("3", "c@x", "<b@x>")
	d := msg("4", "d@x", "<c@x>")
	all := []*mail.Message{d, b, a, c}

	view := ResolveFocusedView(all, b)
	assert.Equal(t, []*mail.Message{a, b, c, d}, view.Sequence)
	assert.Equal(t, 1, view.AnchorIndex)
	assert.Equal(t, b, view.Anchor())
	assert.Equal(t, a, view.Parent())
	assert.Equal(t, c, view.Child())
}

func TestResolveFocusedView_IsPure(t *testing.T) {
	a := msg("1", "a@x", "")
	b := msg("2", "b@x", "<a@x>", mail.TagUnread)
	c := msg("3", "c@x", "<b@x>")
	all := []*mail.Message{a, b, c}

	first := ResolveFocusedView(all, c)
	second := ResolveFocusedView(all, c)
	assert.Equal(t, first, second)

	first = ResolveFocusedView(all, nil)
	second = ResolveFocusedView(all, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, b, first.Anchor())
}

func TestResolveFocusedView_FollowsFirstReplyOnly(t *testing.T) {
	root := msg("1", "r@x", "")
	left := msg("2", "l@x", "<r@x>")
	right := msg("3", "q@x", "<r@x>")

	view := ResolveFocusedView([]*mail.Message{root, left, right}, root)
	assert.Equal(t, []*mail.Message{root, left}, view.Sequence)
	assert.Equal(t, 0, view.AnchorIndex)
	assert.Nil(t, view.Parent())

	view = ResolveFocusedView([]*mail.Message{root, left, right}, right)
	assert.Equal(t, []*mail.Message{root, right}, view.Sequence)
	assert.Equal(t, 1, view.AnchorIndex)
	assert.Nil(t, view.Child())
}

func TestResolveFocusedView_UnresolvableAncestor(t *testing.T) {
	orphan := msg("1", "o@x", "<filtered@x>")
	view := ResolveFocusedView([]*mail.Message{orphan}, orphan)
	assert.Equal(t, []*mail.Message{orphan}, view.Sequence)
	assert.Equal(t, 0, view.AnchorIndex)
}

func TestResolveFocusedView_CycleTerminates(t *testing.T) {
	a := msg("1", "a@x", "<b@x>")
	b := msg("2", "b@x", "<a@x>")
	view := ResolveFocusedView([]*mail.Message{a, b}, a)
	require.Len(t, view.Sequence, 2)
	assert.Equal(t, []*mail.Message{b, a}, view.Sequence)
	assert.Equal(t, 1, view.AnchorIndex)
}

func TestResolveFocusedView_Empty(t *testing.T) {
	view := ResolveFocusedView(nil, nil)
	assert.Empty(t, view.Sequence)
	assert.Equal(t, -1, view.AnchorIndex)
	assert.Nil(t, view.Anchor())
	assert.Nil(t, view.Parent())
	assert.Nil(t, view.Child())
}

func TestDefaultAnchor(t *testing.T) {
	t.Run("first_unread", func(t *testing.T) {
		read1 := msg("1", "a", "")
		unread := msg("2", "b", "", mail.TagUnread)
		read2 := msg("3", "c", "")
		assert.Equal(t, unread, DefaultAnchor([]*mail.Message{read1, unread, read2}))
	})

	t.Run("last_not_deleted", func(t *testing.T) {
		read := msg("1", "a", "")
		deleted := msg("2", "b", "", mail.TagDeleted)
		assert.Equal(t, read, DefaultAnchor([]*mail.Message{read, deleted}))
	})

	t.Run("all_deleted", func(t *testing.T) {
		d1 := msg("1", "a", "", mail.TagDeleted)
		d2 := msg("2", "b", "", mail.TagDeleted)
		assert.Equal(t, d2, DefaultAnchor([]*mail.Message{d1, d2}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, DefaultAnchor(nil))
	})
}
