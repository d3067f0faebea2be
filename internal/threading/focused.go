package threading

import (
	"github.com/ajramos/tagmail/internal/mail"
)

// FocusedView is the linear path through a conversation around an anchor:
// the anchor's ancestors oldest first, the anchor, then one chain of replies.
type FocusedView struct {
	Sequence    []*mail.Message
	AnchorIndex int
}

// Anchor returns the focused message, or nil for an empty view.
func (v FocusedView) Anchor() *mail.Message {
	if v.AnchorIndex < 0 || v.AnchorIndex >= len(v.Sequence) {
		return nil
	}
	return v.Sequence[v.AnchorIndex]
}

// Parent returns the message displayed just before the anchor.
func (v FocusedView) Parent() *mail.Message {
	if v.AnchorIndex <= 0 || v.AnchorIndex > len(v.Sequence) {
		return nil
	}
	return v.Sequence[v.AnchorIndex-1]
}

// Child returns the message displayed just after the anchor.
func (v FocusedView) Child() *mail.Message {
	if v.AnchorIndex < 0 || v.AnchorIndex+1 >= len(v.Sequence) {
		return nil
	}
	return v.Sequence[v.AnchorIndex+1]
}

// DefaultAnchor picks the message to focus when none is given: the first
// unread message, else the last one not deleted, else the last one.
func DefaultAnchor(messages []*mail.Message) *mail.Message {
	for _, m := range messages {
		if m != nil && m.HasTag(mail.TagUnread) {
			return m
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if m := messages[i]; m != nil && !m.HasTag(mail.TagDeleted) {
			return m
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i] != nil {
			return messages[i]
		}
	}
	return nil
}

// ResolveFocusedView computes the focused view of messages around anchor.
// A nil anchor selects DefaultAnchor. When a message has several replies
// only the first one found is followed. The result depends only on its
// inputs.
func ResolveFocusedView(messages []*mail.Message, anchor *mail.Message) FocusedView {
	if anchor == nil {
		anchor = DefaultAnchor(messages)
	}
	if anchor == nil {
		return FocusedView{AnchorIndex: -1}
	}

	seen := map[*mail.Message]struct{}{anchor: {}}

	var ancestors []*mail.Message
	for cur := Parent(messages, anchor); cur != nil; cur = Parent(messages, cur) {
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
		ancestors = append(ancestors, cur)
	}

	seq := make([]*mail.Message, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		seq = append(seq, ancestors[i])
	}
	seq = append(seq, anchor)

	for cur := nextReply(messages, anchor, seen); cur != nil; cur = nextReply(messages, cur, seen) {
		seen[cur] = struct{}{}
		seq = append(seq, cur)
	}

	return FocusedView{Sequence: seq, AnchorIndex: len(ancestors)}
}

func nextReply(messages []*mail.Message, m *mail.Message, seen map[*mail.Message]struct{}) *mail.Message {
	if m == nil || m.MessageID == "" {
		return nil
	}
	for _, c := range messages {
		if c == nil {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		if StripReference(c.InReplyTo) == m.MessageID {
			return c
		}
	}
	return nil
}
