// Package threading reconstructs reply chains from flat message lists and
// derives the focused, linear view of a conversation around an anchor.
package threading

import (
	"strings"

	"github.com/ajramos/tagmail/internal/mail"
)

// Assemble assigns a chain index to every message's Depth and returns the
// input slice unchanged in order.
//
// Messages are consumed from the tail of a work-list. Each popped message
// starts a chain that is followed backwards through InReplyTo, looking only
// at messages still in the work-list; every message met on the way gets the
// same depth and leaves the work-list. The depth counter moves on once the
// chain runs out. Depth is therefore a discovery-order chain index, not a
// tree depth. An unresolvable reference simply ends the chain.
func Assemble(messages []*mail.Message) []*mail.Message {
	work := make([]*mail.Message, 0, len(messages))
	for _, m := range messages {
		if m != nil {
			work = append(work, m)
		}
	}

	depth := 0
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		cur.Depth = depth

		for {
			ref := StripReference(cur.InReplyTo)
			if ref == "" {
				break
			}
			idx := indexOfMessageID(work, ref)
			if idx < 0 {
				break
			}
			cur = work[idx]
			work = append(work[:idx], work[idx+1:]...)
			cur.Depth = depth
		}
		depth++
	}
	return messages
}

// StripReference removes surrounding whitespace and angle brackets from a
// reply reference.
func StripReference(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "<")
	ref = strings.TrimSuffix(ref, ">")
	return strings.TrimSpace(ref)
}

// Parent returns the message m replies to, or nil when the reference cannot
// be resolved within messages.
func Parent(messages []*mail.Message, m *mail.Message) *mail.Message {
	if m == nil {
		return nil
	}
	ref := StripReference(m.InReplyTo)
	if ref == "" {
		return nil
	}
	idx := indexOfMessageID(messages, ref)
	if idx < 0 {
		return nil
	}
	return messages[idx]
}

func indexOfMessageID(messages []*mail.Message, id string) int {
	for i, m := range messages {
		if m != nil && m.MessageID == id {
			return i
		}
	}
	return -1
}
