package mail

import (
	"time"
)

// Message is a single email as handed over by a backend.
type Message struct {
	ID        string // transport id
	MessageID string // threading id, opaque and possibly duplicated
	InReplyTo string // raw reference, usually wrapped in angle brackets
	From      string
	Subject   string
	Date      time.Time
	Tags      []string

	// Depth is assigned by the thread assembler and cached here.
	Depth int
}

// HasTag reports whether the message carries tag.
func (m *Message) HasTag(tag string) bool {
	return m != nil && HasTag(m.Tags, tag)
}

// Summary describes one conversation in a list.
type Summary struct {
	ThreadID string
	Subject  string
	Authors  []string
	Tags     []string
	Matched  int
	Total    int
	Newest   time.Time
	Oldest   time.Time
}

// HasTag reports whether the conversation carries tag.
func (s *Summary) HasTag(tag string) bool {
	return s != nil && HasTag(s.Tags, tag)
}

// Group is a non-empty ordered set of conversations sharing a marker tag.
type Group struct {
	Marker  string
	Members []*Summary
}

// First returns the group's representative member.
func (g *Group) First() *Summary {
	if g == nil || len(g.Members) == 0 {
		return nil
	}
	return g.Members[0]
}

// EntryKind tells the two Entry variants apart.
type EntryKind int

const (
	EntryConversation EntryKind = iota
	EntryGroup
)

func (k EntryKind) String() string {
	switch k {
	case EntryConversation:
		return "conversation"
	case EntryGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Entry is a navigable row: a single conversation or a group. The kind is
// fixed when the entry is built and never re-inferred.
type Entry struct {
	Kind         EntryKind
	Conversation *Summary
	Group        *Group
}

// ConversationEntry wraps a single summary.
func ConversationEntry(s *Summary) Entry {
	return Entry{Kind: EntryConversation, Conversation: s}
}

// GroupEntry wraps a group.
func GroupEntry(g *Group) Entry {
	return Entry{Kind: EntryGroup, Group: g}
}

// ID returns the thread id of a conversation or the marker of a group.
func (e Entry) ID() string {
	switch e.Kind {
	case EntryGroup:
		if e.Group == nil {
			return ""
		}
		return e.Group.Marker
	default:
		if e.Conversation == nil {
			return ""
		}
		return e.Conversation.ThreadID
	}
}

// Members returns the conversations behind the entry.
func (e Entry) Members() []*Summary {
	switch e.Kind {
	case EntryGroup:
		if e.Group == nil {
			return nil
		}
		return e.Group.Members
	default:
		if e.Conversation == nil {
			return nil
		}
		return []*Summary{e.Conversation}
	}
}

// IsGroup reports whether the entry is a group.
func (e Entry) IsGroup() bool { return e.Kind == EntryGroup }
