package services

import (
	"context"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
)

// ConversationRepository fetches list and thread data from a backend
type ConversationRepository interface {
	// FetchEntries returns the ordered entries matching query.
	FetchEntries(ctx context.Context, query string) ([]mail.Entry, error)
	// FetchMessages returns the flat message list of one conversation.
	FetchMessages(ctx context.Context, threadID string) ([]*mail.Message, error)
}

// TagMutator applies one batched tag edit to one or more conversations
type TagMutator interface {
	EditTags(ctx context.Context, req MutationRequest) error
}

// GroupAllocator allocates a fresh group marker and assigns it to the
// given conversations
type GroupAllocator interface {
	AllocateGroup(ctx context.Context, threadIDs []string) (string, error)
}

// Backend is everything the session needs from the other side
type Backend interface {
	ConversationRepository
	TagMutator
	GroupAllocator
}

// CollapseStore persists the collapsed state of groups, keyed by marker
type CollapseStore interface {
	IsCollapsed(ctx context.Context, marker string) (collapsed bool, found bool, err error)
	SetCollapsed(ctx context.Context, marker string, collapsed bool) error
}

// ThreadService loads and caches the messages of a conversation
type ThreadService interface {
	GetThreadMessages(ctx context.Context, threadID string) ([]*mail.Message, error)
	Invalidate(threadID string)
	ClearMessageCache()
}

// UndoService keeps the last reversible tag mutation
type UndoService interface {
	RecordAction(ctx context.Context, action *UndoableAction) error
	LastAction() *UndoableAction
	Clear()
}

// QueryRepository persists saved queries
type QueryRepository interface {
	SaveQuery(ctx context.Context, name, query, description string) (*SavedQuery, error)
	GetQueryByName(ctx context.Context, name string) (*SavedQuery, error)
	ListQueries(ctx context.Context) ([]*SavedQuery, error)
	UpdateQueryUsage(ctx context.Context, id int64) error
	DeleteQueryByName(ctx context.Context, name string) error
}

// QueryService manages named queries
type QueryService interface {
	SaveQuery(ctx context.Context, name, query, description string) (*SavedQuery, error)
	GetQuery(ctx context.Context, name string) (*SavedQuery, error)
	ListQueries(ctx context.Context) ([]*SavedQuery, error)
	DeleteQuery(ctx context.Context, name string) error
	ResolveQuery(ctx context.Context, name string) (string, error)
}

// Data structures

// SavedQuery is a query stored under a name
type SavedQuery struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Query       string `json:"query"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
	LastUsed    int64  `json:"last_used"`
	UseCount    int    `json:"use_count"`
}

// TargetDelimiter joins target ids on the wire.
const TargetDelimiter = " "

// MutationRequest is one batched tag edit: a space-joined expression
// applied to every target conversation.
type MutationRequest struct {
	Expression string
	Targets    []string
}

// TargetList renders the targets joined by TargetDelimiter.
func (r MutationRequest) TargetList() string {
	return strings.Join(r.Targets, TargetDelimiter)
}

// Edit parses the request expression.
func (r MutationRequest) Edit() (mail.TagEdit, error) {
	return mail.ParseTagEdit(r.Expression)
}

// Mode selects how conversations are laid out in the list.
type Mode int

const (
	// ModeFocused shows only the focused view of the active conversation.
	ModeFocused Mode = iota
	// ModeFlat shows every message of every visible conversation.
	ModeFlat
)

func (m Mode) String() string {
	if m == ModeFlat {
		return "flat"
	}
	return "focused"
}

// ParseMode accepts "flat" or "focused"; anything else is focused.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "flat") {
		return ModeFlat
	}
	return ModeFocused
}

// Ordering selects how fetched entries are ordered.
type Ordering int

const (
	OrderDefault Ordering = iota
	OrderDue
)

// Unit is one visible, navigable row.
type Unit struct {
	ThreadID string
	// GroupMarker is set when the conversation belongs to a group.
	GroupMarker string
	// Representative marks the single row standing in for a collapsed group.
	Representative bool
	// MessageID and Depth are set in flat mode, where each message is a unit.
	MessageID string
	Depth     int
}

// SelectionID is the id toggled when this unit is selected: the group
// marker for a collapsed group's row, the thread id otherwise.
func (u Unit) SelectionID() string {
	if u.Representative {
		return u.GroupMarker
	}
	return u.ThreadID
}

// UndoActionType names the kind of recorded mutation
type UndoActionType string

const (
	UndoActionTagEdit UndoActionType = "tag_edit"
	UndoActionGroup   UndoActionType = "group"
	UndoActionDelete  UndoActionType = "delete"
	UndoActionDone    UndoActionType = "done"
)

// UndoableAction records what a mutation actually changed, per thread
type UndoableAction struct {
	ID          string                  `json:"id"`
	Type        UndoActionType          `json:"type"`
	Description string                  `json:"description"`
	Timestamp   time.Time               `json:"timestamp"`
	Changes     map[string]mail.TagEdit `json:"changes"` // threadID -> applied diff
}
