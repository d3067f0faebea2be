package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/rs/zerolog"
)

// SessionOptions configures a new session
type SessionOptions struct {
	Mode          Mode
	MessageTTL    time.Duration
	CollapseStore CollapseStore
	UndoService   UndoService
	Logger        *zerolog.Logger
}

// Session owns everything a view session loads: the entry list and the
// per-conversation message lists. Its controllers (Navigator, Editor) are
// the only writers; everyone else reads snapshots.
type Session struct {
	mu sync.Mutex

	backend  Backend
	threads  ThreadService
	collapse CollapseStore
	logger   zerolog.Logger

	query    string
	ordering Ordering
	entries  []mail.Entry
	messages map[string][]*mail.Message

	nav    *Navigator
	editor *Editor
}

// NewSession wires a session and its controllers around a backend
func NewSession(backend Backend, opts SessionOptions) *Session {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	collapse := opts.CollapseStore
	if collapse == nil {
		collapse = NewMemoryCollapseStore()
	}
	undo := opts.UndoService
	if undo == nil {
		undo = NewUndoService()
	}
	threads := NewThreadService(backend, opts.MessageTTL)
	threads.SetLogger(logger.With().Str("component", "threads").Logger())

	s := &Session{
		backend:  backend,
		threads:  threads,
		collapse: collapse,
		logger:   logger.With().Str("component", "session").Logger(),
		messages: make(map[string][]*mail.Message),
	}
	s.nav = newNavigator(s, opts.Mode, logger.With().Str("component", "navigator").Logger())
	s.editor = newEditor(s, undo, logger.With().Str("component", "editor").Logger())
	return s
}

// Navigator returns the session's group navigator
func (s *Session) Navigator() *Navigator { return s.nav }

// Editor returns the session's selection and batch-edit controller
func (s *Session) Editor() *Editor { return s.editor }

// Query returns the query the entries were fetched with
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Ordering returns how entries are ordered
func (s *Session) Ordering() Ordering {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ordering
}

// Refresh fetches the entries for query and re-derives every view
func (s *Session) Refresh(ctx context.Context, query string, ordering Ordering) error {
	if s.backend == nil {
		return fmt.Errorf("backend not initialized")
	}
	entries, err := s.backend.FetchEntries(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to fetch conversations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.query = query
	s.ordering = ordering
	s.entries = s.orderLocked(entries)

	present := make(map[string]struct{})
	for _, sum := range mail.FlattenEntries(s.entries) {
		present[sum.ThreadID] = struct{}{}
	}
	for id := range s.messages {
		if _, ok := present[id]; !ok {
			delete(s.messages, id)
		}
	}

	for _, e := range s.entries {
		if !e.IsGroup() {
			continue
		}
		marker := e.Group.Marker
		if _, known := s.nav.collapsed[marker]; known {
			continue
		}
		collapsed, found, err := s.collapse.IsCollapsed(ctx, marker)
		if err != nil {
			s.logger.Warn().Err(err).Str("group", marker).Msg("could not load collapse state")
			continue
		}
		if found {
			s.nav.collapsed[marker] = collapsed
		}
	}

	s.logger.Debug().Str("query", query).Int("entries", len(s.entries)).Msg("entries refreshed")
	s.rederiveLocked()
	return nil
}

// EnsureMessages loads the message lists of the given conversations that
// are not loaded yet. Failures for single conversations are logged and
// the first one is returned after the others were tried.
func (s *Session) EnsureMessages(ctx context.Context, threadIDs ...string) error {
	s.mu.Lock()
	var missing []string
	for _, id := range threadIDs {
		if _, ok := s.messages[id]; !ok && id != "" {
			missing = append(missing, id)
		}
	}
	s.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}

	loaded := make(map[string][]*mail.Message, len(missing))
	var errs []error
	for _, id := range missing {
		msgs, err := s.threads.GetThreadMessages(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("thread", id).Msg("could not load messages")
			errs = append(errs, err)
			continue
		}
		loaded[id] = msgs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, msgs := range loaded {
		if s.summaryLocked(id) == nil {
			continue
		}
		s.messages[id] = msgs
	}
	s.rederiveLocked()
	return errors.Join(errs...)
}

// VisibleThreadIDs returns the ids of every conversation with a visible unit
func (s *Session) VisibleThreadIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	seen := make(map[string]struct{})
	for _, u := range s.nav.units {
		if _, ok := seen[u.ThreadID]; ok {
			continue
		}
		seen[u.ThreadID] = struct{}{}
		out = append(out, u.ThreadID)
	}
	return out
}

// Entries returns a snapshot of the entry list
func (s *Session) Entries() []mail.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Entry(nil), s.entries...)
}

// Summary returns a copy of one conversation summary
func (s *Session) Summary(threadID string) (mail.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := s.summaryLocked(threadID)
	if sum == nil {
		return mail.Summary{}, false
	}
	cp := *sum
	cp.Tags = append([]string(nil), sum.Tags...)
	cp.Authors = append([]string(nil), sum.Authors...)
	return cp, true
}

// Messages returns copies of the loaded messages of a conversation
func (s *Session) Messages(threadID string) []*mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMessages(s.messages[threadID])
}

func copyMessages(msgs []*mail.Message) []*mail.Message {
	if msgs == nil {
		return nil
	}
	out := make([]*mail.Message, len(msgs))
	for i, m := range msgs {
		cp := *m
		cp.Tags = slices.Clone(m.Tags)
		out[i] = &cp
	}
	return out
}

func (s *Session) summaryLocked(threadID string) *mail.Summary {
	for _, e := range s.entries {
		for _, m := range e.Members() {
			if m.ThreadID == threadID {
				return m
			}
		}
	}
	return nil
}

func (s *Session) membersWithTagLocked(tag string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, sum := range mail.FlattenEntries(s.entries) {
		if sum.HasTag(tag) {
			out[sum.ThreadID] = struct{}{}
		}
	}
	return out
}

func (s *Session) orderLocked(entries []mail.Entry) []mail.Entry {
	if s.ordering == OrderDue {
		SortByDueDate(entries)
	}
	return entries
}

// mirrorLocked applies edit to the local copies of the targets and returns
// what actually changed per conversation.
func (s *Session) mirrorLocked(targets []string, edit mail.TagEdit) map[string]mail.TagEdit {
	changes := make(map[string]mail.TagEdit, len(targets))
	for _, id := range targets {
		sum := s.summaryLocked(id)
		if sum == nil {
			continue
		}
		if diff := edit.Diff(sum.Tags); !diff.IsEmpty() {
			changes[id] = diff
		}
		sum.Tags = edit.Apply(sum.Tags)
		for _, m := range s.messages[id] {
			m.Tags = edit.Apply(m.Tags)
		}
	}
	return changes
}

// rederiveLocked regroups the entries from the current tags and recomputes
// every derived view.
func (s *Session) rederiveLocked() {
	s.entries = s.orderLocked(mail.GroupSummaries(mail.FlattenEntries(s.entries)))
	s.reconcileLocked()
}

// reconcileLocked recomputes the visible units and drops selections that
// are no longer visible.
func (s *Session) reconcileLocked() {
	s.nav.rebuildLocked()
	s.editor.pruneLocked()
}
