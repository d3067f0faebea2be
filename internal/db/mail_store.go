package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/services"
	"github.com/rs/zerolog"
)

// MailStore serves conversations, messages and tag edits from the local
// database. It implements services.Backend.
type MailStore struct {
	db         *sql.DB
	maxResults int
	logger     zerolog.Logger
}

var _ services.Backend = (*MailStore)(nil)

// NewMailStore creates a mail store from a base store
func NewMailStore(store *Store) *MailStore {
	if store == nil {
		return nil
	}
	return &MailStore{db: store.DB(), logger: zerolog.Nop()}
}

// SetLogger sets the logger for debug output
func (ms *MailStore) SetLogger(logger zerolog.Logger) {
	ms.logger = logger
}

// SetMaxResults caps the number of conversations a query returns; zero
// means no limit.
func (ms *MailStore) SetMaxResults(n int) {
	ms.maxResults = n
}

// FetchEntries returns the conversations with at least one message matching
// query, newest first, grouped by their group markers.
func (ms *MailStore) FetchEntries(ctx context.Context, query string) ([]mail.Entry, error) {
	if ms == nil || ms.db == nil {
		return nil, fmt.Errorf("mail store not initialized")
	}
	where, args := parseQuery(query).sql()

	rows, err := ms.db.QueryContext(ctx, `SELECT m.thread_id, COUNT(*) FROM messages m WHERE `+where+` GROUP BY m.thread_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search conversations: %w", err)
	}
	matched := make(map[string]int)
	var ids []string
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		matched[id] = n
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	summaries, err := ms.loadSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		s.Matched = matched[s.ThreadID]
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].Newest.Equal(summaries[j].Newest) {
			return summaries[i].Newest.After(summaries[j].Newest)
		}
		return summaries[i].ThreadID < summaries[j].ThreadID
	})
	if ms.maxResults > 0 && len(summaries) > ms.maxResults {
		summaries = summaries[:ms.maxResults]
	}
	ms.logger.Debug().Str("query", query).Int("conversations", len(summaries)).Msg("conversations fetched")
	return mail.GroupSummaries(summaries), nil
}

func (ms *MailStore) loadSummaries(ctx context.Context, ids []string) ([]*mail.Summary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)

	rows, err := ms.db.QueryContext(ctx, `SELECT thread_id, sender, subject, sent_at FROM messages
WHERE thread_id IN (`+in+`) ORDER BY thread_id, sent_at, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	byID := make(map[string]*mail.Summary, len(ids))
	var out []*mail.Summary
	for rows.Next() {
		var threadID, sender, subject string
		var sentAt int64
		if err := rows.Scan(&threadID, &sender, &subject, &sentAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		s, ok := byID[threadID]
		if !ok {
			s = &mail.Summary{ThreadID: threadID, Subject: subject}
			byID[threadID] = s
			out = append(out, s)
		}
		date := time.Unix(sentAt, 0)
		if s.Oldest.IsZero() || date.Before(s.Oldest) {
			s.Oldest = date
		}
		if date.After(s.Newest) {
			s.Newest = date
		}
		if author := authorName(sender); author != "" && !mail.HasTag(s.Authors, author) {
			s.Authors = append(s.Authors, author)
		}
		s.Total++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	rows, err = ms.db.QueryContext(ctx, `SELECT DISTINCT m.thread_id, t.tag FROM message_tags t
JOIN messages m ON m.id = t.message_id WHERE m.thread_id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var threadID, tag string
		if err := rows.Scan(&threadID, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		if s, ok := byID[threadID]; ok {
			s.Tags = append(s.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	for _, s := range out {
		s.Tags = mail.SortedTags(s.Tags)
	}
	return out, nil
}

// FetchMessages returns the messages of one conversation, oldest first
func (ms *MailStore) FetchMessages(ctx context.Context, threadID string) ([]*mail.Message, error) {
	if ms == nil || ms.db == nil {
		return nil, fmt.Errorf("mail store not initialized")
	}
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("threadID cannot be empty: %w", services.ErrInvalidInput)
	}

	rows, err := ms.db.QueryContext(ctx, `SELECT id, message_id, in_reply_to, sender, subject, sent_at
FROM messages WHERE thread_id = ? ORDER BY sent_at, position`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	var msgs []*mail.Message
	byID := make(map[string]*mail.Message)
	for rows.Next() {
		m := &mail.Message{}
		var sentAt int64
		if err := rows.Scan(&m.ID, &m.MessageID, &m.InReplyTo, &m.From, &m.Subject, &sentAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Date = time.Unix(sentAt, 0)
		msgs = append(msgs, m)
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()
	if len(msgs) == 0 {
		return nil, fmt.Errorf("conversation %s: %w", threadID, services.ErrNotFound)
	}

	rows, err = ms.db.QueryContext(ctx, `SELECT t.message_id, t.tag FROM message_tags t
JOIN messages m ON m.id = t.message_id WHERE m.thread_id = ? ORDER BY t.tag`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		if m, ok := byID[id]; ok {
			m.Tags = append(m.Tags, tag)
		}
	}
	return msgs, rows.Err()
}

// EditTags applies one edit expression to every message of the target
// conversations in a single transaction.
func (ms *MailStore) EditTags(ctx context.Context, req services.MutationRequest) error {
	if ms == nil || ms.db == nil {
		return fmt.Errorf("mail store not initialized")
	}
	edit, err := req.Edit()
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	if len(req.Targets) == 0 {
		return nil
	}

	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := applyEdit(ctx, tx, req.Targets, edit); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag edit: %w", err)
	}
	ms.logger.Debug().Str("expression", req.Expression).Str("targets", req.TargetList()).Msg("tags edited")
	return nil
}

func applyEdit(ctx context.Context, tx *sql.Tx, targets []string, edit mail.TagEdit) error {
	for _, id := range targets {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE thread_id = ?`, id).Scan(&n); err != nil {
			return fmt.Errorf("failed to look up conversation: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("conversation %s: %w", id, services.ErrNotFound)
		}
		for _, tag := range edit.Remove {
			if _, err := tx.ExecContext(ctx, `DELETE FROM message_tags WHERE tag = ?
AND message_id IN (SELECT id FROM messages WHERE thread_id = ?)`, tag, id); err != nil {
				return fmt.Errorf("failed to remove tag %s: %w", tag, err)
			}
		}
		for _, tag := range edit.Add {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO message_tags(message_id, tag)
SELECT id, ? FROM messages WHERE thread_id = ?`, tag, id); err != nil {
				return fmt.Errorf("failed to add tag %s: %w", tag, err)
			}
		}
	}
	return nil
}

// AllocateGroup tags the conversations with a fresh group marker
func (ms *MailStore) AllocateGroup(ctx context.Context, threadIDs []string) (string, error) {
	if len(threadIDs) == 0 {
		return "", fmt.Errorf("no conversations to group: %w", services.ErrInvalidInput)
	}
	marker := mail.NewGroupMarker()
	if err := ms.EditTags(ctx, services.MutationRequest{Expression: marker, Targets: threadIDs}); err != nil {
		return "", fmt.Errorf("failed to allocate group: %w", err)
	}
	return marker, nil
}

// Tags returns every tag in use with the number of conversations carrying it
func (ms *MailStore) Tags(ctx context.Context) (map[string]int, error) {
	rows, err := ms.db.QueryContext(ctx, `SELECT t.tag, COUNT(DISTINCT m.thread_id) FROM message_tags t
JOIN messages m ON m.id = t.message_id GROUP BY t.tag`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out[tag] = n
	}
	return out, rows.Err()
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

// authorName returns the display part of a From header
func authorName(from string) string {
	from = strings.TrimSpace(from)
	if i := strings.Index(from, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return strings.Trim(from, "<>")
}
