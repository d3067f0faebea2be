package gmail

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/services"
	"github.com/ajramos/tagmail/internal/threading"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
)

// Gmail caps BatchModify at this many message ids per call
const batchModifyLimit = 1000

// system label ids and the tags they surface as
var systemTags = map[string]string{
	"UNREAD":    mail.TagUnread,
	"TRASH":     mail.TagDeleted,
	"INBOX":     "inbox",
	"STARRED":   "flagged",
	"IMPORTANT": "important",
	"SENT":      "sent",
	"DRAFT":     "draft",
	"SPAM":      "spam",
}

// search operators for the system tags
var systemSearch = map[string]string{
	mail.TagUnread:  "is:unread",
	mail.TagDeleted: "in:trash",
	"inbox":         "in:inbox",
	"flagged":       "is:starred",
	"important":     "is:important",
	"sent":          "in:sent",
	"draft":         "in:draft",
	"spam":          "in:spam",
}

// Backend serves conversations from a Gmail account. Labels are tags and
// every tag edit applies to all messages of a thread.
type Backend struct {
	client      *Client
	maxResults  int64
	concurrency int
	logger      zerolog.Logger

	mu       sync.Mutex
	messages map[string][]string // threadID -> message ids seen last
}

var _ services.Backend = (*Backend)(nil)

// NewBackend creates a Gmail backend
func NewBackend(client *Client) *Backend {
	return &Backend{
		client:      client,
		maxResults:  50,
		concurrency: 8,
		logger:      zerolog.Nop(),
		messages:    make(map[string][]string),
	}
}

// SetLogger sets the logger for debug output
func (b *Backend) SetLogger(logger zerolog.Logger) {
	b.logger = logger
}

// SetMaxResults caps the number of threads a query returns
func (b *Backend) SetMaxResults(n int64) {
	if n > 0 {
		b.maxResults = n
	}
}

// SetConcurrency caps the number of thread fetches in flight
func (b *Backend) SetConcurrency(n int) {
	if n > 0 {
		b.concurrency = n
	}
}

// FetchEntries lists the threads matching query and loads their metadata
// in parallel, keeping Gmail's order.
func (b *Backend) FetchEntries(ctx context.Context, query string) ([]mail.Entry, error) {
	q, includeTrash := TranslateQuery(query)
	ids, err := b.client.ListThreads(ctx, q, b.maxResults, includeTrash)
	if err != nil {
		return nil, err
	}
	labels, err := b.client.Labels(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*mail.Summary, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			t, err := b.client.GetThread(gctx, id)
			if err != nil {
				return err
			}
			msgs := convertMessages(t.Messages, labels)
			b.remember(id, msgs)
			summaries[i] = summarize(id, msgs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	b.logger.Debug().Str("query", q).Int("threads", len(ids)).Msg("threads fetched")
	return mail.GroupSummaries(summaries), nil
}

// FetchMessages loads the messages of one thread
func (b *Backend) FetchMessages(ctx context.Context, threadID string) ([]*mail.Message, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("threadID cannot be empty: %w", services.ErrInvalidInput)
	}
	t, err := b.client.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	labels, err := b.client.Labels(ctx)
	if err != nil {
		return nil, err
	}
	msgs := convertMessages(t.Messages, labels)
	b.remember(threadID, msgs)
	return msgs, nil
}

// EditTags maps the edit onto label ids, creating missing labels for
// additions, and applies it to every message of the targets.
func (b *Backend) EditTags(ctx context.Context, req services.MutationRequest) error {
	edit, err := req.Edit()
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	if len(req.Targets) == 0 {
		return nil
	}

	var add, remove []string
	for _, tag := range edit.Add {
		id, err := b.labelID(ctx, tag, true)
		if err != nil {
			return err
		}
		add = append(add, id)
	}
	for _, tag := range edit.Remove {
		id, err := b.labelID(ctx, tag, false)
		if err != nil {
			return err
		}
		if id != "" {
			remove = append(remove, id)
		}
	}

	var messageIDs []string
	for _, threadID := range req.Targets {
		ids, err := b.threadMessageIDs(ctx, threadID)
		if err != nil {
			return err
		}
		messageIDs = append(messageIDs, ids...)
	}
	for start := 0; start < len(messageIDs); start += batchModifyLimit {
		end := min(start+batchModifyLimit, len(messageIDs))
		if err := b.client.BatchModify(ctx, messageIDs[start:end], add, remove); err != nil {
			return err
		}
	}
	b.logger.Debug().Str("expression", req.Expression).Int("threads", len(req.Targets)).Int("messages", len(messageIDs)).Msg("labels modified")
	return nil
}

// AllocateGroup creates a fresh marker label and applies it to the threads
func (b *Backend) AllocateGroup(ctx context.Context, threadIDs []string) (string, error) {
	if len(threadIDs) == 0 {
		return "", fmt.Errorf("no threads to group: %w", services.ErrInvalidInput)
	}
	marker := mail.NewGroupMarker()
	if err := b.EditTags(ctx, services.MutationRequest{Expression: marker, Targets: threadIDs}); err != nil {
		return "", fmt.Errorf("failed to allocate group: %w", err)
	}
	return marker, nil
}

func (b *Backend) remember(threadID string, msgs []*mail.Message) {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	b.mu.Lock()
	b.messages[threadID] = ids
	b.mu.Unlock()
}

func (b *Backend) threadMessageIDs(ctx context.Context, threadID string) ([]string, error) {
	b.mu.Lock()
	ids, ok := b.messages[threadID]
	b.mu.Unlock()
	if ok {
		return ids, nil
	}
	msgs, err := b.FetchMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	ids = make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// labelID resolves a tag to a label id. Unknown tags are created when
// create is set and reported as "" otherwise.
func (b *Backend) labelID(ctx context.Context, tag string, create bool) (string, error) {
	for id, t := range systemTags {
		if t == tag {
			return id, nil
		}
	}
	labels, err := b.client.Labels(ctx)
	if err != nil {
		return "", err
	}
	for id, l := range labels {
		if l.Name == tag {
			return id, nil
		}
	}
	if !create {
		return "", nil
	}
	l, err := b.client.CreateLabel(ctx, tag)
	if err != nil {
		return "", err
	}
	b.logger.Info().Str("label", tag).Msg("label created")
	return l.Id, nil
}

func convertMessages(in []*gmail.Message, labels map[string]*gmail.Label) []*mail.Message {
	out := make([]*mail.Message, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		out = append(out, &mail.Message{
			ID:        m.Id,
			MessageID: threading.StripReference(extractHeader(m, "Message-ID")),
			InReplyTo: strings.TrimSpace(extractHeader(m, "In-Reply-To")),
			From:      extractHeader(m, "From"),
			Subject:   extractHeader(m, "Subject"),
			Date:      extractDate(m),
			Tags:      labelTags(m.LabelIds, labels),
		})
	}
	return out
}

// labelTags turns label ids into tags, dropping category labels
func labelTags(ids []string, labels map[string]*gmail.Label) []string {
	var tags []string
	for _, id := range ids {
		if strings.HasPrefix(id, "CATEGORY_") {
			continue
		}
		if tag, ok := systemTags[id]; ok {
			tags = append(tags, tag)
			continue
		}
		if l, ok := labels[id]; ok && l.Name != "" {
			tags = append(tags, l.Name)
			continue
		}
		tags = append(tags, id)
	}
	return mail.SortedTags(tags)
}

func summarize(threadID string, msgs []*mail.Message) *mail.Summary {
	s := &mail.Summary{ThreadID: threadID, Total: len(msgs), Matched: len(msgs)}
	var tags []string
	for i, m := range msgs {
		if i == 0 {
			s.Subject = m.Subject
		}
		if s.Oldest.IsZero() || m.Date.Before(s.Oldest) {
			s.Oldest = m.Date
		}
		if m.Date.After(s.Newest) {
			s.Newest = m.Date
		}
		if name := authorName(m.From); name != "" && !mail.HasTag(s.Authors, name) {
			s.Authors = append(s.Authors, name)
		}
		tags = append(tags, m.Tags...)
	}
	s.Tags = mail.SortedTags(tags)
	return s
}

// TranslateQuery rewrites tag terms into Gmail search operators. The
// second result reports whether trashed threads must be included.
func TranslateQuery(query string) (string, bool) {
	var parts []string
	includeTrash := false
	for _, tok := range strings.Fields(query) {
		if tok == "*" {
			continue
		}
		neg := ""
		body := tok
		if strings.HasPrefix(body, "-") && len(body) > 1 {
			neg, body = "-", body[1:]
		}
		var tag string
		switch {
		case strings.HasPrefix(body, "tag:") && len(body) > len("tag:"):
			tag = strings.TrimPrefix(body, "tag:")
		case strings.HasPrefix(body, "is:") && len(body) > len("is:"):
			tag = strings.TrimPrefix(body, "is:")
			if _, ok := systemSearch[tag]; !ok {
				parts = append(parts, tok)
				continue
			}
		default:
			parts = append(parts, tok)
			continue
		}
		if tag == mail.TagDeleted && neg == "" {
			includeTrash = true
		}
		if op, ok := systemSearch[tag]; ok {
			parts = append(parts, neg+op)
			continue
		}
		parts = append(parts, neg+"label:"+searchLabel(tag))
	}
	return strings.Join(parts, " "), includeTrash
}

// searchLabel spells a label name the way Gmail search expects it
func searchLabel(name string) string {
	return strings.NewReplacer(" ", "-", "/", "-", ":", "-").Replace(strings.ToLower(name))
}

func authorName(from string) string {
	from = strings.TrimSpace(from)
	if i := strings.Index(from, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return strings.Trim(from, "<>")
}
