package gmail

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/tagmail/internal/services"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const user = "me"

// threadHeaders are the only headers threading and list rows need
var threadHeaders = []string{"From", "Subject", "Date", "Message-ID", "In-Reply-To"}

// Client wraps the gmail.Service and provides convenience methods
type Client struct {
	Service *gmail.Service

	mu        sync.Mutex
	labelByID map[string]*gmail.Label
}

// NewClient creates a new Gmail client
func NewClient(service *gmail.Service) *Client {
	return &Client{Service: service}
}

func (c *Client) ready() error {
	if c == nil || c.Service == nil {
		return fmt.Errorf("gmail client not initialized")
	}
	return nil
}

// ListThreads returns the ids of the threads matching query
func (c *Client) ListThreads(ctx context.Context, query string, maxResults int64, includeTrash bool) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	call := c.Service.Users.Threads.List(user).Q(query).IncludeSpamTrash(includeTrash).Context(ctx)
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", classify(err))
	}
	ids := make([]string, 0, len(res.Threads))
	for _, t := range res.Threads {
		ids = append(ids, t.Id)
	}
	return ids, nil
}

// GetThread retrieves a thread with message metadata only
func (c *Client) GetThread(ctx context.Context, id string) (*gmail.Thread, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	t, err := c.Service.Users.Threads.Get(user, id).
		Format("metadata").
		MetadataHeaders(threadHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", id, classify(err))
	}
	return t, nil
}

// Labels returns a copy of every label keyed by id, loading them once
func (c *Client) Labels(ctx context.Context) (map[string]*gmail.Label, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.labelByID != nil {
		return maps.Clone(c.labelByID), nil
	}
	res, err := c.Service.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", classify(err))
	}
	c.labelByID = make(map[string]*gmail.Label, len(res.Labels))
	for _, l := range res.Labels {
		c.labelByID[l.Id] = l
	}
	return maps.Clone(c.labelByID), nil
}

// CreateLabel creates a new user label
func (c *Client) CreateLabel(ctx context.Context, name string) (*gmail.Label, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("label name cannot be empty")
	}
	label, err := c.Service.Users.Labels.Create(user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create label %s: %w", name, classify(err))
	}
	c.mu.Lock()
	if c.labelByID != nil {
		c.labelByID[label.Id] = label
	}
	c.mu.Unlock()
	return label, nil
}

// BatchModify adds and removes labels on many messages in one call
func (c *Client) BatchModify(ctx context.Context, messageIDs, add, remove []string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(messageIDs) == 0 || (len(add) == 0 && len(remove) == 0) {
		return nil
	}
	err := c.Service.Users.Messages.BatchModify(user, &gmail.BatchModifyMessagesRequest{
		Ids:            messageIDs,
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to modify labels: %w", classify(err))
	}
	return nil
}

// Helper functions
func extractHeader(msg *gmail.Message, name string) string {
	if msg.Payload == nil || msg.Payload.Headers == nil {
		return ""
	}
	for _, header := range msg.Payload.Headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func extractDate(msg *gmail.Message) time.Time {
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate)
	}
	dateStr := extractHeader(msg, "Date")
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700"} {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t
		}
	}
	return time.Time{}
}

// classify maps API status codes onto the service error taxonomy
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	var sentinel error
	switch apiErr.Code {
	case http.StatusUnauthorized:
		sentinel = services.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = services.ErrForbidden
	case http.StatusNotFound:
		sentinel = services.ErrNotFound
	case http.StatusTooManyRequests:
		sentinel = services.ErrRateLimited
	case http.StatusBadRequest:
		sentinel = services.ErrInvalidInput
	default:
		if apiErr.Code >= 500 {
			sentinel = services.ErrServiceUnavailable
		}
	}
	if sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
