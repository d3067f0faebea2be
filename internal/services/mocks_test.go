package services

import (
	"context"
	"testing"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBackend implements Backend for testing
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) FetchEntries(ctx context.Context, query string) ([]mail.Entry, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]mail.Entry), args.Error(1)
}

func (m *MockBackend) FetchMessages(ctx context.Context, threadID string) ([]*mail.Message, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mail.Message), args.Error(1)
}

func (m *MockBackend) EditTags(ctx context.Context, req MutationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBackend) AllocateGroup(ctx context.Context, threadIDs []string) (string, error) {
	args := m.Called(ctx, threadIDs)
	return args.String(0), args.Error(1)
}

// methodCalls returns the recorded calls of one method in call order
func (m *MockBackend) methodCalls(method string) []mock.Call {
	var out []mock.Call
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

const testQuery = "tag:inbox"

func summary(id string, tags ...string) *mail.Summary {
	return &mail.Summary{ThreadID: id, Subject: "subject " + id, Tags: tags, Matched: 1, Total: 1}
}

func message(id, messageID, inReplyTo string, tags ...string) *mail.Message {
	return &mail.Message{ID: id, MessageID: messageID, InReplyTo: inReplyTo, Tags: tags}
}

// newTestSession loads the given summaries, grouped by their markers, into
// a fresh session.
func newTestSession(t *testing.T, summaries ...*mail.Summary) (*Session, *MockBackend) {
	t.Helper()
	backend := &MockBackend{}
	backend.On("FetchEntries", mock.Anything, testQuery).Return(mail.GroupSummaries(summaries), nil).Once()

	s := NewSession(backend, SessionOptions{})
	require.NoError(t, s.Refresh(context.Background(), testQuery, OrderDefault))
	return s, backend
}

func unitThreads(units []Unit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.ThreadID)
	}
	return out
}
