package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCommander_Navigation(t *testing.T) {
	ctx := context.Background()
	s, backend := groupedSession(t)
	backend.On("FetchMessages", mock.Anything, mock.Anything).Return([]*mail.Message{message("m1", "1@x", "")}, nil)
	c := NewCommander(s)

	res := c.Execute(ctx, CmdStepDown, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "b", activeThread(t, s.Navigator()))
	assert.Len(t, s.Messages("b"), 1, "the active conversation is loaded")

	res = c.Execute(ctx, CmdToggleGroupCollapse, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "Group expanded", res.Status)

	res = c.Execute(ctx, CmdActivateLast, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "d", activeThread(t, s.Navigator()))

	res = c.Execute(ctx, CmdToggleGroupCollapse, "")
	assert.Equal(t, "Not in a group", res.Status)

	res = c.Execute(ctx, CmdStepOutward, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "Already at the start of the conversation", res.Status)
}

func TestCommander_ToggleFlatLoadsVisibleThreads(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestSession(t, summary("a"), summary("b"))
	backend.On("FetchMessages", mock.Anything, "a").Return([]*mail.Message{message("a1", "1@x", ""), message("a2", "2@x", "<1@x>")}, nil)
	backend.On("FetchMessages", mock.Anything, "b").Return([]*mail.Message{message("b1", "3@x", "")}, nil)
	c := NewCommander(s)

	res := c.Execute(ctx, CmdToggleFlatFocused, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "Flat view", res.Status)
	assert.Len(t, s.Navigator().Units(), 3)

	res = c.Execute(ctx, CmdToggleFlatFocused, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "Focused view", res.Status)
	assert.Len(t, s.Navigator().Units(), 2)
}

func TestCommander_MarkDoneActive(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestSession(t,
		summary("foo", "todo", "due:1970-01-01"),
		summary("bar", "todo"),
	)
	backend.On("EditTags", mock.Anything, mock.Anything).Return(nil)
	c := NewCommander(s)

	require.NoError(t, c.Execute(ctx, CmdToggleSelect, "foo").Err)
	require.NoError(t, c.Execute(ctx, CmdToggleSelect, "bar").Err)

	res := c.Execute(ctx, CmdMarkDoneActive, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "Marked 2 conversations done", res.Status)
	backend.AssertNumberOfCalls(t, "EditTags", 2)

	foo, _ := s.Summary("foo")
	bar, _ := s.Summary("bar")
	assert.False(t, foo.HasTag("todo"))
	assert.False(t, bar.HasTag("todo"))
	assert.Empty(t, mail.DueTags(foo.Tags))
}

func TestCommander_FailuresBecomeStatus(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestSession(t, summary("a", "unread"))
	backend.On("EditTags", mock.Anything, mock.Anything).Return(ErrNetworkUnavailable)
	c := NewCommander(s)

	tests := []struct {
		name    string
		command string
		arg     string
		target  error
	}{
		{"transport_failure", CmdDeleteActive, "", ErrNetworkUnavailable},
		{"unknown_command", "explode", "", ErrUnknownCommand},
		{"missing_expression", CmdTagActive, "", ErrInvalidInput},
		{"invisible_selection", CmdToggleSelect, "ghost", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Execute(ctx, tt.command, tt.arg)
			assert.ErrorIs(t, res.Err, tt.target)
			assert.True(t, strings.HasPrefix(res.Status, "Error: "), res.Status)
			assert.Equal(t, IsRetryableError(tt.target), strings.HasSuffix(res.Status, "(temporary, try again)"), res.Status)
		})
	}

	sum, _ := s.Summary("a")
	assert.Equal(t, []string{"unread"}, sum.Tags)
}

func TestCommander_UndoAndRefresh(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestSession(t, summary("a", "inbox"))
	backend.On("EditTags", mock.Anything, mock.Anything).Return(nil)
	backend.On("FetchEntries", mock.Anything, testQuery).Return(mail.GroupSummaries([]*mail.Summary{summary("a", "inbox")}), nil)
	backend.On("FetchMessages", mock.Anything, "a").Return([]*mail.Message{}, nil)
	c := NewCommander(s)

	assert.Equal(t, "Nothing to undo", c.Execute(ctx, CmdUndo, "").Status)

	res := c.Execute(ctx, CmdTagActive, "-inbox")
	require.NoError(t, res.Err)
	res = c.Execute(ctx, CmdUndo, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "Undone", res.Status)

	res = c.Execute(ctx, CmdRefresh, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "1 entries", res.Status)
}

func TestCommander_ExecuteAsync(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, backend := newTestSession(t, summary("a", "unread"), summary("b"))
	started, release := make(chan struct{}), make(chan struct{})
	backend.On("EditTags", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil).Once()
	c := NewCommander(s)

	done := make(chan Result, 1)
	c.ExecuteAsync(context.Background(), CmdDeleteActive, "", func(res Result) { done <- res })

	// navigation keeps working while the edit is in flight
	<-started
	assert.True(t, s.Navigator().StepDown())
	close(release)

	select {
	case res := <-done:
		require.NoError(t, res.Err)
		assert.Equal(t, "Deleted 1 conversations", res.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("async command did not finish")
	}

	sum, _ := s.Summary("a")
	assert.True(t, sum.HasTag(mail.TagDeleted))
	assert.Equal(t, "b", activeThread(t, s.Navigator()))
}

func TestIsMutation(t *testing.T) {
	assert.True(t, IsMutation(CmdGroupActive))
	assert.True(t, IsMutation(CmdTagActive))
	assert.False(t, IsMutation(CmdStepDown))
	assert.Len(t, Commands(), 16)
}

func TestCommander_FlatModeLoadsExpandedGroup(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestSession(t, summary("a", "group:g"), summary("b", "group:g"))
	backend.On("FetchMessages", mock.Anything, "a").Return([]*mail.Message{message("a1", "a1@x", ""), message("a2", "a2@x", "<a1@x>")}, nil)
	backend.On("FetchMessages", mock.Anything, "b").Return(threeMessages("b"), nil)
	c := NewCommander(s)
	nav := s.Navigator()

	require.NoError(t, c.Execute(ctx, CmdToggleFlatFocused, "").Err)
	assert.Equal(t, []string{"a/a1", "a/a2"}, unitMessages(nav.Units()))

	res := c.Execute(ctx, CmdToggleGroupCollapse, "group:g")
	require.NoError(t, res.Err)
	assert.Equal(t, "Group expanded", res.Status)
	assert.Equal(t, []string{"a/a1", "a/a2", "b/b1", "b/b2", "b/b3"}, unitMessages(nav.Units()))

	require.NoError(t, c.Execute(ctx, CmdActivateLast, "").Err)
	u, _, _ := nav.Active()
	assert.Equal(t, "b3", u.MessageID)

	require.NoError(t, c.Execute(ctx, CmdStepUp, "").Err)
	u, _, _ = nav.Active()
	assert.Equal(t, "b2", u.MessageID)
}

func TestCommander_FlatModeLoadsAfterRefresh(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestSession(t, summary("a"))
	backend.On("FetchMessages", mock.Anything, "a").Return([]*mail.Message{message("a1", "a1@x", "")}, nil)
	backend.On("FetchMessages", mock.Anything, "b").Return(threeMessages("b"), nil)
	backend.On("FetchEntries", mock.Anything, testQuery).Return(mail.GroupSummaries([]*mail.Summary{summary("a"), summary("b")}), nil).Once()
	c := NewCommander(s)

	require.NoError(t, c.Execute(ctx, CmdToggleFlatFocused, "").Err)
	require.NoError(t, c.Execute(ctx, CmdRefresh, "").Err)
	assert.Equal(t, []string{"a/a1", "b/b1", "b/b2", "b/b3"}, unitMessages(s.Navigator().Units()))
}

func TestCommander_AsyncTargetsFollowInputOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, backend := newTestSession(t, summary("a"), summary("b"))
	backend.On("EditTags", mock.Anything, mock.Anything).Return(nil)
	c := NewCommander(s)
	ctx := context.Background()

	done := make(chan Result, 2)
	c.ExecuteAsync(ctx, CmdDeleteActive, "", func(res Result) { done <- res })
	require.NoError(t, c.Execute(ctx, CmdStepDown, "").Err)
	c.ExecuteAsync(ctx, CmdTagActive, "+later", func(res Result) { done <- res })

	for i := 0; i < 2; i++ {
		select {
		case res := <-done:
			require.NoError(t, res.Err)
		case <-time.After(2 * time.Second):
			t.Fatal("async command did not finish")
		}
	}

	calls := backend.methodCalls("EditTags")
	require.Len(t, calls, 2)
	first := calls[0].Arguments.Get(1).(MutationRequest)
	second := calls[1].Arguments.Get(1).(MutationRequest)
	assert.Equal(t, []string{"a"}, first.Targets)
	assert.Equal(t, []string{"b"}, second.Targets)
	assert.Equal(t, "later", second.Expression)
}
