package gmail

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ajramos/tagmail/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

func TestNewClient(t *testing.T) {
	service := &gmail.Service{}
	client := NewClient(service)

	assert.NotNil(t, client)
	assert.Equal(t, service, client.Service)
}

func TestClient_NotInitialized(t *testing.T) {
	ctx := context.Background()
	clients := map[string]*Client{
		"nil client":  nil,
		"nil service": NewClient(nil),
	}
	for name, client := range clients {
		t.Run(name, func(t *testing.T) {
			_, err := client.ListThreads(ctx, "", 10, false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "gmail client not initialized")

			_, err = client.GetThread(ctx, "t1")
			assert.Error(t, err)
			_, err = client.Labels(ctx)
			assert.Error(t, err)
			_, err = client.CreateLabel(ctx, "work")
			assert.Error(t, err)
			assert.Error(t, client.BatchModify(ctx, []string{"m1"}, []string{"L"}, nil))
		})
	}
}

func TestExtractHeader(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
		{Name: "Subject", Value: "Hello"},
		{Name: "message-id", Value: "<a@x>"},
	}}}

	assert.Equal(t, "Hello", extractHeader(msg, "Subject"))
	assert.Equal(t, "<a@x>", extractHeader(msg, "Message-ID"))
	assert.Empty(t, extractHeader(msg, "In-Reply-To"))
	assert.Empty(t, extractHeader(&gmail.Message{}, "Subject"))
}

func TestExtractDate(t *testing.T) {
	withInternal := &gmail.Message{InternalDate: 1700000000000}
	assert.Equal(t, time.UnixMilli(1700000000000), extractDate(withInternal))

	withHeader := &gmail.Message{Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
		{Name: "Date", Value: "Tue, 14 Nov 2023 22:13:20 +0000"},
	}}}
	assert.True(t, extractDate(withHeader).Equal(time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)))

	assert.True(t, extractDate(&gmail.Message{}).IsZero())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, services.ErrUnauthorized},
		{http.StatusForbidden, services.ErrForbidden},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusTooManyRequests, services.ErrRateLimited},
		{http.StatusBadRequest, services.ErrInvalidInput},
		{http.StatusBadGateway, services.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := classify(&googleapi.Error{Code: tt.code, Message: "boom"})
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "boom")
		})
	}

	plain := errors.New("plain")
	assert.Same(t, plain, classify(plain))

	teapot := &googleapi.Error{Code: http.StatusTeapot}
	assert.Equal(t, error(teapot), classify(teapot))
}
