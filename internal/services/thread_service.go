package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/threading"
	"github.com/rs/zerolog"
)

// DefaultMessageCacheTTL is how long fetched thread messages stay cached
const DefaultMessageCacheTTL = 5 * time.Minute

// threadMessageCache represents cached thread messages with TTL
type threadMessageCache struct {
	messages  []*mail.Message
	timestamp time.Time
	ttl       time.Duration
}

func (c *threadMessageCache) isExpired() bool {
	return time.Since(c.timestamp) > c.ttl
}

// ThreadServiceImpl implements ThreadService
type ThreadServiceImpl struct {
	repo   ConversationRepository
	ttl    time.Duration
	logger zerolog.Logger

	// Message cache, key: threadID -> *threadMessageCache
	messageCache sync.Map
}

// NewThreadService creates a new thread service
func NewThreadService(repo ConversationRepository, ttl time.Duration) *ThreadServiceImpl {
	if ttl <= 0 {
		ttl = DefaultMessageCacheTTL
	}
	return &ThreadServiceImpl{
		repo:   repo,
		ttl:    ttl,
		logger: zerolog.Nop(),
	}
}

// SetLogger sets the logger for debug output
func (s *ThreadServiceImpl) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// GetThreadMessages returns the assembled messages of a conversation,
// served from cache while fresh. Cached messages are shared: tag edits
// mirrored into them are visible to every holder.
func (s *ThreadServiceImpl) GetThreadMessages(ctx context.Context, threadID string) ([]*mail.Message, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("threadID cannot be empty: %w", ErrInvalidInput)
	}
	if s.repo == nil {
		return nil, fmt.Errorf("conversation repository not initialized")
	}

	if cached, ok := s.messageCache.Load(threadID); ok {
		if cache, ok := cached.(*threadMessageCache); ok && !cache.isExpired() {
			return cache.messages, nil
		}
		s.messageCache.Delete(threadID)
	}

	messages, err := s.repo.FetchMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread messages: %w", err)
	}
	threading.Assemble(messages)

	s.messageCache.Store(threadID, &threadMessageCache{
		messages:  messages,
		timestamp: time.Now(),
		ttl:       s.ttl,
	})
	s.logger.Debug().Str("thread", threadID).Int("messages", len(messages)).Msg("thread messages loaded")
	return messages, nil
}

// Invalidate drops one conversation from the cache
func (s *ThreadServiceImpl) Invalidate(threadID string) {
	s.messageCache.Delete(threadID)
}

// ClearMessageCache removes expired entries from the message cache
func (s *ThreadServiceImpl) ClearMessageCache() {
	s.messageCache.Range(func(key, value interface{}) bool {
		if cache, ok := value.(*threadMessageCache); ok && cache.isExpired() {
			s.messageCache.Delete(key)
		}
		return true
	})
}
