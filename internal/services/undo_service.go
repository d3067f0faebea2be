package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UndoServiceImpl implements UndoService
type UndoServiceImpl struct {
	lastAction *UndoableAction
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewUndoService creates a new undo service
func NewUndoService() *UndoServiceImpl {
	return &UndoServiceImpl{logger: zerolog.Nop()}
}

// SetLogger sets the logger for debug output
func (s *UndoServiceImpl) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// RecordAction records an action for potential undo
func (s *UndoServiceImpl) RecordAction(ctx context.Context, action *UndoableAction) error {
	if action == nil {
		return fmt.Errorf("action cannot be nil")
	}

	// Generate unique ID if not provided
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Single-level undo: the newest action replaces the previous one
	s.lastAction = action
	s.logger.Debug().Str("id", action.ID).Str("type", string(action.Type)).Int("threads", len(action.Changes)).Msg("recorded undo action")
	return nil
}

// LastAction returns the action the next undo would revert
func (s *UndoServiceImpl) LastAction() *UndoableAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAction
}

// Clear forgets the recorded action
func (s *UndoServiceImpl) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAction = nil
}
