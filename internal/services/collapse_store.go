package services

import (
	"context"
	"sync"
)

// MemoryCollapseStore keeps group collapse state in memory when no
// database is available
type MemoryCollapseStore struct {
	state sync.Map // key: marker -> value: bool (collapsed)
}

// NewMemoryCollapseStore creates an empty in-memory store
func NewMemoryCollapseStore() *MemoryCollapseStore {
	return &MemoryCollapseStore{}
}

func (s *MemoryCollapseStore) IsCollapsed(ctx context.Context, marker string) (bool, bool, error) {
	if v, ok := s.state.Load(marker); ok {
		return v.(bool), true, nil
	}
	return true, false, nil
}

func (s *MemoryCollapseStore) SetCollapsed(ctx context.Context, marker string, collapsed bool) error {
	s.state.Store(marker, collapsed)
	return nil
}
