package snapshot

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/model"
)

// MemStore is an in-memory Store used in tests and as a fallback when
// no durable backend is available. Sessions then simply do not survive
// a restart.
type MemStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]model.Snapshot
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[uuid.UUID]model.Snapshot)}
}

func (s *MemStore) Save(ctx context.Context, examID uuid.UUID, snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	stamped := *snap
	stamped.ExamID = examID

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[examID] = stamped
	return nil
}

func (s *MemStore) Load(ctx context.Context, examID uuid.UUID) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.entries[examID]
	if !ok {
		return nil, nil
	}
	return scoped(&snap, examID), nil
}

func (s *MemStore) Clear(ctx context.Context, examID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, examID)
	return nil
}
