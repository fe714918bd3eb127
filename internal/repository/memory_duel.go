package repository

import (
	"context"
	"sync"
	"time"

	"number_baseball/internal/domain"
)

type memorySession struct {
	mu      sync.Mutex
	s       *domain.DuelSession
	deleted bool
}

// MemoryDuelRepository keeps sessions in process memory with one lock per
// session. Lock order is always session before index.
type MemoryDuelRepository struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	byConn   map[string]string
}

func NewMemoryDuelRepository() *MemoryDuelRepository {
	return &MemoryDuelRepository{
		sessions: make(map[string]*memorySession),
		byConn:   make(map[string]string),
	}
}

func (r *MemoryDuelRepository) Create(ctx context.Context, s *domain.DuelSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return domain.Conflict("session already exists")
	}
	stored := s.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.sessions[s.ID] = &memorySession{s: stored}
	r.index(stored)
	return nil
}

func (r *MemoryDuelRepository) Get(ctx context.Context, id string) (*domain.DuelSession, error) {
	ms := r.lookup(id)
	if ms == nil {
		return nil, domain.ErrSessionNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.deleted {
		return nil, domain.ErrSessionNotFound
	}
	return ms.s.Clone(), nil
}

func (r *MemoryDuelRepository) FindByConnection(ctx context.Context, connID string) (*domain.DuelSession, error) {
	r.mu.RLock()
	id, ok := r.byConn[connID]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return r.Get(ctx, id)
}

// Update runs fn on a copy of the session under the session lock and stores
// the copy only if fn succeeds.
func (r *MemoryDuelRepository) Update(ctx context.Context, id string, fn func(s *domain.DuelSession) error) (*domain.DuelSession, error) {
	ms := r.lookup(id)
	if ms == nil {
		return nil, domain.ErrSessionNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.deleted {
		return nil, domain.ErrSessionNotFound
	}

	next := ms.s.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now()
	ms.s = next

	r.mu.Lock()
	r.index(next)
	r.mu.Unlock()
	return next.Clone(), nil
}

func (r *MemoryDuelRepository) Delete(ctx context.Context, id string) error {
	ms := r.lookup(id)
	if ms == nil {
		return nil
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.deleted = true

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	for _, c := range []string{ms.s.Player1, ms.s.Player2} {
		if c != "" && r.byConn[c] == id {
			delete(r.byConn, c)
		}
	}
	return nil
}

func (r *MemoryDuelRepository) lookup(id string) *memorySession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// caller holds r.mu
func (r *MemoryDuelRepository) index(s *domain.DuelSession) {
	for _, c := range []string{s.Player1, s.Player2} {
		if c != "" {
			r.byConn[c] = s.ID
		}
	}
}
