package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"number_baseball/internal/domain"
)

// MemoryWaitingRepository keeps waiting entries in process memory. A single
// mutex makes every compound operation atomic.
type MemoryWaitingRepository struct {
	mu      sync.Mutex
	entries map[string]*domain.WaitingEntry
}

func NewMemoryWaitingRepository() *MemoryWaitingRepository {
	return &MemoryWaitingRepository{
		entries: make(map[string]*domain.WaitingEntry),
	}
}

func (r *MemoryWaitingRepository) Create(ctx context.Context, e *domain.WaitingEntry) (*domain.WaitingEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[e.ConnectionID]; ok {
		return existing.Clone(), false, nil
	}
	if e.JoinCode != nil && r.byJoinCode(*e.JoinCode) != nil {
		return nil, false, domain.ErrJoinCodeTaken
	}
	stored := e.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.entries[e.ConnectionID] = stored
	return stored.Clone(), true, nil
}

func (r *MemoryWaitingRepository) FindByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connID]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return e.Clone(), nil
}

func (r *MemoryWaitingRepository) FindByMatchID(ctx context.Context, matchID string) ([]*domain.WaitingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if matchID == "" {
		return nil, nil
	}
	var out []*domain.WaitingEntry
	for _, e := range r.entries {
		if e.MatchID == matchID {
			out = append(out, e.Clone())
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *MemoryWaitingRepository) FindByJoinCode(ctx context.Context, code int) (*domain.WaitingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.byJoinCode(code)
	if e == nil {
		return nil, domain.ErrJoinCodeInvalid
	}
	return e.Clone(), nil
}

func (r *MemoryWaitingRepository) ListExcept(ctx context.Context, connID string) ([]*domain.WaitingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.WaitingEntry, 0, len(r.entries))
	for id, e := range r.entries {
		if id != connID {
			out = append(out, e.Clone())
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *MemoryWaitingRepository) Update(ctx context.Context, connID string, u domain.WaitingUpdate) (*domain.WaitingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connID]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	e.Apply(u)
	return e.Clone(), nil
}

func (r *MemoryWaitingRepository) Pair(ctx context.Context, a, b, matchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ea, okA := r.entries[a]
	eb, okB := r.entries[b]
	if !okA || !okB || a == b || !ea.Matchable() || !eb.Matchable() {
		return domain.ErrPairTaken
	}
	ea.MatchID, ea.Approved = matchID, false
	eb.MatchID, eb.Approved = matchID, false
	return nil
}

func (r *MemoryWaitingRepository) Approve(ctx context.Context, connID string, confirm func(self, partner *domain.WaitingEntry) error) (*domain.WaitingEntry, *domain.WaitingEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	self, ok := r.entries[connID]
	if !ok {
		return nil, nil, false, domain.ErrEntryNotFound
	}
	if self.MatchID == "" {
		return nil, nil, false, domain.ErrNoPendingMatch
	}
	var partner *domain.WaitingEntry
	for id, e := range r.entries {
		if id != connID && e.MatchID == self.MatchID {
			partner = e
			break
		}
	}
	if partner == nil {
		return nil, nil, false, domain.ErrPairTaken
	}

	if !partner.Approved {
		self.Approved = true
		return self.Clone(), partner.Clone(), false, nil
	}

	s, p := self.Clone(), partner.Clone()
	s.Approved = true
	if err := confirm(s, p); err != nil {
		return nil, nil, false, err
	}
	delete(r.entries, self.ConnectionID)
	delete(r.entries, partner.ConnectionID)
	return s, p, true, nil
}

func (r *MemoryWaitingRepository) ClaimJoinCode(ctx context.Context, code int, claim func(creator *domain.WaitingEntry) error) (*domain.WaitingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.byJoinCode(code)
	if e == nil {
		return nil, domain.ErrJoinCodeInvalid
	}
	creator := e.Clone()
	if err := claim(creator); err != nil {
		return nil, err
	}
	delete(r.entries, e.ConnectionID)
	return creator, nil
}

func (r *MemoryWaitingRepository) Remove(ctx context.Context, connIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range connIDs {
		delete(r.entries, id)
	}
	return nil
}

func (r *MemoryWaitingRepository) RemoveByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connID]
	if !ok {
		return nil, nil
	}
	delete(r.entries, connID)
	return e, nil
}

func (r *MemoryWaitingRepository) byJoinCode(code int) *domain.WaitingEntry {
	for _, e := range r.entries {
		if e.JoinCode != nil && *e.JoinCode == code {
			return e
		}
	}
	return nil
}

// oldest first, like the SQL repository
func sortEntries(es []*domain.WaitingEntry) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].CreatedAt.Equal(es[j].CreatedAt) {
			return es[i].CreatedAt.Before(es[j].CreatedAt)
		}
		return es[i].ConnectionID < es[j].ConnectionID
	})
}
