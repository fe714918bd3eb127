package secretcode

import (
	"context"
	"math/rand"
	"sync"

	"number_baseball/internal/domain"
)

// MemoryStore is a process-local Store. The zero value is not usable; use
// NewMemoryStore.
type MemoryStore struct {
	mu        sync.Mutex
	available []int
	allocated map[int]struct{}
	intn      func(n int) int
}

// NewMemoryStore returns an empty store; the first Allocate fails with
// ErrExhausted until Refill is called, as with a fresh database table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		allocated: make(map[int]struct{}),
		intn:      rand.Intn,
	}
}

func (m *MemoryStore) PopRandom(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.available)
	if n == 0 {
		return 0, domain.ErrExhausted
	}
	i := m.intn(n)
	code := m.available[i]
	m.available[i] = m.available[n-1]
	m.available = m.available[:n-1]
	m.allocated[code] = struct{}{}
	return code, nil
}

func (m *MemoryStore) Refill(ctx context.Context, min, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.available)
	m.available = m.available[:0]
	for code := min; code <= max; code++ {
		if _, taken := m.allocated[code]; !taken {
			m.available = append(m.available, code)
		}
	}
	return len(m.available) - before, nil
}

func (m *MemoryStore) Release(ctx context.Context, code int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.allocated, code)
	return nil
}

// Len returns the number of available and allocated codes.
func (m *MemoryStore) Len() (available, allocated int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.available), len(m.allocated)
}
