package secretcode

import (
	"context"
	"errors"

	"number_baseball/internal/domain"
	"number_baseball/internal/logger"
	"number_baseball/internal/metrics"
)

const (
	MinCode = 1000
	MaxCode = 9999
)

// Store keeps the available and allocated code sets. PopRandom must pick and
// move a code from available to allocated as one atomic step.
type Store interface {
	PopRandom(ctx context.Context) (int, error)
	Refill(ctx context.Context, min, max int) (int, error)
	Release(ctx context.Context, code int) error
}

// Pool hands out join codes for secret matches.
type Pool struct {
	store Store
}

func NewPool(store Store) *Pool {
	return &Pool{store: store}
}

// Allocate returns a random available code. It fails with
// domain.ErrExhausted when nothing is available; callers refill and retry.
func (p *Pool) Allocate(ctx context.Context) (int, error) {
	code, err := p.store.PopRandom(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SecretCodesAllocated.Inc()
	return code, nil
}

// Refill makes every code in range that is not currently allocated available
// again. It is idempotent.
func (p *Pool) Refill(ctx context.Context) (int, error) {
	n, err := p.store.Refill(ctx, MinCode, MaxCode)
	if err != nil {
		return 0, err
	}
	metrics.SecretCodeRefills.Inc()
	logger.Info("secret code pool refilled", "added", n)
	return n, nil
}

// Release gives up ownership of code. It becomes available at the next refill.
func (p *Pool) Release(ctx context.Context, code int) error {
	return p.store.Release(ctx, code)
}

// AllocateOrRefill allocates, refilling once if the pool ran dry.
func (p *Pool) AllocateOrRefill(ctx context.Context) (int, error) {
	code, err := p.Allocate(ctx)
	if !errors.Is(err, domain.ErrExhausted) {
		return code, err
	}
	if _, err := p.Refill(ctx); err != nil {
		return 0, err
	}
	return p.Allocate(ctx)
}

// InRange reports whether code could ever have been issued.
func InRange(code int) bool {
	return code >= MinCode && code <= MaxCode
}
