package matchmaking

import (
	"context"
	"time"

	"number_baseball/internal/domain"
	"number_baseball/internal/logger"

	"github.com/samber/lo"
)

// Store persists waiting entries. Pair, Approve and ClaimJoinCode must be
// atomic with respect to every other call on the same entries.
type Store interface {
	Create(ctx context.Context, e *domain.WaitingEntry) (*domain.WaitingEntry, bool, error)
	FindByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error)
	FindByMatchID(ctx context.Context, matchID string) ([]*domain.WaitingEntry, error)
	FindByJoinCode(ctx context.Context, code int) (*domain.WaitingEntry, error)
	ListExcept(ctx context.Context, connID string) ([]*domain.WaitingEntry, error)
	Update(ctx context.Context, connID string, u domain.WaitingUpdate) (*domain.WaitingEntry, error)
	Pair(ctx context.Context, a, b, matchID string) error
	Approve(ctx context.Context, connID string, confirm func(self, partner *domain.WaitingEntry) error) (*domain.WaitingEntry, *domain.WaitingEntry, bool, error)
	ClaimJoinCode(ctx context.Context, code int, claim func(creator *domain.WaitingEntry) error) (*domain.WaitingEntry, error)
	Remove(ctx context.Context, connIDs []string) error
	RemoveByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error)
}

// LivenessFunc reports whether a connection still has a live transport.
type LivenessFunc func(connID string) bool

// PurgeFunc disposes of an entry whose connection is gone.
type PurgeFunc func(ctx context.Context, e *domain.WaitingEntry) error

// Registry tracks connections that are looking for a match.
type Registry struct {
	store  Store
	isLive LivenessFunc
	purge  PurgeFunc
}

func NewRegistry(store Store, isLive LivenessFunc) *Registry {
	if isLive == nil {
		isLive = func(string) bool { return true }
	}
	r := &Registry{store: store, isLive: isLive}
	r.purge = func(ctx context.Context, e *domain.WaitingEntry) error {
		_, err := r.store.RemoveByConnection(ctx, e.ConnectionID)
		return err
	}
	return r
}

// OnPurge replaces how ListExcept disposes of dead entries. A hosted join
// code or a pending pairing needs more cleanup than a plain delete.
func (r *Registry) OnPurge(fn PurgeFunc) {
	if fn != nil {
		r.purge = fn
	}
}

// Register queues connID. A connection that is already queued gets its
// existing entry back unchanged and created=false.
func (r *Registry) Register(ctx context.Context, connID string, prefs domain.Preferences) (*domain.WaitingEntry, bool, error) {
	if prefs.TurnTimeLimit < 0 {
		return nil, false, domain.ErrBadTurnTimeLimit
	}
	return r.store.Create(ctx, &domain.WaitingEntry{
		ConnectionID:  connID,
		UserID:        prefs.UserID,
		TurnTimeLimit: prefs.TurnTimeLimit,
		JoinCode:      prefs.JoinCode,
		CreatedAt:     time.Now(),
	})
}

func (r *Registry) FindByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error) {
	return r.store.FindByConnection(ctx, connID)
}

func (r *Registry) FindByMatchID(ctx context.Context, matchID string) ([]*domain.WaitingEntry, error) {
	return r.store.FindByMatchID(ctx, matchID)
}

func (r *Registry) FindByJoinCode(ctx context.Context, code int) (*domain.WaitingEntry, error) {
	return r.store.FindByJoinCode(ctx, code)
}

// ListExcept returns every live entry other than connID's. Entries whose
// connection is gone are purged on the way.
func (r *Registry) ListExcept(ctx context.Context, connID string) ([]*domain.WaitingEntry, error) {
	all, err := r.store.ListExcept(ctx, connID)
	if err != nil {
		return nil, err
	}
	live, dead := lo.FilterReject(all, func(e *domain.WaitingEntry, _ int) bool {
		return r.isLive(e.ConnectionID)
	})
	for _, e := range dead {
		if err := r.purge(ctx, e); err != nil {
			logger.Warn("purge dead waiting entry failed", "conn", e.ConnectionID, "error", err)
		}
	}
	if len(dead) == 0 {
		return live, nil
	}
	// a purge may have dissolved a live entry's pairing
	return lo.Filter(live, func(e *domain.WaitingEntry, _ int) bool {
		return !lo.ContainsBy(dead, func(d *domain.WaitingEntry) bool {
			return d.MatchID != "" && d.MatchID == e.MatchID
		})
	}), nil
}

func (r *Registry) Update(ctx context.Context, connID string, u domain.WaitingUpdate) (*domain.WaitingEntry, error) {
	return r.store.Update(ctx, connID, u)
}

// Reset clears connID's pairing so it can be matched again.
func (r *Registry) Reset(ctx context.Context, connID string) (*domain.WaitingEntry, error) {
	none := ""
	no := false
	return r.store.Update(ctx, connID, domain.WaitingUpdate{MatchID: &none, Approved: &no})
}

func (r *Registry) Pair(ctx context.Context, a, b, matchID string) error {
	return r.store.Pair(ctx, a, b, matchID)
}

func (r *Registry) Approve(ctx context.Context, connID string, confirm func(self, partner *domain.WaitingEntry) error) (*domain.WaitingEntry, *domain.WaitingEntry, bool, error) {
	return r.store.Approve(ctx, connID, confirm)
}

func (r *Registry) ClaimJoinCode(ctx context.Context, code int, claim func(creator *domain.WaitingEntry) error) (*domain.WaitingEntry, error) {
	return r.store.ClaimJoinCode(ctx, code, claim)
}

// Remove deletes all given entries at once.
func (r *Registry) Remove(ctx context.Context, entries []*domain.WaitingEntry) error {
	ids := lo.Map(entries, func(e *domain.WaitingEntry, _ int) string { return e.ConnectionID })
	return r.store.Remove(ctx, ids)
}

// RemoveByConnection deletes connID's entry, if any, and returns it.
func (r *Registry) RemoveByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error) {
	return r.store.RemoveByConnection(ctx, connID)
}

func (r *Registry) IsLive(connID string) bool {
	return r.isLive(connID)
}
