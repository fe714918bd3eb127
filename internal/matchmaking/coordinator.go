package matchmaking

import (
	"context"
	"errors"
	"math/rand"
	"slices"

	"number_baseball/internal/domain"
	"number_baseball/internal/logger"
	"number_baseball/internal/metrics"
	"number_baseball/internal/secretcode"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Time limits offered when neither side of a pairing asked for one.
var TurnTimeLimitChoices = []int{30, 60, 120}

// CodePool hands out join codes for secret matches.
type CodePool interface {
	AllocateOrRefill(ctx context.Context) (int, error)
	Release(ctx context.Context, code int) error
}

// SessionOpener creates duel sessions once a pairing is confirmed.
type SessionOpener interface {
	Open(ctx context.Context, turnTimeLimit int) (*domain.DuelSession, error)
	Discard(ctx context.Context, id string) error
}

type Notifier interface {
	Notify(n domain.Notice)
}

var errPeerGone = errors.New("peer connection is gone")

// Coordinator pairs waiting connections and turns confirmed pairings into
// duel sessions.
type Coordinator struct {
	registry *Registry
	pool     CodePool
	sessions SessionOpener
	notifier Notifier
	intn     func(n int) int
}

func NewCoordinator(registry *Registry, pool CodePool, sessions SessionOpener, notifier Notifier) *Coordinator {
	c := &Coordinator{
		registry: registry,
		pool:     pool,
		sessions: sessions,
		notifier: notifier,
		intn:     rand.Intn,
	}
	registry.OnPurge(c.purgeGone)
	return c
}

// purgeGone runs the disconnect cleanup for an entry found dead before its
// own Disconnect arrived.
func (c *Coordinator) purgeGone(ctx context.Context, e *domain.WaitingEntry) error {
	_, err := c.leave(ctx, e.ConnectionID)
	return err
}

func (c *Coordinator) notify(ns ...domain.Notice) {
	for _, n := range ns {
		c.notifier.Notify(n)
	}
}

// RequestRandomMatch queues connID and tries to pair it with a random
// compatible entry. With no candidate the requester stays queued and is told
// no_users_available.
func (c *Coordinator) RequestRandomMatch(ctx context.Context, connID string, prefs domain.Preferences) error {
	prefs.JoinCode = nil
	self, _, err := c.registry.Register(ctx, connID, prefs)
	if err != nil {
		return err
	}
	if self.JoinCode != nil {
		return domain.ErrAlreadyHosting
	}
	if self.MatchID != "" {
		return domain.ErrAlreadyMatched
	}

	others, err := c.registry.ListExcept(ctx, connID)
	if err != nil {
		return err
	}
	candidates := lo.Filter(others, func(e *domain.WaitingEntry, _ int) bool {
		return e.Matchable() && e.CompatibleWith(self.TurnTimeLimit)
	})

	for len(candidates) > 0 {
		i := c.intn(len(candidates))
		partner := candidates[i]
		matchID := uuid.NewString()

		err := c.registry.Pair(ctx, connID, partner.ConnectionID, matchID)
		if err == nil {
			metrics.MatchesProposed.Inc()
			logger.Debug("match proposed", "match", matchID, "a", connID, "b", partner.ConnectionID)
			c.notify(
				domain.Notice{To: connID, Type: domain.EventMatched, Payload: domain.MatchedPayload{
					Me: self.Public(), Opponent: partner.Public(), MatchID: matchID,
				}},
				domain.Notice{To: partner.ConnectionID, Type: domain.EventMatched, Payload: domain.MatchedPayload{
					Me: partner.Public(), Opponent: self.Public(), MatchID: matchID,
				}},
			)
			return nil
		}
		if !errors.Is(err, domain.ErrPairTaken) {
			return err
		}

		// another requester may have picked us in the meantime
		current, err := c.registry.FindByConnection(ctx, connID)
		if err != nil {
			return err
		}
		if !current.Matchable() {
			return nil
		}
		candidates = slices.Delete(candidates, i, i+1)
	}

	c.notify(domain.Notice{To: connID, Type: domain.EventNoUsersAvailable, Payload: domain.Empty{}})
	return nil
}

// CancelRandomMatch takes connID out of the queue. A pending pairing is
// dissolved and the partner told match_cancelled.
func (c *Coordinator) CancelRandomMatch(ctx context.Context, connID string) error {
	removed, err := c.leave(ctx, connID)
	if err != nil {
		return err
	}
	if removed == nil {
		return domain.ErrEntryNotFound
	}
	return nil
}

// Disconnect cleans up after a connection that went away. It never notifies
// connID itself.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	_, err := c.leave(ctx, connID)
	return err
}

func (c *Coordinator) leave(ctx context.Context, connID string) (*domain.WaitingEntry, error) {
	removed, err := c.registry.RemoveByConnection(ctx, connID)
	if err != nil || removed == nil {
		return removed, err
	}
	c.releaseCode(ctx, removed)
	if removed.MatchID == "" {
		return removed, nil
	}

	partners, err := c.registry.FindByMatchID(ctx, removed.MatchID)
	if err != nil {
		return removed, err
	}
	if err := c.registry.Remove(ctx, partners); err != nil {
		return removed, err
	}
	metrics.MatchesCancelled.Inc()
	for _, p := range partners {
		if p.ConnectionID != connID && c.registry.IsLive(p.ConnectionID) {
			c.notify(domain.Notice{To: p.ConnectionID, Type: domain.EventMatchCancelled, Payload: domain.Empty{}})
		}
	}
	return removed, nil
}

// ApproveRandomMatch records connID's approval. The second approval of a
// pairing opens the duel session and tells both sides its id.
func (c *Coordinator) ApproveRandomMatch(ctx context.Context, connID string) error {
	self, err := c.registry.FindByConnection(ctx, connID)
	if err != nil {
		return err
	}
	if self.MatchID == "" {
		return domain.ErrNoPendingMatch
	}

	var (
		session *domain.DuelSession
		goneID  string
	)
	_, partner, confirmed, err := c.registry.Approve(ctx, connID, func(s, p *domain.WaitingEntry) error {
		if !c.registry.IsLive(p.ConnectionID) {
			goneID = p.ConnectionID
			return errPeerGone
		}
		opened, err := c.sessions.Open(ctx, c.agreedTurnTimeLimit(s.TurnTimeLimit, p.TurnTimeLimit))
		if err != nil {
			return err
		}
		session = opened
		return nil
	})

	switch {
	case errors.Is(err, errPeerGone):
		return c.abandonPairing(ctx, connID, goneID)
	case errors.Is(err, domain.ErrPairTaken):
		return c.abandonPairing(ctx, connID, "")
	case err != nil:
		if session != nil {
			if derr := c.sessions.Discard(ctx, session.ID); derr != nil {
				logger.Warn("discard unconfirmed session failed", "session", session.ID, "error", derr)
			}
		}
		return err
	}

	if !confirmed {
		if !c.registry.IsLive(partner.ConnectionID) {
			return c.abandonPairing(ctx, connID, partner.ConnectionID)
		}
		return nil
	}

	metrics.SessionsCreated.WithLabelValues("random").Inc()
	logger.Info("duel session created", "session", session.ID, "mode", "random",
		"a", connID, "b", partner.ConnectionID)
	approved := domain.MatchApprovedPayload{SessionID: session.ID, TurnTimeLimit: session.TurnTimeLimit}
	c.notify(
		domain.Notice{To: connID, Type: domain.EventMatchApproved, Payload: approved},
		domain.Notice{To: partner.ConnectionID, Type: domain.EventMatchApproved, Payload: approved},
	)
	return nil
}

// abandonPairing drops a partner that can no longer answer and puts connID
// back to the unpaired state.
func (c *Coordinator) abandonPairing(ctx context.Context, connID, goneID string) error {
	if goneID != "" {
		if gone, err := c.registry.RemoveByConnection(ctx, goneID); err != nil {
			logger.Warn("purge gone partner failed", "conn", goneID, "error", err)
		} else {
			c.releaseCode(ctx, gone)
		}
	}
	if _, err := c.registry.Reset(ctx, connID); err != nil {
		return err
	}
	metrics.MatchesCancelled.Inc()
	c.notify(domain.Notice{To: connID, Type: domain.EventMatchCancelled, Payload: domain.Empty{}})
	return nil
}

// CreateSecretMatch queues connID behind a fresh join code. Asking again
// returns the code already held.
func (c *Coordinator) CreateSecretMatch(ctx context.Context, connID string, prefs domain.Preferences) error {
	if prefs.TurnTimeLimit < 0 {
		return domain.ErrBadTurnTimeLimit
	}
	existing, err := c.registry.FindByConnection(ctx, connID)
	switch {
	case err == nil:
		return c.announceCode(connID, existing)
	case !errors.Is(err, domain.ErrEntryNotFound):
		return err
	}

	code, err := c.pool.AllocateOrRefill(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrExhausted) {
			return domain.Internal("no secret codes available", err)
		}
		return err
	}

	prefs.JoinCode = &code
	entry, created, err := c.registry.Register(ctx, connID, prefs)
	if err != nil {
		if !errors.Is(err, domain.ErrJoinCodeTaken) {
			c.release(ctx, code)
		}
		return err
	}
	if !created {
		c.release(ctx, code)
	}
	return c.announceCode(connID, entry)
}

func (c *Coordinator) announceCode(connID string, e *domain.WaitingEntry) error {
	if e.JoinCode == nil {
		return domain.ErrAlreadyWaiting
	}
	c.notify(domain.Notice{To: connID, Type: domain.EventSecretMatchCreated,
		Payload: domain.SecretMatchCreatedPayload{Code: *e.JoinCode}})
	return nil
}

// JoinSecretMatch pairs connID with the holder of code and opens the session
// straight away.
func (c *Coordinator) JoinSecretMatch(ctx context.Context, connID string, code int) error {
	if !secretcode.InRange(code) {
		return domain.ErrJoinCodeInvalid
	}

	var (
		session *domain.DuelSession
		goneID  string
	)
	creator, err := c.registry.ClaimJoinCode(ctx, code, func(creator *domain.WaitingEntry) error {
		if creator.ConnectionID == connID {
			return domain.ErrJoinOwnCode
		}
		if !c.registry.IsLive(creator.ConnectionID) {
			goneID = creator.ConnectionID
			return errPeerGone
		}
		opened, err := c.sessions.Open(ctx, c.agreedTurnTimeLimit(creator.TurnTimeLimit, 0))
		if err != nil {
			return err
		}
		session = opened
		return nil
	})
	if errors.Is(err, errPeerGone) {
		if _, err := c.leave(ctx, goneID); err != nil {
			logger.Warn("purge gone creator failed", "conn", goneID, "error", err)
		}
		return domain.ErrJoinCodeInvalid
	}
	if err != nil {
		if session != nil {
			if derr := c.sessions.Discard(ctx, session.ID); derr != nil {
				logger.Warn("discard unclaimed session failed", "session", session.ID, "error", derr)
			}
		}
		return err
	}
	c.release(ctx, code)

	// the joiner may have been queued for something else
	if _, err := c.leave(ctx, connID); err != nil {
		logger.Warn("drop joiner entry failed", "conn", connID, "error", err)
	}

	metrics.SessionsCreated.WithLabelValues("secret").Inc()
	logger.Info("duel session created", "session", session.ID, "mode", "secret",
		"a", creator.ConnectionID, "b", connID)
	approved := domain.MatchApprovedPayload{SessionID: session.ID, TurnTimeLimit: session.TurnTimeLimit}
	c.notify(
		domain.Notice{To: creator.ConnectionID, Type: domain.EventMatchApproved, Payload: approved},
		domain.Notice{To: connID, Type: domain.EventMatchApproved, Payload: approved},
	)
	return nil
}

// agreedTurnTimeLimit returns the preference either side set, or a random
// pick when neither did. Callers only pair compatible preferences.
func (c *Coordinator) agreedTurnTimeLimit(a, b int) int {
	switch {
	case a > 0:
		return a
	case b > 0:
		return b
	default:
		return TurnTimeLimitChoices[c.intn(len(TurnTimeLimitChoices))]
	}
}

func (c *Coordinator) releaseCode(ctx context.Context, e *domain.WaitingEntry) {
	if e != nil && e.JoinCode != nil {
		c.release(ctx, *e.JoinCode)
	}
}

func (c *Coordinator) release(ctx context.Context, code int) {
	if err := c.pool.Release(ctx, code); err != nil {
		logger.Warn("release secret code failed", "code", code, "error", err)
	}
}
