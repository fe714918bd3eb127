package duel

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"number_baseball/internal/domain"
	"number_baseball/internal/game"
	"number_baseball/internal/logger"
	"number_baseball/internal/metrics"

	"github.com/google/uuid"
)

// Store persists duel sessions. Update must apply fn atomically and keep the
// stored session unchanged when fn fails.
type Store interface {
	Create(ctx context.Context, s *domain.DuelSession) error
	Get(ctx context.Context, id string) (*domain.DuelSession, error)
	FindByConnection(ctx context.Context, connID string) (*domain.DuelSession, error)
	Update(ctx context.Context, id string, fn func(s *domain.DuelSession) error) (*domain.DuelSession, error)
	Delete(ctx context.Context, id string) error
}

type Notifier interface {
	Notify(n domain.Notice)
}

// Service runs duel transitions against the store and delivers the resulting
// events once the new state is committed.
type Service struct {
	store    Store
	notifier Notifier
	intn     func(n int) int
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, intn: rand.Intn}
}

// Open creates an empty session waiting for its two players.
func (s *Service) Open(ctx context.Context, turnTimeLimit int) (*domain.DuelSession, error) {
	now := time.Now()
	session := &domain.DuelSession{
		ID:            uuid.NewString(),
		TurnTimeLimit: turnTimeLimit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) Discard(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.DuelSession, error) {
	return s.store.Get(ctx, id)
}

// Bind seats connID in session id.
func (s *Service) Bind(ctx context.Context, id, connID string) (*domain.DuelSession, error) {
	return s.store.Update(ctx, id, func(session *domain.DuelSession) error {
		return game.NewDuel(session, s.intn).Bind(connID)
	})
}

func (s *Service) SubmitNumber(ctx context.Context, id, connID, number string) error {
	var notices []domain.Notice
	session, err := s.store.Update(ctx, id, func(session *domain.DuelSession) error {
		var err error
		notices, err = game.NewDuel(session, s.intn).SubmitNumber(connID, number)
		return err
	})
	if err != nil {
		return err
	}
	if session.Started {
		logger.Info("duel started", "session", id, "turn", session.TurnHolder)
	}
	s.deliver(notices)
	return nil
}

func (s *Service) Guess(ctx context.Context, id, connID, number string) error {
	var notices []domain.Notice
	session, err := s.store.Update(ctx, id, func(session *domain.DuelSession) error {
		var err error
		notices, err = game.NewDuel(session, s.intn).Guess(connID, number)
		return err
	})
	if err != nil {
		return err
	}
	metrics.GuessesScored.Inc()
	if session.Finished {
		metrics.SessionsFinished.WithLabelValues(domain.ReasonSolved).Inc()
		logger.Info("duel finished", "session", id, "winner", session.Winner)
	}
	s.deliver(notices)
	return nil
}

// Leave handles connID disconnecting from whatever session it is seated in.
// An unfinished game with an opponent is forfeited; otherwise the session is
// discarded.
func (s *Service) Leave(ctx context.Context, connID string) error {
	current, err := s.store.FindByConnection(ctx, connID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var (
		notices []domain.Notice
		discard bool
	)
	_, err = s.store.Update(ctx, current.ID, func(session *domain.DuelSession) error {
		notices, discard = game.NewDuel(session, s.intn).Leave(connID)
		return nil
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if discard {
		logger.Debug("duel session discarded", "session", current.ID)
		return s.store.Delete(ctx, current.ID)
	}
	if len(notices) > 0 {
		metrics.SessionsFinished.WithLabelValues("forfeit").Inc()
		logger.Info("duel forfeited", "session", current.ID, "left", connID)
	}
	s.deliver(notices)
	return nil
}

func (s *Service) deliver(notices []domain.Notice) {
	for _, n := range notices {
		if n.To != "" {
			s.notifier.Notify(n)
		}
	}
}
