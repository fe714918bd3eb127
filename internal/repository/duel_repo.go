package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"number_baseball/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const duelColumns = `id::text, player1, player2, code1, code2, turn_holder, started, finished, winner,
	turn_time_limit, history1, history2, created_at, updated_at`

// DuelRepository stores duel sessions in PostgreSQL.
type DuelRepository struct {
	db *pgxpool.Pool
}

func NewDuelRepository(db *pgxpool.Pool) *DuelRepository {
	return &DuelRepository{db: db}
}

func scanDuel(row pgx.Row) (*domain.DuelSession, error) {
	var (
		s      domain.DuelSession
		h1, h2 []byte
	)
	err := row.Scan(&s.ID, &s.Player1, &s.Player2, &s.Code1, &s.Code2, &s.TurnHolder,
		&s.Started, &s.Finished, &s.Winner, &s.TurnTimeLimit, &h1, &h2, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(h1, &s.History1); err != nil {
		return nil, fmt.Errorf("decode history1: %w", err)
	}
	if err := json.Unmarshal(h2, &s.History2); err != nil {
		return nil, fmt.Errorf("decode history2: %w", err)
	}
	return &s, nil
}

func encodeHistory(h []domain.GuessRecord) ([]byte, error) {
	if h == nil {
		h = []domain.GuessRecord{}
	}
	return json.Marshal(h)
}

// validID reports whether id can name a row. Lookups compare the uuid
// column directly, which fails on malformed input.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *DuelRepository) Create(ctx context.Context, s *domain.DuelSession) error {
	h1, err := encodeHistory(s.History1)
	if err != nil {
		return err
	}
	h2, err := encodeHistory(s.History2)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO duel_sessions (id, player1, player2, code1, code2, turn_holder, started, finished, winner,
		     turn_time_limit, history1, history2)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.Player1, s.Player2, s.Code1, s.Code2, s.TurnHolder, s.Started, s.Finished, s.Winner,
		s.TurnTimeLimit, h1, h2,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("session already exists")
		}
		return fmt.Errorf("insert duel session: %w", err)
	}
	return nil
}

func (r *DuelRepository) Get(ctx context.Context, id string) (*domain.DuelSession, error) {
	if !validID(id) {
		return nil, domain.ErrSessionNotFound
	}
	s, err := scanDuel(r.db.QueryRow(ctx, `SELECT `+duelColumns+` FROM duel_sessions WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get duel session: %w", err)
	}
	return s, nil
}

// FindByConnection returns the most recent session connID is seated in.
func (r *DuelRepository) FindByConnection(ctx context.Context, connID string) (*domain.DuelSession, error) {
	s, err := scanDuel(r.db.QueryRow(ctx,
		`SELECT `+duelColumns+` FROM duel_sessions
		 WHERE player1 = $1 OR player2 = $1
		 ORDER BY created_at DESC LIMIT 1`, connID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find duel session: %w", err)
	}
	return s, nil
}

// Update locks the row, applies fn and writes the result back in one
// transaction. Nothing is written when fn fails.
func (r *DuelRepository) Update(ctx context.Context, id string, fn func(s *domain.DuelSession) error) (*domain.DuelSession, error) {
	if !validID(id) {
		return nil, domain.ErrSessionNotFound
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin duel update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s, err := scanDuel(tx.QueryRow(ctx, `SELECT `+duelColumns+` FROM duel_sessions WHERE id = $1::uuid FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock duel session: %w", err)
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	h1, err := encodeHistory(s.History1)
	if err != nil {
		return nil, err
	}
	h2, err := encodeHistory(s.History2)
	if err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	_, err = tx.Exec(ctx,
		`UPDATE duel_sessions
		 SET player1 = $2, player2 = $3, code1 = $4, code2 = $5, turn_holder = $6, started = $7,
		     finished = $8, winner = $9, history1 = $10, history2 = $11, updated_at = $12
		 WHERE id = $1::uuid`,
		id, s.Player1, s.Player2, s.Code1, s.Code2, s.TurnHolder, s.Started,
		s.Finished, s.Winner, h1, h2, s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update duel session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit duel update: %w", err)
	}
	return s, nil
}

func (r *DuelRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM duel_sessions WHERE id = $1::uuid`, id); err != nil {
		return fmt.Errorf("delete duel session: %w", err)
	}
	return nil
}
