package repository

import (
	"context"
	"errors"
	"fmt"

	"number_baseball/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const waitingColumns = `connection_id, user_id, turn_time_limit, join_code, match_id, approved, created_at`

// WaitingRepository stores waiting entries in PostgreSQL.
type WaitingRepository struct {
	db *pgxpool.Pool
}

func NewWaitingRepository(db *pgxpool.Pool) *WaitingRepository {
	return &WaitingRepository{db: db}
}

func scanWaiting(row pgx.Row) (*domain.WaitingEntry, error) {
	var (
		e       domain.WaitingEntry
		matchID *string
	)
	if err := row.Scan(&e.ConnectionID, &e.UserID, &e.TurnTimeLimit, &e.JoinCode, &matchID, &e.Approved, &e.CreatedAt); err != nil {
		return nil, err
	}
	if matchID != nil {
		e.MatchID = *matchID
	}
	return &e, nil
}

func collectWaiting(rows pgx.Rows) ([]*domain.WaitingEntry, error) {
	defer rows.Close()
	var out []*domain.WaitingEntry
	for rows.Next() {
		e, err := scanWaiting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts e unless the connection already has an entry, in which case
// the existing row is returned unchanged.
func (r *WaitingRepository) Create(ctx context.Context, e *domain.WaitingEntry) (*domain.WaitingEntry, bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO waiting_entries (connection_id, user_id, turn_time_limit, join_code)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (connection_id) DO NOTHING`,
		e.ConnectionID, e.UserID, e.TurnTimeLimit, e.JoinCode,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, domain.ErrJoinCodeTaken
		}
		return nil, false, fmt.Errorf("insert waiting entry: %w", err)
	}

	stored, err := r.FindByConnection(ctx, e.ConnectionID)
	if err != nil {
		return nil, false, err
	}
	return stored, tag.RowsAffected() == 1, nil
}

func (r *WaitingRepository) FindByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error) {
	e, err := scanWaiting(r.db.QueryRow(ctx,
		`SELECT `+waitingColumns+` FROM waiting_entries WHERE connection_id = $1`, connID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find waiting entry: %w", err)
	}
	return e, nil
}

func (r *WaitingRepository) FindByMatchID(ctx context.Context, matchID string) ([]*domain.WaitingEntry, error) {
	if matchID == "" {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+waitingColumns+` FROM waiting_entries WHERE match_id = $1 ORDER BY created_at, connection_id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("find waiting entries by match: %w", err)
	}
	return collectWaiting(rows)
}

func (r *WaitingRepository) FindByJoinCode(ctx context.Context, code int) (*domain.WaitingEntry, error) {
	e, err := scanWaiting(r.db.QueryRow(ctx,
		`SELECT `+waitingColumns+` FROM waiting_entries WHERE join_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJoinCodeInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("find waiting entry by code: %w", err)
	}
	return e, nil
}

func (r *WaitingRepository) ListExcept(ctx context.Context, connID string) ([]*domain.WaitingEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+waitingColumns+` FROM waiting_entries WHERE connection_id <> $1 ORDER BY created_at, connection_id`, connID)
	if err != nil {
		return nil, fmt.Errorf("list waiting entries: %w", err)
	}
	return collectWaiting(rows)
}

func (r *WaitingRepository) Update(ctx context.Context, connID string, u domain.WaitingUpdate) (*domain.WaitingEntry, error) {
	e, err := scanWaiting(r.db.QueryRow(ctx,
		`UPDATE waiting_entries
		 SET match_id = CASE WHEN $2::text IS NULL THEN match_id ELSE NULLIF($2::text, '') END,
		     approved = COALESCE($3::boolean, approved)
		 WHERE connection_id = $1
		 RETURNING `+waitingColumns,
		connID, u.MatchID, u.Approved,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update waiting entry: %w", err)
	}
	return e, nil
}

// Pair gives a and b the same match id, only if neither is already paired
// or hosting a secret match.
func (r *WaitingRepository) Pair(ctx context.Context, a, b, matchID string) error {
	if a == b {
		return domain.ErrPairTaken
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin pair: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE waiting_entries SET match_id = $2, approved = FALSE
		 WHERE connection_id = ANY($1) AND match_id IS NULL AND join_code IS NULL`,
		[]string{a, b}, matchID,
	)
	if err != nil {
		return fmt.Errorf("pair waiting entries: %w", err)
	}
	if tag.RowsAffected() != 2 {
		return domain.ErrPairTaken
	}
	return tx.Commit(ctx)
}

// Approve locks both rows of the pairing in connection id order. When the
// partner has already approved, confirm runs inside the transaction and both
// rows are deleted; an error from confirm rolls everything back.
func (r *WaitingRepository) Approve(ctx context.Context, connID string, confirm func(self, partner *domain.WaitingEntry) error) (*domain.WaitingEntry, *domain.WaitingEntry, bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, false, fmt.Errorf("begin approve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var matchID *string
	err = tx.QueryRow(ctx, `SELECT match_id FROM waiting_entries WHERE connection_id = $1`, connID).Scan(&matchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, false, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("read match id: %w", err)
	}
	if matchID == nil {
		return nil, nil, false, domain.ErrNoPendingMatch
	}

	rows, err := tx.Query(ctx,
		`SELECT `+waitingColumns+` FROM waiting_entries WHERE match_id = $1 ORDER BY connection_id FOR UPDATE`, *matchID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("lock pairing: %w", err)
	}
	pair, err := collectWaiting(rows)
	if err != nil {
		return nil, nil, false, fmt.Errorf("lock pairing: %w", err)
	}

	var self, partner *domain.WaitingEntry
	for _, e := range pair {
		if e.ConnectionID == connID {
			self = e
		} else {
			partner = e
		}
	}
	if self == nil {
		return nil, nil, false, domain.ErrNoPendingMatch
	}
	if partner == nil {
		return nil, nil, false, domain.ErrPairTaken
	}
	self.Approved = true

	if !partner.Approved {
		if _, err := tx.Exec(ctx, `UPDATE waiting_entries SET approved = TRUE WHERE connection_id = $1`, connID); err != nil {
			return nil, nil, false, fmt.Errorf("approve: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, false, fmt.Errorf("commit approve: %w", err)
		}
		return self, partner, false, nil
	}

	if err := confirm(self, partner); err != nil {
		return nil, nil, false, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM waiting_entries WHERE connection_id = ANY($1)`,
		[]string{self.ConnectionID, partner.ConnectionID}); err != nil {
		return nil, nil, false, fmt.Errorf("remove confirmed pair: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, false, fmt.Errorf("commit confirm: %w", err)
	}
	return self, partner, true, nil
}

// ClaimJoinCode locks the creator row, runs claim and deletes the row.
func (r *WaitingRepository) ClaimJoinCode(ctx context.Context, code int, claim func(creator *domain.WaitingEntry) error) (*domain.WaitingEntry, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	creator, err := scanWaiting(tx.QueryRow(ctx,
		`SELECT `+waitingColumns+` FROM waiting_entries WHERE join_code = $1 FOR UPDATE`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJoinCodeInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("lock join code: %w", err)
	}

	if err := claim(creator); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM waiting_entries WHERE connection_id = $1`, creator.ConnectionID); err != nil {
		return nil, fmt.Errorf("remove creator: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return creator, nil
}

func (r *WaitingRepository) Remove(ctx context.Context, connIDs []string) error {
	if len(connIDs) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM waiting_entries WHERE connection_id = ANY($1)`, connIDs); err != nil {
		return fmt.Errorf("remove waiting entries: %w", err)
	}
	return nil
}

func (r *WaitingRepository) RemoveByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error) {
	e, err := scanWaiting(r.db.QueryRow(ctx,
		`DELETE FROM waiting_entries WHERE connection_id = $1 RETURNING `+waitingColumns, connID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("remove waiting entry: %w", err)
	}
	return e, nil
}
