// Package postgres is the engine.Store backed by Postgres. A draft transaction locks the draft's
// turn clock row with SELECT ... FOR UPDATE; lock and serialization failures surface as
// engine.ErrConflict.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
)

const defaultLockTimeout = 2 * time.Second

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var _ engine.Store = (*Store)(nil)

// New wraps a pool. lockTimeout bounds how long a transaction waits for a draft's lock; zero
// uses the default.
func New(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &Store{pool: pool, lockTimeout: lockTimeout}
}

// Connect creates a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func (s *Store) CreateDraft(ctx context.Context, draft models.Draft, participants []uuid.UUID) error {
	return s.beginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO drafts (id, league_id, phase, ordering_mode, rounds, participant_count,
				time_per_turn_ms, timeout_policy, pick_skip_placement, shuffle_order, status,
				started_at, completed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			draft.ID, draft.LeagueID, draft.Phase, draft.OrderingMode, draft.Rounds, draft.ParticipantCount,
			draft.TimePerTurn.Milliseconds(), draft.TimeoutPolicy, draft.PickSkipPlacement, draft.ShuffleOrder,
			draft.Status, draft.StartedAt, draft.CompletedAt, draft.CreatedAt, draft.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
		if err := insertParticipants(ctx, tx, draft.ID, participants); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO draft_turn_clocks (draft_id) VALUES ($1)`, draft.ID); err != nil {
			return fmt.Errorf("insert turn clock: %w", err)
		}
		return nil
	})
}

func (s *Store) InTx(ctx context.Context, draftID uuid.UUID, fn func(tx engine.Tx) error) error {
	return s.beginTxFunc(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
		st, err := loadState(ctx, tx, draftID, true)
		if err != nil {
			return err
		}
		return fn(&draftTx{tx: tx, state: *st})
	})
}

func (s *Store) Load(ctx context.Context, draftID uuid.UUID) (*engine.DraftState, error) {
	var st *engine.DraftState
	err := s.beginTxFunc(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		st, err = loadState(ctx, tx, draftID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) ListRunning(ctx context.Context) ([]models.TurnToken, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.draft_id, c.turn_index, c.generation, c.deadline
		FROM draft_turn_clocks c
		JOIN drafts d ON d.id = c.draft_id
		WHERE d.status = 'in_progress'
		  AND c.current_roster IS NOT NULL
		  AND c.deadline IS NOT NULL
		ORDER BY c.deadline`)
	if err != nil {
		return nil, fmt.Errorf("query running drafts: %w", err)
	}
	defer rows.Close()

	var tokens []models.TurnToken
	for rows.Next() {
		var t models.TurnToken
		if err := rows.Scan(&t.DraftID, &t.TurnIndex, &t.Generation, &t.Deadline); err != nil {
			return nil, fmt.Errorf("scan running draft: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// beginTxFunc starts a transaction, calls f with it, and commits or rolls back as needed.
func (s *Store) beginTxFunc(ctx context.Context, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, txOptions)
	if err != nil {
		return mapError(err)
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, mapError(err))
		}
		return mapError(err)
	}
	return mapError(tx.Commit(ctx))
}

// mapError turns lock contention, serialization failures and unique violations into
// engine.ErrConflict. A unique violation on claims means another transaction won the unit;
// the retry then sees the committed claim.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"23505": // unique_violation
			return fmt.Errorf("%w: %s", engine.ErrConflict, pgErr.Message)
		}
	}
	return err
}
