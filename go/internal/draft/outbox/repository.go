package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/mcdev12/draftturns/go/internal/sqlutil"
)

// ErrNotFound is returned when an outbox row is missing or was already sent.
var ErrNotFound = errors.New("outbox event not found or already sent")

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the outbox statements bound to a connection or transaction.
type queries struct {
	db dbtx
}

func newQueries(db dbtx) *queries {
	return &queries{db: db}
}

func (q *queries) insert(ctx context.Context, ev events.Event) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO draft_outbox (id, draft_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.DraftID, ev.Type, []byte(ev.Payload), ev.OccurredAt)
	return err
}

// Repository reads and writes the draft_outbox table through database/sql.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes events in one transaction.
func (r *Repository) Insert(ctx context.Context, evs ...events.Event) error {
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) *queries { return newQueries(tx) }, func(q *queries) error {
		for _, ev := range evs {
			if err := q.insert(ctx, ev); err != nil {
				return fmt.Errorf("insert %s: %w", ev.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert outbox events: %w", err)
	}
	return nil
}

// FetchUnsent returns the oldest unsent events.
func (r *Repository) FetchUnsent(ctx context.Context, limit int) ([]events.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, draft_id, event_type, payload, occurred_at
		FROM draft_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			ev      events.Event
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.DraftID, &ev.Type, &payload, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}

// FetchByID returns an unsent event.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	var (
		ev      events.Event
		payload []byte
		sentAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, draft_id, event_type, payload, occurred_at, sent_at
		FROM draft_outbox
		WHERE id = $1`, id).Scan(&ev.ID, &ev.DraftID, &ev.Type, &payload, &ev.OccurredAt, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	if sqlutil.FromSqlTime(sentAt) != nil {
		return nil, ErrNotFound
	}
	ev.Payload = payload
	return &ev, nil
}

// MarkSent stamps the events as sent.
func (r *Repository) MarkSent(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE draft_outbox SET sent_at = $2 WHERE id = ANY($1::uuid[]) AND sent_at IS NULL`,
		pq.Array(strs), sqlutil.ToSqlTime(&at))
	if err != nil {
		return fmt.Errorf("failed to mark outbox events as sent: %w", err)
	}
	return nil
}

// CountPending returns how many events wait to be published.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM draft_outbox WHERE sent_at IS NULL`).Scan(&count)
	return count, err
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
