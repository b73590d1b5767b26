package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/mcdev12/draftturns/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// loadState reads a draft's clock, settings, participants and current-phase claims. With lock
// set the clock row is locked first, so the rest is read under the draft lock.
func loadState(ctx context.Context, q querier, draftID uuid.UUID, lock bool) (*engine.DraftState, error) {
	clockSQL := `
		SELECT turn_index, generation, base_cursor, current_roster, current_unit, started_at, deadline, skipped
		FROM draft_turn_clocks
		WHERE draft_id = $1`
	if lock {
		clockSQL += " FOR UPDATE"
	}

	st := &engine.DraftState{Clock: models.TurnClock{DraftID: draftID}}
	var (
		roster  uuid.NullUUID
		skipped []byte
	)
	err := q.QueryRow(ctx, clockSQL, draftID).Scan(
		&st.Clock.TurnIndex, &st.Clock.Generation, &st.Clock.BaseCursor, &roster, &st.Clock.CurrentUnit,
		&st.Clock.StartedAt, &st.Clock.Deadline, &skipped)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", engine.ErrDraftNotFound, draftID)
	}
	if err != nil {
		return nil, fmt.Errorf("select turn clock: %w", err)
	}
	st.Clock.CurrentRoster = sqlutil.FromNullUUID(roster)
	if st.Clock.Skipped, err = decodeSkipped(pqtype.NullRawMessage{RawMessage: skipped, Valid: skipped != nil}); err != nil {
		return nil, err
	}

	var timePerTurnMS int64
	d := &st.Draft
	err = q.QueryRow(ctx, `
		SELECT id, league_id, phase, ordering_mode, rounds, participant_count, time_per_turn_ms,
			timeout_policy, pick_skip_placement, shuffle_order, status, started_at, completed_at,
			created_at, updated_at
		FROM drafts
		WHERE id = $1`, draftID).Scan(
		&d.ID, &d.LeagueID, &d.Phase, &d.OrderingMode, &d.Rounds, &d.ParticipantCount, &timePerTurnMS,
		&d.TimeoutPolicy, &d.PickSkipPlacement, &d.ShuffleOrder, &d.Status, &d.StartedAt, &d.CompletedAt,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("select draft: %w", err)
	}
	d.TimePerTurn = time.Duration(timePerTurnMS) * time.Millisecond

	rows, err := q.Query(ctx, `SELECT roster_id FROM draft_participants WHERE draft_id = $1 ORDER BY slot`, draftID)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	st.Participants, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan participants: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, draft_id, phase, unit, roster_id, turn_index, automatic, selection, claimed_at
		FROM draft_claims
		WHERE draft_id = $1 AND phase = $2
		ORDER BY seq`, draftID, d.Phase)
	if err != nil {
		return nil, fmt.Errorf("select claims: %w", err)
	}
	st.Claims, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ClaimRecord, error) {
		var (
			c         models.ClaimRecord
			selection uuid.NullUUID
		)
		err := row.Scan(&c.ID, &c.DraftID, &c.Phase, &c.Unit, &c.RosterID, &c.TurnIndex, &c.Automatic, &selection, &c.ClaimedAt)
		c.Selection = sqlutil.FromNullUUID(selection)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan claims: %w", err)
	}
	return st, nil
}

// draftTx writes through to the locked transaction.
type draftTx struct {
	tx    pgx.Tx
	state engine.DraftState
}

func (t *draftTx) State() engine.DraftState {
	st := t.state
	st.Participants = append([]uuid.UUID(nil), t.state.Participants...)
	st.Claims = append([]models.ClaimRecord(nil), t.state.Claims...)
	st.Clock.Skipped = append([]models.SkipEntry(nil), t.state.Clock.Skipped...)
	return st
}

func (t *draftTx) InsertClaim(ctx context.Context, c models.ClaimRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO draft_claims (id, draft_id, phase, unit, roster_id, turn_index, automatic, selection, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.DraftID, c.Phase, c.Unit, c.RosterID, c.TurnIndex, c.Automatic, sqlutil.ToNullUUID(c.Selection), c.ClaimedAt)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (t *draftTx) DeleteClaims(ctx context.Context, phase models.DraftPhase) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM draft_claims WHERE draft_id = $1 AND phase = $2`, t.state.Draft.ID, phase)
	if err != nil {
		return 0, fmt.Errorf("delete claims: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *draftTx) SaveClock(ctx context.Context, c models.TurnClock) error {
	skipped, err := encodeSkipped(c.Skipped)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE draft_turn_clocks
		SET turn_index = $2, generation = $3, base_cursor = $4, current_roster = $5, current_unit = $6,
			started_at = $7, deadline = $8, skipped = $9
		WHERE draft_id = $1`,
		t.state.Draft.ID, c.TurnIndex, c.Generation, c.BaseCursor, sqlutil.ToNullUUID(c.CurrentRoster), c.CurrentUnit,
		c.StartedAt, c.Deadline, skipped)
	if err != nil {
		return fmt.Errorf("update turn clock: %w", err)
	}
	return nil
}

func (t *draftTx) SaveDraft(ctx context.Context, d models.Draft) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE drafts
		SET phase = $2, status = $3, started_at = $4, completed_at = $5, updated_at = $6
		WHERE id = $1`,
		d.ID, d.Phase, d.Status, d.StartedAt, d.CompletedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	return nil
}

func (t *draftTx) SaveParticipants(ctx context.Context, participants []uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM draft_participants WHERE draft_id = $1`, t.state.Draft.ID); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	return insertParticipants(ctx, t.tx, t.state.Draft.ID, participants)
}

func insertParticipants(ctx context.Context, tx pgx.Tx, draftID uuid.UUID, participants []uuid.UUID) error {
	rows := make([][]any, 0, len(participants))
	for slot, roster := range participants {
		rows = append(rows, []any{draftID, slot, roster})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"draft_participants"},
		[]string{"draft_id", "slot", "roster_id"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}
	return nil
}

func encodeSkipped(skipped []models.SkipEntry) (pqtype.NullRawMessage, error) {
	if len(skipped) == 0 {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(skipped)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal skipped set: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func decodeSkipped(raw pqtype.NullRawMessage) ([]models.SkipEntry, error) {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil, nil
	}
	var skipped []models.SkipEntry
	if err := json.Unmarshal(raw.RawMessage, &skipped); err != nil {
		return nil, fmt.Errorf("unmarshal skipped set: %w", err)
	}
	return skipped, nil
}
