package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/mcdev12/draftturns/go/internal/draft/ledger"
	"github.com/mcdev12/draftturns/go/internal/draft/turnclock"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ClaimRequest is a roster's attempt to claim a unit.
type ClaimRequest struct {
	DraftID  uuid.UUID
	RosterID uuid.UUID
	// Unit is a position in the derby or an overall pick number in the pick phase. Zero claims
	// the unit currently due in the pick phase.
	Unit      int
	Selection *uuid.UUID
}

// Claim validates and commits a voluntary claim, then advances the turn.
func (e *Engine) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	var (
		out    *outcome
		record models.ClaimRecord
	)
	err := e.inTx(ctx, req.DraftID, func(tx Tx) error {
		st := tx.State()
		led, err := ledger.New(st.Draft.Phase, st.Draft.TotalUnits(), st.Claims)
		if err != nil {
			return err
		}

		unit, err := checkClaim(st, led, req)
		if err != nil {
			return err
		}

		now := e.now()
		out = &outcome{}
		record, err = e.commitClaim(ctx, tx, &st, led, req.RosterID, unit, false, req.Selection, now, out)
		if err != nil {
			return err
		}
		return e.nextTurn(ctx, tx, &st, led, st.Clock.TurnIndex+1, nil, now, out)
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, req.DraftID, out)
	log.Info().
		Str("draft_id", req.DraftID.String()).
		Str("roster_id", req.RosterID.String()).
		Int("unit", record.Unit).
		Int("turn_index", record.TurnIndex).
		Msg("claim committed")
	return &ClaimResult{Claim: record, State: out.state}, nil
}

// checkClaim applies the claim rules in order and returns the unit being claimed. A unit that
// already has a record is rejected before turn ownership is looked at, so a replayed or racing
// claim for the same unit always reports it as taken.
func checkClaim(st DraftState, led *ledger.Ledger, req ClaimRequest) (int, error) {
	if st.Draft.Status != models.DraftStatusInProgress {
		return 0, ErrNotInProgress
	}

	unit := req.Unit
	if unit == 0 && st.Draft.Phase == models.PhasePicks {
		unit = st.Clock.CurrentUnit
	}
	if led.IsClaimed(unit) {
		return 0, ErrAlreadyClaimed
	}
	if st.Clock.CurrentRoster == nil || *st.Clock.CurrentRoster != req.RosterID {
		return 0, ErrNotYourTurn
	}
	if unit < 1 || unit > led.Total() {
		return 0, fmt.Errorf("%w: %d not in [1, %d]", ErrUnitOutOfRange, unit, led.Total())
	}
	if st.Draft.Phase == models.PhasePicks && unit != st.Clock.CurrentUnit {
		return 0, fmt.Errorf("%w: unit %d is not due", ErrNotYourTurn, unit)
	}
	return unit, nil
}

// commitClaim records the claim in the ledger and the store and clears the roster from the
// skipped set.
func (e *Engine) commitClaim(ctx context.Context, tx Tx, st *DraftState, led *ledger.Ledger, roster uuid.UUID, unit int, automatic bool, selection *uuid.UUID, now time.Time, out *outcome) (models.ClaimRecord, error) {
	record := models.ClaimRecord{
		ID:        uuid.New(),
		DraftID:   st.Draft.ID,
		Phase:     st.Draft.Phase,
		Unit:      unit,
		RosterID:  roster,
		TurnIndex: st.Clock.TurnIndex,
		Automatic: automatic,
		ClaimedAt: now,
	}
	if st.Draft.Phase == models.PhasePicks && selection != nil {
		s := *selection
		record.Selection = &s
	}

	if err := led.RecordClaim(record); err != nil {
		return models.ClaimRecord{}, err
	}
	if err := tx.InsertClaim(ctx, record); err != nil {
		return models.ClaimRecord{}, fmt.Errorf("failed to insert claim: %w", err)
	}
	st.Claims = append(st.Claims, record)
	turnclock.ClearSkip(&st.Clock, st.Draft.Phase, roster, unit)

	if err := out.emit(st.Draft.ID, events.TypeClaimCommitted, now, events.ClaimCommittedPayload{
		ClaimID:   record.ID,
		Phase:     record.Phase,
		TurnIndex: record.TurnIndex,
		RosterID:  record.RosterID,
		Unit:      record.Unit,
		Automatic: record.Automatic,
		Selection: record.Selection,
		ClaimedAt: record.ClaimedAt,
	}); err != nil {
		return models.ClaimRecord{}, err
	}
	return record, nil
}
