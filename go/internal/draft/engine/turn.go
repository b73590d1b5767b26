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

// outcome collects what a transaction decided, to act on once it has committed.
type outcome struct {
	events []events.Event
	arm    *models.TurnToken
	cancel bool
	state  PublicState
}

func (o *outcome) emit(draftID uuid.UUID, eventType string, at time.Time, payload any) error {
	ev, err := events.New(draftID, eventType, at, payload)
	if err != nil {
		return err
	}
	o.events = append(o.events, ev)
	return nil
}

// nextTurn completes the phase when the ledger is full, or hands the turn to the next roster by
// priority and starts its deadline. justSkipped is the entry recorded for a lapsed turn, if any.
func (e *Engine) nextTurn(ctx context.Context, tx Tx, st *DraftState, led *ledger.Ledger, turnIndex int, justSkipped *models.SkipEntry, now time.Time, out *outcome) error {
	if led.IsComplete() {
		return e.completePhase(ctx, tx, st, led, now, out)
	}

	var candidates []turnclock.Candidate
	switch st.Draft.Phase {
	case models.PhasePicks:
		candidates = turnclock.PickCandidates(st.Participants, st.Draft.OrderingMode, led.Remaining(),
			st.Clock.Skipped, st.Draft.SkipPlacementOrDefault())
	default:
		candidates = turnclock.DerbyCandidates(st.Participants, st.Clock.BaseCursor, st.Clock.Skipped, led.HasClaimed)
	}
	next, ok := turnclock.Next(candidates, justSkipped)
	if !ok {
		return fmt.Errorf("no roster can take turn %d with %d units remaining", turnIndex, led.RemainingCount())
	}

	deadline := now.Add(st.Draft.TimePerTurn)
	turnclock.Advance(&st.Clock, turnIndex, next, now, deadline)
	if err := tx.SaveClock(ctx, st.Clock); err != nil {
		return fmt.Errorf("failed to save turn clock: %w", err)
	}

	if err := out.emit(st.Draft.ID, events.TypeTurnStarted, now, events.TurnStartedPayload{
		Phase:          st.Draft.Phase,
		TurnIndex:      turnIndex,
		RosterID:       next.Roster,
		Unit:           next.Unit,
		FromSkipped:    next.FromSkipped,
		StartedAt:      now,
		Deadline:       deadline,
		TimePerTurnSec: int(st.Draft.TimePerTurn / time.Second),
	}); err != nil {
		return err
	}

	token, _ := st.Clock.Token()
	out.arm = &token
	out.state = publicState(*st, led)
	return nil
}

func (e *Engine) completePhase(ctx context.Context, tx Tx, st *DraftState, led *ledger.Ledger, now time.Time, out *outcome) error {
	if err := validateStatusTransition(st.Draft.Status, models.DraftStatusCompleted); err != nil {
		return err
	}
	st.Draft.Status = models.DraftStatusCompleted
	st.Draft.CompletedAt = &now
	st.Draft.UpdatedAt = now
	if err := tx.SaveDraft(ctx, st.Draft); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	turnclock.Clear(&st.Clock)
	if err := tx.SaveClock(ctx, st.Clock); err != nil {
		return fmt.Errorf("failed to save turn clock: %w", err)
	}

	var duration time.Duration
	if st.Draft.StartedAt != nil {
		duration = now.Sub(*st.Draft.StartedAt)
	}
	if err := out.emit(st.Draft.ID, events.TypePhaseCompleted, now, events.PhaseCompletedPayload{
		Phase:       st.Draft.Phase,
		CompletedAt: now,
		Duration:    duration.String(),
		TotalUnits:  led.Total(),
	}); err != nil {
		return err
	}

	out.cancel = true
	out.state = publicState(*st, led)
	return nil
}

// afterCommit reprograms the scheduler and publishes the committed events. Neither can undo
// the commit.
func (e *Engine) afterCommit(ctx context.Context, draftID uuid.UUID, out *outcome) {
	if e.scheduler != nil {
		switch {
		case out.arm != nil:
			e.scheduler.Arm(*out.arm)
		case out.cancel:
			e.scheduler.Cancel(draftID)
		}
	}

	if e.notifier == nil || len(out.events) == 0 {
		return
	}
	if err := e.notifier.Notify(ctx, out.events...); err != nil {
		log.Error().
			Err(err).
			Str("draft_id", draftID.String()).
			Int("events", len(out.events)).
			Msg("failed to notify committed events")
	}
}

func publicState(st DraftState, led *ledger.Ledger) PublicState {
	ps := PublicState{
		DraftID:        st.Draft.ID,
		Phase:          st.Draft.Phase,
		Status:         st.Draft.Status,
		TurnIndex:      st.Clock.TurnIndex,
		CurrentUnit:    st.Clock.CurrentUnit,
		Participants:   append([]uuid.UUID(nil), st.Participants...),
		Skipped:        append([]models.SkipEntry(nil), st.Clock.Skipped...),
		TotalUnits:     led.Total(),
		RemainingUnits: led.Remaining(),
		ClaimHistory:   led.History(),
	}
	if st.Clock.CurrentRoster != nil {
		r := *st.Clock.CurrentRoster
		ps.CurrentRoster = &r
	}
	if st.Clock.Deadline != nil {
		d := *st.Clock.Deadline
		ps.Deadline = &d
	}
	return ps
}
