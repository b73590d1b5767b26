package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/mcdev12/draftturns/go/internal/draft/ledger"
	"github.com/mcdev12/draftturns/go/internal/draft/turnclock"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Recover applies the draft's timeout policy to the turn identified by token. A token that no
// longer matches the turn clock is stale: nothing changes and the result reports Stale.
func (e *Engine) Recover(ctx context.Context, token models.TurnToken) (*RecoverResult, error) {
	return e.recover(ctx, token, false)
}

// ForceRecover applies the timeout policy to the current turn now, whatever its deadline.
func (e *Engine) ForceRecover(ctx context.Context, draftID uuid.UUID) (*RecoverResult, error) {
	st, err := e.store.Load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if st.Draft.Status != models.DraftStatusInProgress {
		return nil, ErrNotInProgress
	}
	token, ok := st.Clock.Token()
	if !ok {
		return nil, ErrNotInProgress
	}
	return e.recover(ctx, token, true)
}

func (e *Engine) recover(ctx context.Context, token models.TurnToken, forced bool) (*RecoverResult, error) {
	snapshot, err := e.store.Load(ctx, token.DraftID)
	if err != nil {
		return nil, err
	}
	if snapshot.Draft.Status != models.DraftStatusInProgress || !token.Matches(snapshot.Clock) {
		e.logStale(token)
		return staleResult(snapshot), nil
	}

	// The selection is resolved before the lock is taken. If the turn moves on meanwhile the
	// locked check below drops it.
	var selection *uuid.UUID
	if snapshot.Draft.TimeoutPolicy == models.TimeoutPolicyAutoAssign &&
		snapshot.Draft.Phase == models.PhasePicks && e.selector != nil {
		selection, err = e.selector.Select(ctx, token.DraftID, *snapshot.Clock.CurrentRoster)
		if err != nil {
			log.Warn().
				Err(err).
				Str("draft_id", token.DraftID.String()).
				Msg("auto-pick selection failed, assigning without a selection")
			selection = nil
		}
	}

	var (
		out    *outcome
		result *RecoverResult
	)
	err = e.inTx(ctx, token.DraftID, func(tx Tx) error {
		st := tx.State()
		out = &outcome{}
		if st.Draft.Status != models.DraftStatusInProgress || !token.Matches(st.Clock) {
			result = staleResult(&st)
			return nil
		}

		led, err := ledger.New(st.Draft.Phase, st.Draft.TotalUnits(), st.Claims)
		if err != nil {
			return err
		}
		now := e.now()
		roster := *st.Clock.CurrentRoster
		result = &RecoverResult{}

		switch st.Draft.TimeoutPolicy {
		case models.TimeoutPolicyAutoAssign:
			unit := st.Clock.CurrentUnit
			if st.Draft.Phase == models.PhaseDerby {
				remaining := led.Remaining()
				unit = remaining[e.intn(len(remaining))]
			}
			record, err := e.commitClaim(ctx, tx, &st, led, roster, unit, true, selection, now, out)
			if err != nil {
				return err
			}
			result.Claim = &record
			if err := e.nextTurn(ctx, tx, &st, led, st.Clock.TurnIndex+1, nil, now, out); err != nil {
				return err
			}

		default:
			entry := models.SkipEntry{RosterID: roster}
			if st.Draft.Phase == models.PhasePicks {
				entry.Unit = st.Clock.CurrentUnit
			}
			turnclock.RecordSkip(&st.Clock, entry)
			if err := out.emit(st.Draft.ID, events.TypeTurnSkipped, now, events.TurnSkippedPayload{
				Phase:     st.Draft.Phase,
				TurnIndex: st.Clock.TurnIndex,
				RosterID:  roster,
				Unit:      entry.Unit,
				SkippedAt: now,
				Forced:    forced,
			}); err != nil {
				return err
			}
			result.Skipped = &entry
			if err := e.nextTurn(ctx, tx, &st, led, st.Clock.TurnIndex+1, &entry, now, out); err != nil {
				return err
			}
		}

		result.State = &out.state
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to recover turn %d: %w", token.TurnIndex, err)
	}
	if result.Stale {
		e.logStale(token)
		return result, nil
	}

	e.afterCommit(ctx, token.DraftID, out)
	ev := log.Info().
		Str("draft_id", token.DraftID.String()).
		Int("turn_index", token.TurnIndex).
		Bool("forced", forced)
	if result.Claim != nil {
		ev = ev.Int("auto_assigned_unit", result.Claim.Unit)
	}
	ev.Msg("turn recovered")
	return result, nil
}

func staleResult(st *DraftState) *RecoverResult {
	res := &RecoverResult{Stale: true}
	if st.Draft.Status == models.DraftStatusInProgress {
		if cur, ok := st.Clock.Token(); ok {
			res.Current = &cur
		}
	}
	return res
}

func (e *Engine) logStale(token models.TurnToken) {
	log.Debug().
		Str("draft_id", token.DraftID.String()).
		Int("turn_index", token.TurnIndex).
		Time("deadline", token.Deadline).
		Msg("dropping stale timeout")
}
