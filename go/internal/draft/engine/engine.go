// Package engine is the turn state machine of a draft. Every claim and timeout recovery for a
// draft runs as one transaction under that draft's lock; scheduling and notifications happen
// after the commit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/mcdev12/draftturns/go/internal/draft/ledger"
	"github.com/mcdev12/draftturns/go/internal/draft/turnclock"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Engine coordinates the ledger, order calculator and turn clock of every draft in a Store.
type Engine struct {
	store     Store
	clock     clockwork.Clock
	selector  Selector
	notifier  Notifier
	scheduler Scheduler

	rngMu sync.Mutex
	rng   *rand.Rand

	retries   uint64
	retryBase time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock deadlines are computed from.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRand sets the random source used for shuffling and auto-assignment.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithSelector sets the strategy that fills the selection of automatic picks.
func WithSelector(s Selector) Option {
	return func(e *Engine) { e.selector = s }
}

// WithNotifier sets the sink for committed events.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithScheduler sets the timeout scheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithRetry sets how many times a conflicted commit is retried and the first backoff delay.
func WithRetry(retries uint64, base time.Duration) Option {
	return func(e *Engine) {
		e.retries = retries
		e.retryBase = base
	}
}

// New creates an Engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		clock:     clockwork.NewRealClock(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		retries:   defaultConflictRetries,
		retryBase: defaultConflictBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetScheduler wires the scheduler after construction. The supervisor needs the engine and the
// engine needs the supervisor, so one side is set late.
func (e *Engine) SetScheduler(s Scheduler) {
	e.scheduler = s
}

// SetNotifier replaces the event sink after construction, for sinks that read state back
// through the engine.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// now is the commit time at the precision deadlines are stored at, so a token armed from a
// commit still matches the clock after it is read back.
func (e *Engine) now() time.Time {
	return e.clock.Now().Truncate(models.DeadlinePrecision)
}

// CreateDraft validates and stores a new draft in status not_started.
func (e *Engine) CreateDraft(ctx context.Context, draft models.Draft, participants []uuid.UUID) (*models.Draft, error) {
	if draft.Phase == "" {
		draft.Phase = models.PhaseDerby
	}
	if draft.ParticipantCount == 0 {
		draft.ParticipantCount = len(participants)
	}
	if err := validateDraft(draft, participants); err != nil {
		return nil, err
	}

	now := e.now()
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	draft.Status = models.DraftStatusNotStarted
	draft.StartedAt = nil
	draft.CompletedAt = nil
	draft.CreatedAt = now
	draft.UpdatedAt = now

	if err := e.store.CreateDraft(ctx, draft, slices.Clone(participants)); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	log.Info().
		Str("draft_id", draft.ID.String()).
		Str("phase", string(draft.Phase)).
		Str("ordering_mode", string(draft.OrderingMode)).
		Int("participants", draft.ParticipantCount).
		Msg("draft created")
	return &draft, nil
}

// StartPhase moves a not_started draft to in_progress and starts the first turn.
func (e *Engine) StartPhase(ctx context.Context, draftID uuid.UUID) (*PublicState, error) {
	var out *outcome
	err := e.inTx(ctx, draftID, func(tx Tx) error {
		st := tx.State()
		if err := validateStatusTransition(st.Draft.Status, models.DraftStatusInProgress); err != nil {
			return err
		}
		if len(st.Participants) == 0 {
			return fmt.Errorf("%w: no participants", ErrInvalidDraft)
		}

		now := e.now()
		out = &outcome{}

		if st.Draft.ShuffleOrder && st.Draft.Phase == models.PhaseDerby {
			st.Participants = e.shuffle(st.Participants)
			if err := tx.SaveParticipants(ctx, st.Participants); err != nil {
				return fmt.Errorf("failed to save participants: %w", err)
			}
			if err := out.emit(st.Draft.ID, events.TypePickOrderSet, now, events.PickOrderSetPayload{
				Participants: st.Participants,
				SetAt:        now,
			}); err != nil {
				return err
			}
		}

		st.Draft.Status = models.DraftStatusInProgress
		st.Draft.StartedAt = &now
		st.Draft.CompletedAt = nil
		st.Draft.UpdatedAt = now
		if err := tx.SaveDraft(ctx, st.Draft); err != nil {
			return fmt.Errorf("failed to save draft: %w", err)
		}
		if err := out.emit(st.Draft.ID, events.TypePhaseStarted, now, events.PhaseStartedPayload{
			Phase:        st.Draft.Phase,
			Participants: st.Participants,
			TotalUnits:   st.Draft.TotalUnits(),
			StartedAt:    now,
		}); err != nil {
			return err
		}

		led, err := ledger.New(st.Draft.Phase, st.Draft.TotalUnits(), st.Claims)
		if err != nil {
			return err
		}
		turnclock.Reset(&st.Clock)
		st.Clock.DraftID = st.Draft.ID
		return e.nextTurn(ctx, tx, &st, led, 0, nil, now, out)
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, draftID, out)
	log.Info().
		Str("draft_id", draftID.String()).
		Str("phase", string(out.state.Phase)).
		Msg("draft phase started")
	return &out.state, nil
}

// GetPublicState returns the current state of a draft without taking its lock.
func (e *Engine) GetPublicState(ctx context.Context, draftID uuid.UUID) (*PublicState, error) {
	st, err := e.store.Load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	led, err := ledger.New(st.Draft.Phase, st.Draft.TotalUnits(), st.Claims)
	if err != nil {
		return nil, err
	}
	ps := publicState(*st, led)
	return &ps, nil
}

// BeginPickPhase turns a completed derby into a not_started pick phase. The derby claims,
// ordered by position, become the participant order.
func (e *Engine) BeginPickPhase(ctx context.Context, draftID uuid.UUID) (*PublicState, error) {
	var out *outcome
	err := e.inTx(ctx, draftID, func(tx Tx) error {
		st := tx.State()
		if st.Draft.Phase != models.PhaseDerby || st.Draft.Status != models.DraftStatusCompleted {
			return fmt.Errorf("%w: pick phase needs a completed derby, draft is %s/%s",
				ErrInvalidTransition, st.Draft.Phase, st.Draft.Status)
		}
		if st.Draft.Rounds <= 0 {
			return fmt.Errorf("%w: rounds must be positive", ErrInvalidDraft)
		}

		claims := slices.Clone(st.Claims)
		slices.SortFunc(claims, func(a, b models.ClaimRecord) int { return a.Unit - b.Unit })
		participants := make([]uuid.UUID, 0, len(claims))
		for _, c := range claims {
			participants = append(participants, c.RosterID)
		}
		if len(participants) != st.Draft.ParticipantCount {
			return fmt.Errorf("%w: derby produced %d positions for %d participants",
				ErrInvalidDraft, len(participants), st.Draft.ParticipantCount)
		}

		now := e.now()
		out = &outcome{}
		if err := tx.SaveParticipants(ctx, participants); err != nil {
			return fmt.Errorf("failed to save participants: %w", err)
		}

		st.Participants = participants
		st.Draft.Phase = models.PhasePicks
		st.Draft.Status = models.DraftStatusNotStarted
		st.Draft.StartedAt = nil
		st.Draft.CompletedAt = nil
		st.Draft.UpdatedAt = now
		if err := tx.SaveDraft(ctx, st.Draft); err != nil {
			return fmt.Errorf("failed to save draft: %w", err)
		}

		turnclock.Reset(&st.Clock)
		if err := tx.SaveClock(ctx, st.Clock); err != nil {
			return fmt.Errorf("failed to save turn clock: %w", err)
		}
		st.Claims = nil

		if err := out.emit(st.Draft.ID, events.TypePickOrderSet, now, events.PickOrderSetPayload{
			Participants: participants,
			SetAt:        now,
		}); err != nil {
			return err
		}

		led, err := ledger.New(st.Draft.Phase, st.Draft.TotalUnits(), nil)
		if err != nil {
			return err
		}
		out.state = publicState(st, led)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, draftID, out)
	log.Info().Str("draft_id", draftID.String()).Msg("pick order set from derby")
	return &out.state, nil
}

// ResetDraft deletes every claim of the current phase and restarts the turn clock. A running
// or completed phase resumes at its first turn; a phase that never started stays not_started.
func (e *Engine) ResetDraft(ctx context.Context, draftID uuid.UUID) (*PublicState, error) {
	var out *outcome
	err := e.inTx(ctx, draftID, func(tx Tx) error {
		st := tx.State()
		now := e.now()
		out = &outcome{}

		cleared, err := tx.DeleteClaims(ctx, st.Draft.Phase)
		if err != nil {
			return fmt.Errorf("failed to delete claims: %w", err)
		}
		st.Claims = nil
		turnclock.Reset(&st.Clock)
		st.Clock.DraftID = st.Draft.ID

		if err := out.emit(st.Draft.ID, events.TypeDraftReset, now, events.DraftResetPayload{
			Phase:         st.Draft.Phase,
			ResetAt:       now,
			ClearedClaims: cleared,
		}); err != nil {
			return err
		}

		led, err := ledger.New(st.Draft.Phase, st.Draft.TotalUnits(), nil)
		if err != nil {
			return err
		}

		if st.Draft.Status == models.DraftStatusNotStarted {
			if err := tx.SaveClock(ctx, st.Clock); err != nil {
				return fmt.Errorf("failed to save turn clock: %w", err)
			}
			out.cancel = true
			out.state = publicState(st, led)
			return nil
		}

		st.Draft.Status = models.DraftStatusInProgress
		st.Draft.StartedAt = &now
		st.Draft.CompletedAt = nil
		st.Draft.UpdatedAt = now
		if err := tx.SaveDraft(ctx, st.Draft); err != nil {
			return fmt.Errorf("failed to save draft: %w", err)
		}
		return e.nextTurn(ctx, tx, &st, led, 0, nil, now, out)
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, draftID, out)
	log.Warn().Str("draft_id", draftID.String()).Msg("draft reset")
	return &out.state, nil
}

// RunningTurns lists the armed turn of every in-progress draft.
func (e *Engine) RunningTurns(ctx context.Context) ([]models.TurnToken, error) {
	tokens, err := e.store.ListRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list running drafts: %w", err)
	}
	return tokens, nil
}

func (e *Engine) shuffle(participants []uuid.UUID) []uuid.UUID {
	out := slices.Clone(participants)
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

func validateDraft(d models.Draft, participants []uuid.UUID) error {
	var errs []error
	if len(participants) == 0 {
		errs = append(errs, errors.New("participant count must be positive"))
	}
	if len(participants) != d.ParticipantCount {
		errs = append(errs, fmt.Errorf("participant count %d does not match %d participants", d.ParticipantCount, len(participants)))
	}
	seen := make(map[uuid.UUID]bool, len(participants))
	for _, p := range participants {
		if p == uuid.Nil {
			errs = append(errs, errors.New("participant id is empty"))
			continue
		}
		if seen[p] {
			errs = append(errs, fmt.Errorf("duplicate participant %s", p))
		}
		seen[p] = true
	}
	switch d.OrderingMode {
	case models.OrderingLinear, models.OrderingSnake, models.OrderingSnakeRoundReversal:
	default:
		errs = append(errs, fmt.Errorf("unknown ordering mode %q", d.OrderingMode))
	}
	switch d.TimeoutPolicy {
	case models.TimeoutPolicySkip, models.TimeoutPolicyAutoAssign:
	default:
		errs = append(errs, fmt.Errorf("unknown timeout policy %q", d.TimeoutPolicy))
	}
	switch d.Phase {
	case models.PhaseDerby:
	case models.PhasePicks:
		if d.Rounds <= 0 {
			errs = append(errs, errors.New("rounds must be positive for the pick phase"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown phase %q", d.Phase))
	}
	switch d.PickSkipPlacement {
	case "", models.SkipPlacementNextTurn, models.SkipPlacementEndOfRound:
	default:
		errs = append(errs, fmt.Errorf("unknown skip placement %q", d.PickSkipPlacement))
	}
	if d.Rounds < 0 {
		errs = append(errs, errors.New("rounds must not be negative"))
	}
	if d.TimePerTurn <= 0 {
		errs = append(errs, errors.New("time per turn must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDraft, errors.Join(errs...))
	}
	return nil
}

// validateStatusTransition validates if a status transition is allowed
func validateStatusTransition(current, next models.DraftStatus) error {
	allowedTransitions := map[models.DraftStatus][]models.DraftStatus{
		models.DraftStatusNotStarted: {models.DraftStatusInProgress},
		models.DraftStatusInProgress: {models.DraftStatusCompleted},
		models.DraftStatusCompleted:  {}, // only a reset leaves completed
	}

	allowedNext, exists := allowedTransitions[current]
	if !exists {
		return fmt.Errorf("%w: unknown current status %s", ErrInvalidTransition, current)
	}
	if slices.Contains(allowedNext, next) {
		return nil
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, next)
}
