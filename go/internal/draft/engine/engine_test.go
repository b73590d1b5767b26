package engine_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/mcdev12/draftturns/go/internal/draft/store/memory"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	mu        sync.Mutex
	armed     map[uuid.UUID]models.TurnToken
	cancelled map[uuid.UUID]int
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{
		armed:     make(map[uuid.UUID]models.TurnToken),
		cancelled: make(map[uuid.UUID]int),
	}
}

func (s *recordingScheduler) Arm(token models.TurnToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed[token.DraftID] = token
}

func (s *recordingScheduler) Cancel(draftID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.armed, draftID)
	s.cancelled[draftID]++
}

func (s *recordingScheduler) token(t *testing.T, draftID uuid.UUID) models.TurnToken {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.armed[draftID]
	require.True(t, ok, "no timer armed for draft")
	return token
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, evs ...events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evs...)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixedSelector struct {
	selection uuid.UUID
	calls     int
}

func (s *fixedSelector) Select(context.Context, uuid.UUID, uuid.UUID) (*uuid.UUID, error) {
	s.calls++
	sel := s.selection
	return &sel, nil
}

type harness struct {
	store     *memory.Store
	clock     *clockwork.FakeClock
	scheduler *recordingScheduler
	notifier  *recordingNotifier
	engine    *engine.Engine
}

func newHarness(t *testing.T, opts ...engine.Option) *harness {
	t.Helper()
	h := &harness{
		store:     memory.New(),
		clock:     clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)),
		scheduler: newRecordingScheduler(),
		notifier:  &recordingNotifier{},
	}
	base := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithRand(rand.New(rand.NewSource(7))),
		engine.WithScheduler(h.scheduler),
		engine.WithNotifier(h.notifier),
		engine.WithRetry(3, time.Millisecond),
	}
	h.engine = engine.New(h.store, append(base, opts...)...)
	return h
}

func rosterID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func rosters(ns ...int) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ns))
	for _, n := range ns {
		out = append(out, rosterID(n))
	}
	return out
}

func (h *harness) createDraft(t *testing.T, d models.Draft, participants []uuid.UUID) *models.Draft {
	t.Helper()
	if d.OrderingMode == "" {
		d.OrderingMode = models.OrderingSnake
	}
	if d.TimeoutPolicy == "" {
		d.TimeoutPolicy = models.TimeoutPolicySkip
	}
	if d.TimePerTurn == 0 {
		d.TimePerTurn = time.Minute
	}
	if d.Rounds == 0 {
		d.Rounds = 3
	}
	created, err := h.engine.CreateDraft(context.Background(), d, participants)
	require.NoError(t, err)
	return created
}

func (h *harness) startedDraft(t *testing.T, d models.Draft, participants []uuid.UUID) *models.Draft {
	t.Helper()
	created := h.createDraft(t, d, participants)
	_, err := h.engine.StartPhase(context.Background(), created.ID)
	require.NoError(t, err)
	return created
}

func (h *harness) state(t *testing.T, draftID uuid.UUID) *engine.PublicState {
	t.Helper()
	st, err := h.engine.GetPublicState(context.Background(), draftID)
	require.NoError(t, err)
	assert.Equal(t, st.TotalUnits, len(st.RemainingUnits)+len(st.ClaimHistory))
	return st
}

func TestCreateDraft_Validation(t *testing.T) {
	valid := models.Draft{
		OrderingMode:  models.OrderingSnake,
		TimeoutPolicy: models.TimeoutPolicySkip,
		TimePerTurn:   time.Minute,
		Rounds:        2,
	}

	tests := []struct {
		name         string
		mutate       func(d *models.Draft)
		participants []uuid.UUID
		wantErr      bool
	}{
		{name: "valid derby", mutate: func(*models.Draft) {}, participants: rosters(1, 2, 3)},
		{name: "valid picks", mutate: func(d *models.Draft) { d.Phase = models.PhasePicks }, participants: rosters(1, 2)},
		{name: "no participants", mutate: func(*models.Draft) {}, participants: nil, wantErr: true},
		{name: "duplicate participant", mutate: func(*models.Draft) {}, participants: rosters(1, 2, 1), wantErr: true},
		{name: "count mismatch", mutate: func(d *models.Draft) { d.ParticipantCount = 5 }, participants: rosters(1, 2), wantErr: true},
		{name: "unknown mode", mutate: func(d *models.Draft) { d.OrderingMode = "spiral" }, participants: rosters(1, 2), wantErr: true},
		{name: "unknown policy", mutate: func(d *models.Draft) { d.TimeoutPolicy = "pause" }, participants: rosters(1, 2), wantErr: true},
		{name: "zero time limit", mutate: func(d *models.Draft) { d.TimePerTurn = 0 }, participants: rosters(1, 2), wantErr: true},
		{name: "picks without rounds", mutate: func(d *models.Draft) { d.Phase = models.PhasePicks; d.Rounds = 0 }, participants: rosters(1, 2), wantErr: true},
		{name: "unknown placement", mutate: func(d *models.Draft) { d.PickSkipPlacement = "never" }, participants: rosters(1, 2), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			d := valid
			tt.mutate(&d)
			created, err := h.engine.CreateDraft(context.Background(), d, tt.participants)
			if tt.wantErr {
				require.ErrorIs(t, err, engine.ErrInvalidDraft)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, created.ID)
			assert.Equal(t, models.DraftStatusNotStarted, created.Status)
			assert.Equal(t, len(tt.participants), created.ParticipantCount)
		})
	}
}

func TestStartPhase(t *testing.T) {
	h := newHarness(t)
	d := h.createDraft(t, models.Draft{}, rosters(1, 2, 3))

	st, err := h.engine.StartPhase(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, models.DraftStatusInProgress, st.Status)
	require.NotNil(t, st.CurrentRoster)
	assert.Equal(t, rosterID(1), *st.CurrentRoster)
	require.NotNil(t, st.Deadline)
	assert.Equal(t, h.clock.Now().Add(time.Minute), *st.Deadline)
	assert.Equal(t, []int{1, 2, 3}, st.RemainingUnits)
	assert.Empty(t, st.ClaimHistory)

	token := h.scheduler.token(t, d.ID)
	assert.Equal(t, 0, token.TurnIndex)
	assert.Equal(t, *st.Deadline, token.Deadline)
	assert.Equal(t, []string{events.TypePhaseStarted, events.TypeTurnStarted}, h.notifier.types())

	_, err = h.engine.StartPhase(context.Background(), d.ID)
	require.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestStartPhase_ShuffleUsesInjectedRand(t *testing.T) {
	order := func(seed int64) []uuid.UUID {
		h := newHarness(t, engine.WithRand(rand.New(rand.NewSource(seed))))
		d := h.startedDraft(t, models.Draft{ShuffleOrder: true}, rosters(1, 2, 3, 4, 5, 6))
		return h.state(t, d.ID).Participants
	}

	first := order(99)
	assert.Equal(t, first, order(99))
	assert.ElementsMatch(t, rosters(1, 2, 3, 4, 5, 6), first)
}

func TestStartPhase_UnknownDraft(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.StartPhase(context.Background(), uuid.New())
	require.ErrorIs(t, err, engine.ErrDraftNotFound)
}

func TestClaim_Errors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.createDraft(t, models.Draft{}, rosters(1, 2, 3))

	_, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 1})
	require.ErrorIs(t, err, engine.ErrNotInProgress)

	_, err = h.engine.StartPhase(ctx, d.ID)
	require.NoError(t, err)

	_, err = h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(2), Unit: 1})
	require.ErrorIs(t, err, engine.ErrNotYourTurn)

	_, err = h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 9})
	require.ErrorIs(t, err, engine.ErrUnitOutOfRange)

	res, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 2})
	require.NoError(t, err)
	assert.False(t, res.Claim.Automatic)
	assert.Equal(t, 2, res.Claim.Unit)
	assert.Equal(t, rosterID(2), *res.State.CurrentRoster)

	// The rightful roster still cannot take a unit that is gone.
	_, err = h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(2), Unit: 2})
	require.ErrorIs(t, err, engine.ErrAlreadyClaimed)

	// A replay of the first claim reports the unit as taken.
	_, err = h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 2})
	require.ErrorIs(t, err, engine.ErrAlreadyClaimed)
	assert.True(t, engine.IsClientError(err))

	st := h.state(t, d.ID)
	assert.Len(t, st.ClaimHistory, 1)
	assert.Equal(t, []int{1, 3}, st.RemainingUnits)
}

func TestClaim_PickPhaseUnitMustBeDue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.startedDraft(t, models.Draft{Phase: models.PhasePicks, Rounds: 2}, rosters(1, 2))

	_, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 4})
	require.ErrorIs(t, err, engine.ErrNotYourTurn)

	player := uuid.New()
	res, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Selection: &player})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Claim.Unit)
	require.NotNil(t, res.Claim.Selection)
	assert.Equal(t, player, *res.Claim.Selection)
	assert.Equal(t, 2, res.State.CurrentUnit)
}

func TestClaim_LastUnitCompletesPhase(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.startedDraft(t, models.Draft{}, rosters(1, 2))

	_, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 2})
	require.NoError(t, err)
	res, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(2), Unit: 1})
	require.NoError(t, err)

	assert.Equal(t, models.DraftStatusCompleted, res.State.Status)
	assert.Nil(t, res.State.CurrentRoster)
	assert.Nil(t, res.State.Deadline)
	assert.Empty(t, res.State.RemainingUnits)
	assert.Equal(t, 1, h.scheduler.cancelled[d.ID])
	assert.Contains(t, h.notifier.types(), events.TypePhaseCompleted)

	_, err = h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 1})
	require.ErrorIs(t, err, engine.ErrNotInProgress)
}

func TestRecover_StaleTokenIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.startedDraft(t, models.Draft{TimeoutPolicy: models.TimeoutPolicyAutoAssign}, rosters(1, 2, 3))

	token := h.scheduler.token(t, d.ID)
	_, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 1})
	require.NoError(t, err)
	before := h.state(t, d.ID)

	res, err := h.engine.Recover(ctx, token)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, before, h.state(t, d.ID))
	require.NotNil(t, res.Current)
	assert.Equal(t, h.scheduler.token(t, d.ID), *res.Current)
	assert.True(t, res.Current.Supersedes(token))
}

// microsecondStore stores deadlines at the precision of a TIMESTAMPTZ column.
type microsecondStore struct {
	*memory.Store
}

type microsecondTx struct {
	engine.Tx
}

func (s microsecondStore) InTx(ctx context.Context, draftID uuid.UUID, fn func(tx engine.Tx) error) error {
	return s.Store.InTx(ctx, draftID, func(tx engine.Tx) error {
		return fn(microsecondTx{tx})
	})
}

func (t microsecondTx) SaveClock(ctx context.Context, c models.TurnClock) error {
	if c.Deadline != nil {
		d := c.Deadline.Truncate(time.Microsecond)
		c.Deadline = &d
	}
	return t.Tx.SaveClock(ctx, c)
}

func TestRecover_ArmedTokenMatchesStoredDeadline(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 12, 0, 0, 123456789, time.UTC))
	sched := newRecordingScheduler()
	eng := engine.New(microsecondStore{memory.New()}, engine.WithClock(clock), engine.WithScheduler(sched))

	d, err := eng.CreateDraft(ctx, models.Draft{
		OrderingMode:  models.OrderingLinear,
		TimeoutPolicy: models.TimeoutPolicySkip,
		TimePerTurn:   time.Second,
		Rounds:        1,
	}, rosters(1, 2, 3))
	require.NoError(t, err)
	_, err = eng.StartPhase(ctx, d.ID)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	res, err := eng.Recover(ctx, sched.token(t, d.ID))
	require.NoError(t, err)
	assert.False(t, res.Stale)
	require.NotNil(t, res.Skipped)
	assert.Equal(t, rosterID(1), res.Skipped.RosterID)

	// The next turn's token also survives the round trip.
	clock.Advance(2 * time.Second)
	res, err = eng.Recover(ctx, sched.token(t, d.ID))
	require.NoError(t, err)
	assert.False(t, res.Stale)
}

func TestRecover_SkipReentersBeforeNextBaseRoster(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.startedDraft(t, models.Draft{TimeoutPolicy: models.TimeoutPolicySkip}, rosters(1, 2, 3, 4))

	h.clock.Advance(time.Minute)
	res, err := h.engine.Recover(ctx, h.scheduler.token(t, d.ID))
	require.NoError(t, err)
	require.NotNil(t, res.Skipped)
	assert.Nil(t, res.Claim)
	assert.Equal(t, rosterID(1), res.Skipped.RosterID)
	assert.Equal(t, rosterID(2), *res.State.CurrentRoster)
	assert.Equal(t, []models.SkipEntry{{RosterID: rosterID(1)}}, res.State.Skipped)
	assert.Empty(t, res.State.ClaimHistory)

	claim, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(2), Unit: 1})
	require.NoError(t, err)
	assert.Equal(t, rosterID(1), *claim.State.CurrentRoster, "skipped roster comes back before roster 3")

	claim, err = h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 4})
	require.NoError(t, err)
	assert.Empty(t, claim.State.Skipped)
	assert.Equal(t, rosterID(3), *claim.State.CurrentRoster)
}

func TestForceRecover(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.createDraft(t, models.Draft{}, rosters(1, 2))

	_, err := h.engine.ForceRecover(ctx, d.ID)
	require.ErrorIs(t, err, engine.ErrNotInProgress)

	_, err = h.engine.StartPhase(ctx, d.ID)
	require.NoError(t, err)

	res, err := h.engine.ForceRecover(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Skipped)
	assert.Equal(t, rosterID(2), *res.State.CurrentRoster)

	var skipped events.TurnSkippedPayload
	for _, ev := range h.notifier.events {
		if ev.Type == events.TypeTurnSkipped {
			require.NoError(t, ev.Decode(&skipped))
		}
	}
	assert.True(t, skipped.Forced)
}

func TestRecover_PickPhaseAutoAssignUsesSelector(t *testing.T) {
	ctx := context.Background()
	sel := &fixedSelector{selection: uuid.New()}
	h := newHarness(t, engine.WithSelector(sel))
	d := h.startedDraft(t, models.Draft{
		Phase:         models.PhasePicks,
		Rounds:        1,
		TimeoutPolicy: models.TimeoutPolicyAutoAssign,
	}, rosters(1, 2))

	res, err := h.engine.Recover(ctx, h.scheduler.token(t, d.ID))
	require.NoError(t, err)
	require.NotNil(t, res.Claim)
	assert.True(t, res.Claim.Automatic)
	assert.Equal(t, 1, res.Claim.Unit)
	assert.Equal(t, rosterID(1), res.Claim.RosterID)
	require.NotNil(t, res.Claim.Selection)
	assert.Equal(t, sel.selection, *res.Claim.Selection)
	assert.Equal(t, 1, sel.calls)
}

func TestClaim_ConflictsAreRetried(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.startedDraft(t, models.Draft{}, rosters(1, 2))

	h.store.InjectConflicts(d.ID, 2)
	_, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 1})
	require.NoError(t, err)

	h.store.InjectConflicts(d.ID, 10)
	_, err = h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(2), Unit: 2})
	require.ErrorIs(t, err, engine.ErrTransient)
	assert.False(t, engine.IsClientError(err))

	st := h.state(t, d.ID)
	assert.Len(t, st.ClaimHistory, 1)
	assert.Equal(t, rosterID(2), *st.CurrentRoster)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notifier.err = fmt.Errorf("broker down")
	d := h.startedDraft(t, models.Draft{}, rosters(1, 2))

	_, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 1})
	require.NoError(t, err)
	assert.Len(t, h.state(t, d.ID).ClaimHistory, 1)
}

func TestBeginPickPhase(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.startedDraft(t, models.Draft{Rounds: 2, OrderingMode: models.OrderingLinear}, rosters(1, 2, 3))

	_, err := h.engine.BeginPickPhase(ctx, d.ID)
	require.ErrorIs(t, err, engine.ErrInvalidTransition)

	for _, c := range []struct{ roster, unit int }{{1, 3}, {2, 1}, {3, 2}} {
		_, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(c.roster), Unit: c.unit})
		require.NoError(t, err)
	}

	st, err := h.engine.BeginPickPhase(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhasePicks, st.Phase)
	assert.Equal(t, models.DraftStatusNotStarted, st.Status)
	assert.Equal(t, rosters(2, 3, 1), st.Participants)
	assert.Equal(t, 6, st.TotalUnits)
	assert.Empty(t, st.ClaimHistory)

	st, err = h.engine.StartPhase(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, rosterID(2), *st.CurrentRoster)
	assert.Equal(t, 1, st.CurrentUnit)
}

func TestResetDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	d := h.startedDraft(t, models.Draft{}, rosters(1, 2, 3))

	_, err := h.engine.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: rosterID(1), Unit: 1})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.engine.ForceRecover(ctx, d.ID)
	require.NoError(t, err)

	st, err := h.engine.ResetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusInProgress, st.Status)
	assert.Empty(t, st.ClaimHistory)
	assert.Empty(t, st.Skipped)
	assert.Equal(t, 0, st.TurnIndex)
	assert.Equal(t, rosterID(1), *st.CurrentRoster)
	assert.Equal(t, h.clock.Now().Add(time.Minute), *st.Deadline)
	assert.Equal(t, *st.Deadline, h.scheduler.token(t, d.ID).Deadline)
	assert.Contains(t, h.notifier.types(), events.TypeDraftReset)
}
