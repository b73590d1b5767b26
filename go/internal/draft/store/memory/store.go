// Package memory is an in-process engine.Store. A draft's lock is a one-slot channel, and a
// transaction stages its writes and applies them only when it commits.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
)

type draftRecord struct {
	lock chan struct{}

	mu           sync.RWMutex
	draft        models.Draft
	participants []uuid.UUID
	claims       []models.ClaimRecord
	clock        models.TurnClock
	conflicts    int
}

// Store keeps drafts in memory.
type Store struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]*draftRecord
}

var _ engine.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{drafts: make(map[uuid.UUID]*draftRecord)}
}

func (s *Store) CreateDraft(_ context.Context, draft models.Draft, participants []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.drafts[draft.ID]; exists {
		return fmt.Errorf("draft %s already exists", draft.ID)
	}
	s.drafts[draft.ID] = &draftRecord{
		lock:         make(chan struct{}, 1),
		draft:        draft,
		participants: slices.Clone(participants),
		clock:        models.TurnClock{DraftID: draft.ID},
	}
	return nil
}

// InjectConflicts makes the next n transactions on the draft fail with engine.ErrConflict.
func (s *Store) InjectConflicts(draftID uuid.UUID, n int) {
	rec, err := s.get(draftID)
	if err != nil {
		return
	}
	rec.mu.Lock()
	rec.conflicts = n
	rec.mu.Unlock()
}

func (s *Store) InTx(ctx context.Context, draftID uuid.UUID, fn func(tx engine.Tx) error) error {
	rec, err := s.get(draftID)
	if err != nil {
		return err
	}

	select {
	case rec.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-rec.lock }()

	rec.mu.Lock()
	if rec.conflicts > 0 {
		rec.conflicts--
		rec.mu.Unlock()
		return engine.ErrConflict
	}
	rec.mu.Unlock()

	tx := &tx{state: rec.snapshot()}
	if err := fn(tx); err != nil {
		return err
	}
	rec.apply(tx)
	return nil
}

func (s *Store) Load(_ context.Context, draftID uuid.UUID) (*engine.DraftState, error) {
	rec, err := s.get(draftID)
	if err != nil {
		return nil, err
	}
	st := rec.snapshot()
	return &st, nil
}

func (s *Store) ListRunning(_ context.Context) ([]models.TurnToken, error) {
	s.mu.RLock()
	recs := make([]*draftRecord, 0, len(s.drafts))
	for _, rec := range s.drafts {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	var tokens []models.TurnToken
	for _, rec := range recs {
		rec.mu.RLock()
		if rec.draft.Status == models.DraftStatusInProgress {
			if token, ok := rec.clock.Token(); ok {
				tokens = append(tokens, token)
			}
		}
		rec.mu.RUnlock()
	}
	return tokens, nil
}

func (s *Store) get(draftID uuid.UUID) (*draftRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrDraftNotFound, draftID)
	}
	return rec, nil
}

func (r *draftRecord) snapshot() engine.DraftState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var claims []models.ClaimRecord
	for _, c := range r.claims {
		if c.Phase == r.draft.Phase {
			claims = append(claims, c)
		}
	}
	return engine.DraftState{
		Draft:        r.draft,
		Participants: slices.Clone(r.participants),
		Claims:       claims,
		Clock:        cloneClock(r.clock),
	}
}

func (r *draftRecord) apply(t *tx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, phase := range t.deletedPhases {
		r.claims = slices.DeleteFunc(r.claims, func(c models.ClaimRecord) bool { return c.Phase == phase })
	}
	r.claims = append(r.claims, t.inserted...)
	if t.draft != nil {
		r.draft = *t.draft
	}
	if t.participants != nil {
		r.participants = t.participants
	}
	if t.clock != nil {
		r.clock = *t.clock
	}
}

type tx struct {
	state engine.DraftState

	inserted      []models.ClaimRecord
	deletedPhases []models.DraftPhase
	draft         *models.Draft
	participants  []uuid.UUID
	clock         *models.TurnClock
}

func (t *tx) State() engine.DraftState {
	st := t.state
	st.Participants = slices.Clone(t.state.Participants)
	st.Claims = slices.Clone(t.state.Claims)
	st.Clock = cloneClock(t.state.Clock)
	return st
}

func (t *tx) InsertClaim(_ context.Context, claim models.ClaimRecord) error {
	for _, c := range t.inserted {
		if c.Phase == claim.Phase && c.Unit == claim.Unit {
			return fmt.Errorf("unit %d: %w", claim.Unit, engine.ErrAlreadyClaimed)
		}
	}
	t.inserted = append(t.inserted, claim)
	return nil
}

func (t *tx) DeleteClaims(_ context.Context, phase models.DraftPhase) (int, error) {
	n := 0
	if t.state.Draft.Phase == phase {
		n = len(t.state.Claims)
	}
	t.inserted = slices.DeleteFunc(t.inserted, func(c models.ClaimRecord) bool { return c.Phase == phase })
	t.deletedPhases = append(t.deletedPhases, phase)
	return n, nil
}

func (t *tx) SaveClock(_ context.Context, clock models.TurnClock) error {
	c := cloneClock(clock)
	t.clock = &c
	return nil
}

func (t *tx) SaveDraft(_ context.Context, draft models.Draft) error {
	t.draft = &draft
	return nil
}

func (t *tx) SaveParticipants(_ context.Context, participants []uuid.UUID) error {
	t.participants = slices.Clone(participants)
	return nil
}

func cloneClock(c models.TurnClock) models.TurnClock {
	out := c
	out.Skipped = slices.Clone(c.Skipped)
	if c.CurrentRoster != nil {
		r := *c.CurrentRoster
		out.CurrentRoster = &r
	}
	if c.StartedAt != nil {
		t := *c.StartedAt
		out.StartedAt = &t
	}
	if c.Deadline != nil {
		d := *c.Deadline
		out.Deadline = &d
	}
	return out
}
