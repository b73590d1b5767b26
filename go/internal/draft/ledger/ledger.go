// Package ledger tracks which resource units of a draft phase have been claimed.
package ledger

import (
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/models"
)

var (
	ErrAlreadyClaimed       = errors.New("already selected")
	ErrDuplicateParticipant = errors.New("roster already holds a position")
	ErrUnitOutOfRange       = errors.New("unit out of range")
)

// Ledger is the claim state of one draft phase. Units are 1..total.
// It is not safe for concurrent use; callers hold the draft lock.
type Ledger struct {
	phase    models.DraftPhase
	total    int
	byUnit   map[int]models.ClaimRecord
	byRoster map[uuid.UUID]int
	history  []models.ClaimRecord
}

// New rebuilds a ledger from persisted claims, in the order they were committed.
func New(phase models.DraftPhase, total int, claims []models.ClaimRecord) (*Ledger, error) {
	l := &Ledger{
		phase:    phase,
		total:    total,
		byUnit:   make(map[int]models.ClaimRecord, total),
		byRoster: make(map[uuid.UUID]int, total),
		history:  make([]models.ClaimRecord, 0, total),
	}
	for _, c := range claims {
		if err := l.RecordClaim(c); err != nil {
			return nil, fmt.Errorf("replay claim for unit %d: %w", c.Unit, err)
		}
	}
	return l, nil
}

// RecordClaim appends a claim. A unit can be claimed once; in the derby a roster can claim once.
func (l *Ledger) RecordClaim(c models.ClaimRecord) error {
	if c.Unit < 1 || c.Unit > l.total {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrUnitOutOfRange, c.Unit, l.total)
	}
	if _, taken := l.byUnit[c.Unit]; taken {
		return ErrAlreadyClaimed
	}
	if l.phase == models.PhaseDerby {
		if _, holds := l.byRoster[c.RosterID]; holds {
			return ErrDuplicateParticipant
		}
	}

	l.byUnit[c.Unit] = c
	l.byRoster[c.RosterID]++
	l.history = append(l.history, c)
	return nil
}

// RemainingUnits yields unclaimed units in ascending order.
func (l *Ledger) RemainingUnits() iter.Seq[int] {
	return func(yield func(int) bool) {
		for u := 1; u <= l.total; u++ {
			if _, taken := l.byUnit[u]; taken {
				continue
			}
			if !yield(u) {
				return
			}
		}
	}
}

// Remaining collects RemainingUnits into a slice.
func (l *Ledger) Remaining() []int {
	out := make([]int, 0, l.RemainingCount())
	for u := range l.RemainingUnits() {
		out = append(out, u)
	}
	return out
}

func (l *Ledger) RemainingCount() int {
	return l.total - len(l.byUnit)
}

func (l *Ledger) IsClaimed(unit int) bool {
	_, ok := l.byUnit[unit]
	return ok
}

// HasClaimed reports whether the roster holds at least one unit in this phase.
func (l *Ledger) HasClaimed(roster uuid.UUID) bool {
	return l.byRoster[roster] > 0
}

// IsComplete is true once every unit has a claim.
func (l *Ledger) IsComplete() bool {
	return l.RemainingCount() == 0
}

func (l *Ledger) Total() int {
	return l.total
}

// History returns the claims in commit order.
func (l *Ledger) History() []models.ClaimRecord {
	out := make([]models.ClaimRecord, len(l.history))
	copy(out, l.history)
	return out
}

// Claim returns the record for a unit, if any.
func (l *Ledger) Claim(unit int) (models.ClaimRecord, bool) {
	c, ok := l.byUnit[unit]
	return c, ok
}
