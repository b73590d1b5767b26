package turnclock

import (
	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/order"
	"github.com/mcdev12/draftturns/go/internal/models"
)

// Candidate is a roster that may take the next turn.
type Candidate struct {
	Roster      uuid.UUID
	Unit        int  // unit the turn is for in the pick phase, zero in the derby
	FromSkipped bool // re-entering through the skipped set
	Cursor      int  // base rotation cursor once this candidate is taken
}

// DerbyCandidates merges the skipped set and the base rotation into one ordered list:
// skipped rosters first in the order they were skipped, then the base rotation starting at
// cursor. Rosters that already claimed are dropped.
func DerbyCandidates(participants []uuid.UUID, cursor int, skipped []models.SkipEntry, claimed func(uuid.UUID) bool) []Candidate {
	n := len(participants)
	out := make([]Candidate, 0, n)
	listed := make(map[uuid.UUID]bool, n)

	for _, s := range skipped {
		if claimed(s.RosterID) || listed[s.RosterID] {
			continue
		}
		listed[s.RosterID] = true
		out = append(out, Candidate{Roster: s.RosterID, FromSkipped: true, Cursor: cursor})
	}

	for i := 0; i < n; i++ {
		r := order.ExpectedRoster(participants, models.OrderingLinear, cursor+i)
		if claimed(r) || listed[r] {
			continue
		}
		listed[r] = true
		out = append(out, Candidate{Roster: r, Cursor: (cursor + i + 1) % n})
	}
	return out
}

// PickCandidates orders the remaining pick-phase units. Units still owed to skipped rosters are
// placed according to placement; every other unit follows in ascending order.
func PickCandidates(participants []uuid.UUID, mode models.OrderingMode, remaining []int, skipped []models.SkipEntry, placement models.SkipPlacement) []Candidate {
	n := len(participants)
	open := make(map[int]bool, len(remaining))
	for _, u := range remaining {
		open[u] = true
	}

	var deferred []Candidate
	deferredUnits := make(map[int]bool)
	for _, s := range skipped {
		if !open[s.Unit] || deferredUnits[s.Unit] {
			continue
		}
		deferredUnits[s.Unit] = true
		deferred = append(deferred, Candidate{Roster: order.UnitOwner(participants, mode, s.Unit), Unit: s.Unit, FromSkipped: true})
	}

	base := make([]Candidate, 0, len(remaining))
	for _, u := range remaining {
		if deferredUnits[u] {
			continue
		}
		base = append(base, Candidate{Roster: order.UnitOwner(participants, mode, u), Unit: u})
	}

	if placement == models.SkipPlacementNextTurn {
		return append(deferred, base...)
	}

	out := make([]Candidate, 0, len(deferred)+len(base))
	pending := deferred
	for _, b := range base {
		round := order.RoundOf(b.Unit, n)
		var later []Candidate
		for _, d := range pending {
			if order.RoundOf(d.Unit, n) < round {
				out = append(out, d)
			} else {
				later = append(later, d)
			}
		}
		pending = later
		out = append(out, b)
	}
	return append(out, pending...)
}

// Next returns the candidate that takes the next turn. A roster whose turn just lapsed is not
// handed the very next turn when anyone else can act; it moves back one place instead.
func Next(candidates []Candidate, justSkipped *models.SkipEntry) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	first := candidates[0]
	if justSkipped != nil && len(candidates) > 1 &&
		first.Roster == justSkipped.RosterID && first.Unit == justSkipped.Unit {
		return candidates[1], true
	}
	return first, true
}
