// Package turnclock holds the operations that move a draft's turn clock.
// The clock is only mutated by the engine while it holds the draft lock.
package turnclock

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/models"
)

// Advance moves the clock to the given turn and bumps its generation. Replaying the same turn
// index, roster, unit and deadline is a no-op and reports false.
func Advance(c *models.TurnClock, turnIndex int, next Candidate, startedAt, deadline time.Time) bool {
	if c.TurnIndex == turnIndex &&
		c.CurrentRoster != nil && *c.CurrentRoster == next.Roster &&
		c.CurrentUnit == next.Unit &&
		c.Deadline != nil && c.Deadline.Equal(deadline) {
		return false
	}

	roster := next.Roster
	c.TurnIndex = turnIndex
	c.BaseCursor = next.Cursor
	c.CurrentRoster = &roster
	c.CurrentUnit = next.Unit
	c.StartedAt = &startedAt
	c.Deadline = &deadline
	c.Generation++
	return true
}

// RecordSkip appends the roster to the skipped set. A roster already waiting keeps its place.
func RecordSkip(c *models.TurnClock, entry models.SkipEntry) {
	for _, s := range c.Skipped {
		if s.RosterID == entry.RosterID && s.Unit == entry.Unit {
			return
		}
	}
	c.Skipped = append(c.Skipped, entry)
}

// ClearSkip drops a roster from the skipped set once it claims. In the pick phase only the entry
// for the claimed unit is dropped.
func ClearSkip(c *models.TurnClock, phase models.DraftPhase, roster uuid.UUID, unit int) {
	kept := make([]models.SkipEntry, 0, len(c.Skipped))
	for _, s := range c.Skipped {
		if s.RosterID == roster && (phase == models.PhaseDerby || s.Unit == unit) {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		c.Skipped = nil
		return
	}
	c.Skipped = kept
}

// Clear empties the clock when the phase completes.
func Clear(c *models.TurnClock) {
	c.CurrentRoster = nil
	c.CurrentUnit = 0
	c.StartedAt = nil
	c.Deadline = nil
	c.Skipped = nil
}

// Reset puts the clock back before the first turn. The generation is kept so tokens armed
// before the reset stay older than those armed after it.
func Reset(c *models.TurnClock) {
	Clear(c)
	c.TurnIndex = 0
	c.BaseCursor = 0
}
