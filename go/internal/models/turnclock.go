package models

import (
	"time"

	"github.com/google/uuid"
)

// SkipEntry records a roster whose turn lapsed under the skip policy.
// Unit is the pick number the roster still owns in the pick phase, zero in the derby.
type SkipEntry struct {
	RosterID uuid.UUID `json:"roster_id"`
	Unit     int       `json:"unit,omitempty"`
}

// TurnClock is whose turn it is and when that turn expires.
type TurnClock struct {
	DraftID       uuid.UUID   `json:"draft_id"`
	TurnIndex     int         `json:"turn_index"`
	Generation    int64       `json:"generation"`
	BaseCursor    int         `json:"base_cursor"`
	CurrentRoster *uuid.UUID  `json:"current_roster,omitempty"`
	CurrentUnit   int         `json:"current_unit,omitempty"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	Deadline      *time.Time  `json:"deadline,omitempty"`
	Skipped       []SkipEntry `json:"skipped,omitempty"`
}

// DeadlinePrecision is the resolution deadlines are stored and compared at.
const DeadlinePrecision = time.Microsecond

// TurnToken identifies one armed turn. A timeout carrying a token that no longer matches the
// clock is stale. Generation grows with every turn the clock starts, across resets.
type TurnToken struct {
	DraftID    uuid.UUID `json:"draft_id"`
	TurnIndex  int       `json:"turn_index"`
	Generation int64     `json:"generation"`
	Deadline   time.Time `json:"deadline"`
}

// Token returns the token for the clock's current turn; ok is false when no turn is running.
func (c TurnClock) Token() (TurnToken, bool) {
	if c.CurrentRoster == nil || c.Deadline == nil {
		return TurnToken{}, false
	}
	return TurnToken{DraftID: c.DraftID, TurnIndex: c.TurnIndex, Generation: c.Generation, Deadline: *c.Deadline}, true
}

// Matches reports whether the token still describes the clock's current turn.
func (t TurnToken) Matches(c TurnClock) bool {
	cur, ok := c.Token()
	if !ok {
		return false
	}
	return cur.TurnIndex == t.TurnIndex &&
		cur.Generation == t.Generation &&
		cur.Deadline.Truncate(DeadlinePrecision).Equal(t.Deadline.Truncate(DeadlinePrecision))
}

// Supersedes reports whether t belongs to a later turn of the same draft than other.
func (t TurnToken) Supersedes(other TurnToken) bool {
	return t.DraftID == other.DraftID && t.Generation > other.Generation
}
