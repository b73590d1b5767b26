package models

import (
	"time"

	"github.com/google/uuid"
)

// ClaimRecord is an immutable record of a resource unit claimed by a roster.
type ClaimRecord struct {
	ID        uuid.UUID  `json:"id"`
	DraftID   uuid.UUID  `json:"draft_id"`
	Phase     DraftPhase `json:"phase"`
	Unit      int        `json:"unit"` // position in the derby, overall pick number in the pick phase
	RosterID  uuid.UUID  `json:"roster_id"`
	TurnIndex int        `json:"turn_index"`
	Automatic bool       `json:"automatic"`
	Selection *uuid.UUID `json:"selection,omitempty"` // player chosen with a pick, nil in the derby
	ClaimedAt time.Time  `json:"claimed_at"`
}

// Round returns the 1-indexed round of a pick-phase unit.
func (c ClaimRecord) Round(participantCount int) int {
	if participantCount <= 0 {
		return 0
	}
	return (c.Unit-1)/participantCount + 1
}

// PickInRound returns the 1-indexed pick number inside the round.
func (c ClaimRecord) PickInRound(participantCount int) int {
	if participantCount <= 0 {
		return 0
	}
	return (c.Unit-1)%participantCount + 1
}
