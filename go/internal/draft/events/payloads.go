package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/models"
)

// Event payload types shared between the engine, the outbox relay and the gateway

// PhaseStartedPayload is the payload for a PhaseStarted event
type PhaseStartedPayload struct {
	Phase        models.DraftPhase `json:"phase"`
	Participants []uuid.UUID       `json:"participants"`
	TotalUnits   int               `json:"total_units"`
	StartedAt    time.Time         `json:"started_at"`
}

// TurnStartedPayload is the payload for a TurnStarted event
type TurnStartedPayload struct {
	Phase          models.DraftPhase `json:"phase"`
	TurnIndex      int               `json:"turn_index"`
	RosterID       uuid.UUID         `json:"roster_id"`
	Unit           int               `json:"unit,omitempty"`
	FromSkipped    bool              `json:"from_skipped"`
	StartedAt      time.Time         `json:"started_at"`
	Deadline       time.Time         `json:"deadline"`
	TimePerTurnSec int               `json:"time_per_turn_sec"`
}

// ClaimCommittedPayload is the payload for a ClaimCommitted event
type ClaimCommittedPayload struct {
	ClaimID   uuid.UUID         `json:"claim_id"`
	Phase     models.DraftPhase `json:"phase"`
	TurnIndex int               `json:"turn_index"`
	RosterID  uuid.UUID         `json:"roster_id"`
	Unit      int               `json:"unit"`
	Automatic bool              `json:"automatic"`
	Selection *uuid.UUID        `json:"selection,omitempty"`
	ClaimedAt time.Time         `json:"claimed_at"`
}

// TurnSkippedPayload is the payload for a TurnSkipped event
type TurnSkippedPayload struct {
	Phase     models.DraftPhase `json:"phase"`
	TurnIndex int               `json:"turn_index"`
	RosterID  uuid.UUID         `json:"roster_id"`
	Unit      int               `json:"unit,omitempty"`
	SkippedAt time.Time         `json:"skipped_at"`
	Forced    bool              `json:"forced"`
}

// PhaseCompletedPayload is the payload for a PhaseCompleted event
type PhaseCompletedPayload struct {
	Phase       models.DraftPhase `json:"phase"`
	CompletedAt time.Time         `json:"completed_at"`
	Duration    string            `json:"duration"`
	TotalUnits  int               `json:"total_units"`
}

// DraftResetPayload is the payload for a DraftReset event
type DraftResetPayload struct {
	Phase         models.DraftPhase `json:"phase"`
	ResetAt       time.Time         `json:"reset_at"`
	ClearedClaims int               `json:"cleared_claims"`
}

// PickOrderSetPayload is the payload for a PickOrderSet event, emitted when the derby result
// becomes the pick-phase participant order.
type PickOrderSetPayload struct {
	Participants []uuid.UUID `json:"participants"`
	SetAt        time.Time   `json:"set_at"`
}
