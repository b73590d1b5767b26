package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderingMode defines how the rotation moves from round to round.
type OrderingMode string

const (
	OrderingLinear             OrderingMode = "linear"
	OrderingSnake              OrderingMode = "snake"
	OrderingSnakeRoundReversal OrderingMode = "snake_round_reversal"
)

// TimeoutPolicy defines what happens when a turn deadline elapses without a claim.
type TimeoutPolicy string

const (
	TimeoutPolicySkip       TimeoutPolicy = "skip"
	TimeoutPolicyAutoAssign TimeoutPolicy = "auto_assign"
)

// DraftStatus defines the lifecycle status of the current phase.
type DraftStatus string

const (
	DraftStatusNotStarted DraftStatus = "not_started"
	DraftStatusInProgress DraftStatus = "in_progress"
	DraftStatusCompleted  DraftStatus = "completed"
)

// DraftPhase is the kind of resource being claimed.
type DraftPhase string

const (
	// PhaseDerby claims draft positions 1..N, one per roster.
	PhaseDerby DraftPhase = "derby"
	// PhasePicks claims overall pick numbers 1..rounds*N in rotation order.
	PhasePicks DraftPhase = "picks"
)

// SkipPlacement controls where a skipped pick-phase turn re-enters the rotation.
type SkipPlacement string

const (
	SkipPlacementNextTurn   SkipPlacement = "next_turn"
	SkipPlacementEndOfRound SkipPlacement = "end_of_round"
)

// Draft represents one league-season draft.
type Draft struct {
	ID                uuid.UUID     `json:"id"`
	LeagueID          uuid.UUID     `json:"league_id"`
	Phase             DraftPhase    `json:"phase"`
	OrderingMode      OrderingMode  `json:"ordering_mode"`
	Rounds            int           `json:"rounds"`
	ParticipantCount  int           `json:"participant_count"`
	TimePerTurn       time.Duration `json:"time_per_turn"`
	TimeoutPolicy     TimeoutPolicy `json:"timeout_policy"`
	PickSkipPlacement SkipPlacement `json:"pick_skip_placement,omitempty"`
	ShuffleOrder      bool          `json:"shuffle_order,omitempty"`
	Status            DraftStatus   `json:"status"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TotalUnits returns how many resource units exist in the draft's current phase.
func (d Draft) TotalUnits() int {
	if d.Phase == PhasePicks {
		return d.Rounds * d.ParticipantCount
	}
	return d.ParticipantCount
}

// SkipPlacementOrDefault returns the configured placement, defaulting to end of round.
func (d Draft) SkipPlacementOrDefault() SkipPlacement {
	if d.PickSkipPlacement == "" {
		return SkipPlacementEndOfRound
	}
	return d.PickSkipPlacement
}
