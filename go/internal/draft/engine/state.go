package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/models"
)

// PublicState is what callers see of a draft.
type PublicState struct {
	DraftID        uuid.UUID            `json:"draft_id"`
	Phase          models.DraftPhase    `json:"phase"`
	Status         models.DraftStatus   `json:"status"`
	TurnIndex      int                  `json:"turn_index"`
	CurrentRoster  *uuid.UUID           `json:"current_roster,omitempty"`
	CurrentUnit    int                  `json:"current_unit,omitempty"`
	Deadline       *time.Time           `json:"deadline,omitempty"`
	Participants   []uuid.UUID          `json:"participants"`
	Skipped        []models.SkipEntry   `json:"skipped,omitempty"`
	TotalUnits     int                  `json:"total_units"`
	RemainingUnits []int                `json:"remaining_units"`
	ClaimHistory   []models.ClaimRecord `json:"claim_history"`
}

// ClaimResult is the committed claim plus the state after it.
type ClaimResult struct {
	Claim models.ClaimRecord `json:"claim"`
	State PublicState        `json:"state"`
}

// RecoverResult describes what a timeout recovery did. Stale recoveries change nothing.
type RecoverResult struct {
	Stale   bool                `json:"stale"`
	Current *models.TurnToken   `json:"current,omitempty"` // running turn, set when Stale
	Skipped *models.SkipEntry   `json:"skipped,omitempty"`
	Claim   *models.ClaimRecord `json:"claim,omitempty"`
	State   *PublicState        `json:"state,omitempty"`
}
