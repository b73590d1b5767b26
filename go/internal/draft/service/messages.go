package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
)

type CreateDraftRequest struct {
	LeagueID          string   `json:"league_id"`
	Phase             string   `json:"phase,omitempty"`
	OrderingMode      string   `json:"ordering_mode"`
	Rounds            int      `json:"rounds,omitempty"`
	TimePerTurnSec    int      `json:"time_per_turn_sec"`
	TimeoutPolicy     string   `json:"timeout_policy"`
	PickSkipPlacement string   `json:"pick_skip_placement,omitempty"`
	ShuffleOrder      bool     `json:"shuffle_order,omitempty"`
	Participants      []string `json:"participants"`
}

type CreateDraftResponse struct {
	Draft models.Draft `json:"draft"`
}

// DraftRequest addresses a draft by ID.
type DraftRequest struct {
	DraftID string `json:"draft_id"`
}

type StateResponse struct {
	State engine.PublicState `json:"state"`
}

type ClaimRequest struct {
	DraftID     string `json:"draft_id"`
	RosterID    string `json:"roster_id"`
	Unit        int    `json:"unit,omitempty"`
	SelectionID string `json:"selection_id,omitempty"`
}

type ClaimResponse struct {
	Claim models.ClaimRecord `json:"claim"`
	State engine.PublicState `json:"state"`
}

type ForceRecoverResponse struct {
	Skipped *models.SkipEntry   `json:"skipped,omitempty"`
	Claim   *models.ClaimRecord `json:"claim,omitempty"`
	State   *engine.PublicState `json:"state,omitempty"`
}

// SetSelectionPoolRequest replaces the selections automatic picks may choose from.
type SetSelectionPoolRequest struct {
	DraftID    string   `json:"draft_id"`
	Selections []string `json:"selections"`
}

type SetSelectionPoolResponse struct {
	Count int `json:"count"`
}

func (r *SetSelectionPoolRequest) parse() (uuid.UUID, []uuid.UUID, error) {
	draftID, err := parseID("draft_id", r.DraftID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	selections := make([]uuid.UUID, 0, len(r.Selections))
	seen := make(map[uuid.UUID]bool, len(r.Selections))
	for _, s := range r.Selections {
		id, err := parseID("selection", s)
		if err != nil {
			return uuid.Nil, nil, err
		}
		if seen[id] {
			return uuid.Nil, nil, fmt.Errorf("duplicate selection %s", id)
		}
		seen[id] = true
		selections = append(selections, id)
	}
	return draftID, selections, nil
}

func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return id, nil
}

func (r *CreateDraftRequest) toModel() (models.Draft, []uuid.UUID, error) {
	var leagueID uuid.UUID
	if r.LeagueID != "" {
		var err error
		if leagueID, err = parseID("league_id", r.LeagueID); err != nil {
			return models.Draft{}, nil, err
		}
	}

	participants := make([]uuid.UUID, 0, len(r.Participants))
	for _, p := range r.Participants {
		id, err := parseID("participant", p)
		if err != nil {
			return models.Draft{}, nil, err
		}
		participants = append(participants, id)
	}

	return models.Draft{
		LeagueID:          leagueID,
		Phase:             models.DraftPhase(r.Phase),
		OrderingMode:      models.OrderingMode(r.OrderingMode),
		Rounds:            r.Rounds,
		ParticipantCount:  len(participants),
		TimePerTurn:       time.Duration(r.TimePerTurnSec) * time.Second,
		TimeoutPolicy:     models.TimeoutPolicy(r.TimeoutPolicy),
		PickSkipPlacement: models.SkipPlacement(r.PickSkipPlacement),
		ShuffleOrder:      r.ShuffleOrder,
	}, participants, nil
}

func (r *ClaimRequest) toEngine() (engine.ClaimRequest, error) {
	draftID, err := parseID("draft_id", r.DraftID)
	if err != nil {
		return engine.ClaimRequest{}, err
	}
	rosterID, err := parseID("roster_id", r.RosterID)
	if err != nil {
		return engine.ClaimRequest{}, err
	}
	req := engine.ClaimRequest{DraftID: draftID, RosterID: rosterID, Unit: r.Unit}
	if r.SelectionID != "" {
		sel, err := parseID("selection_id", r.SelectionID)
		if err != nil {
			return engine.ClaimRequest{}, err
		}
		req.Selection = &sel
	}
	return req, nil
}
