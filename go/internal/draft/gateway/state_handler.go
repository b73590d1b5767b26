package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

// StateReader provides a draft's public state.
type StateReader interface {
	GetPublicState(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error)
}

// DraftStateResponse is the public state plus the seconds left on the current turn.
type DraftStateResponse struct {
	engine.PublicState
	TimeRemainingSec *int `json:"time_remaining_sec,omitempty"`
}

type StateHandler struct {
	states StateReader
	clock  clockwork.Clock
}

func NewStateHandler(states StateReader, clock clockwork.Clock) *StateHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StateHandler{states: states, clock: clock}
}

// Snapshot loads the state and stamps the remaining turn time.
func (h *StateHandler) Snapshot(ctx context.Context, draftID uuid.UUID) (*DraftStateResponse, error) {
	st, err := h.states.GetPublicState(ctx, draftID)
	if err != nil {
		return nil, err
	}
	resp := &DraftStateResponse{PublicState: *st}
	if st.Deadline != nil {
		remaining := int(st.Deadline.Sub(h.clock.Now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		resp.TimeRemainingSec = &remaining
	}
	return resp, nil
}

// HandleGetDraftState serves GET /api/drafts/{id}/state.
func (h *StateHandler) HandleGetDraftState(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid draft ID format", http.StatusBadRequest)
		return
	}

	state, err := h.Snapshot(r.Context(), draftID)
	if err != nil {
		if isNotFound(err) {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to get draft state")
		http.Error(w, "failed to get draft state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode draft state response")
	}
}

func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/drafts/{id}/state", h.HandleGetDraftState)
}

// isNotFound covers both an in-process engine and a remote service client.
func isNotFound(err error) bool {
	return errors.Is(err, engine.ErrDraftNotFound) || connect.CodeOf(err) == connect.CodeNotFound
}
