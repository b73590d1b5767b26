package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades draft watch requests.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	states            *StateHandler
}

func NewWebSocketHandler(cm *ConnectionManager, states *StateHandler) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, states: states}
}

// HandleDraftConnection serves /ws/draft?draft_id=...&roster_id=... and greets the client with
// a StateSync frame.
func (h *WebSocketHandler) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(r.URL.Query().Get("draft_id"))
	if err != nil {
		http.Error(w, "invalid draft_id format", http.StatusBadRequest)
		return
	}
	rosterID := r.URL.Query().Get("roster_id")

	state, err := h.states.Snapshot(r.Context(), draftID)
	if err != nil {
		if isNotFound(err) {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to load state for new connection")
		http.Error(w, "failed to load draft state", http.StatusInternalServerError)
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		http.Error(w, "failed to encode draft state", http.StatusInternalServerError)
		return
	}
	greeting := &DraftEvent{
		ID:        uuid.New().String(),
		DraftID:   draftID.String(),
		Type:      EventTypeStateSync,
		Timestamp: h.states.clock.Now(),
		Data:      data,
	}

	// Upgrade writes its own error response.
	if err := h.connectionManager.UpgradeConnection(w, r, rosterID, draftID, greeting); err != nil {
		log.Error().
			Err(err).
			Str("draft_id", draftID.String()).
			Str("roster_id", rosterID).
			Msg("failed to upgrade WebSocket connection")
	}
}

func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/draft", h.HandleDraftConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
