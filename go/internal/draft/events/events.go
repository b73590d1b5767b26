// Package events defines the notifications emitted after every committed turn change.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypePhaseStarted   = "PhaseStarted"
	TypeTurnStarted    = "TurnStarted"
	TypeClaimCommitted = "ClaimCommitted"
	TypeTurnSkipped    = "TurnSkipped"
	TypePhaseCompleted = "PhaseCompleted"
	TypeDraftReset     = "DraftReset"
	TypePickOrderSet   = "PickOrderSet"
)

// Event is the envelope written to the outbox and published on the bus.
type Event struct {
	ID         uuid.UUID       `json:"eventId"`
	Type       string          `json:"eventType"`
	DraftID    uuid.UUID       `json:"draftId"`
	OccurredAt time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// New marshals payload into a fresh event.
func New(draftID uuid.UUID, eventType string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		DraftID:    draftID,
		OccurredAt: at,
		Payload:    data,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}
