package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/draftturns/go/internal/draft/events"
)

// DraftEvent is the frame written to WebSocket clients.
type DraftEvent struct {
	ID        string          `json:"id"`
	DraftID   string          `json:"draft_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type EventType string

const (
	EventTypePhaseStarted   EventType = events.TypePhaseStarted
	EventTypeTurnStarted    EventType = events.TypeTurnStarted
	EventTypeClaimCommitted EventType = events.TypeClaimCommitted
	EventTypeTurnSkipped    EventType = events.TypeTurnSkipped
	EventTypePhaseCompleted EventType = events.TypePhaseCompleted
	EventTypeDraftReset     EventType = events.TypeDraftReset
	EventTypePickOrderSet   EventType = events.TypePickOrderSet
	// EventTypeStateSync carries the full public state, sent when a client connects.
	EventTypeStateSync EventType = "StateSync"
)

var knownTypes = map[string]EventType{
	events.TypePhaseStarted:   EventTypePhaseStarted,
	events.TypeTurnStarted:    EventTypeTurnStarted,
	events.TypeClaimCommitted: EventTypeClaimCommitted,
	events.TypeTurnSkipped:    EventTypeTurnSkipped,
	events.TypePhaseCompleted: EventTypePhaseCompleted,
	events.TypeDraftReset:     EventTypeDraftReset,
	events.TypePickOrderSet:   EventTypePickOrderSet,
}

// toDraftEvent converts a bus envelope into a client frame.
func toDraftEvent(ev events.Event) (*DraftEvent, error) {
	typ, ok := knownTypes[ev.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", ev.Type)
	}
	return &DraftEvent{
		ID:        ev.ID.String(),
		DraftID:   ev.DraftID.String(),
		Type:      typ,
		Timestamp: ev.OccurredAt,
		Data:      ev.Payload,
	}, nil
}
