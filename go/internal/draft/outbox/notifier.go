// Package outbox persists committed draft events and relays them to NATS JetStream.
package outbox

import (
	"context"

	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// Inserter is the write side of the outbox.
type Inserter interface {
	Insert(ctx context.Context, evs ...events.Event) error
}

// Notifier hands committed engine events to the outbox table.
type Notifier struct {
	repo Inserter
}

func NewNotifier(repo Inserter) *Notifier {
	return &Notifier{repo: repo}
}

func (n *Notifier) Notify(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	if err := n.repo.Insert(ctx, evs...); err != nil {
		return err
	}
	for _, ev := range evs {
		log.Debug().
			Str("draft_id", ev.DraftID.String()).
			Str("event_type", ev.Type).
			Str("event_id", ev.ID.String()).
			Msg("outbox event inserted")
	}
	return nil
}
