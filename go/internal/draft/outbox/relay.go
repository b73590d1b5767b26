package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

// Source is the read side of the outbox the relay drains.
type Source interface {
	FetchByID(ctx context.Context, id uuid.UUID) (*events.Event, error)
	FetchUnsent(ctx context.Context, limit int) ([]events.Event, error)
	MarkSent(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type RelayConfig struct {
	BatchSize  int
	MaxRetries uint64
	RetryDelay time.Duration
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:  100,
		MaxRetries: 5,
		RetryDelay: 200 * time.Millisecond,
	}
}

// Relay moves outbox rows to the publisher and stamps them sent. Delivery is at least
// once; subscribers dedupe on the event ID.
type Relay struct {
	source    Source
	publisher Publisher
	clock     clockwork.Clock
	cfg       RelayConfig

	mu        sync.Mutex
	processed uint64
	lastSent  time.Time
}

func NewRelay(source Source, publisher Publisher, clock clockwork.Clock, cfg RelayConfig) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRelayConfig().BatchSize
	}
	return &Relay{source: source, publisher: publisher, clock: clock, cfg: cfg}
}

// RelayOne publishes the event a notification pointed at. An event already sent by the
// fallback sweep is not an error.
func (r *Relay) RelayOne(ctx context.Context, id uuid.UUID) error {
	ev, err := r.source.FetchByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		log.Debug().Str("event_id", id.String()).Msg("outbox event already sent")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	if err := r.publishWithRetry(ctx, *ev); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return r.markSent(ctx, ev.ID)
}

// RelayUnsent drains one batch of unsent events in insertion order and returns how many
// were published. It stops at the first event that cannot be published so a draft's
// events are never reordered on the bus.
func (r *Relay) RelayUnsent(ctx context.Context) (int, error) {
	unsent, err := r.source.FetchUnsent(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ev := range unsent {
		if err := r.publishWithRetry(ctx, ev); err != nil {
			return sent, fmt.Errorf("failed to publish event %s: %w", ev.ID, err)
		}
		if err := r.markSent(ctx, ev.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Stats returns how many events were relayed and when the last one went out.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.lastSent
}

func (r *Relay) markSent(ctx context.Context, id uuid.UUID) error {
	now := r.clock.Now()
	if err := r.source.MarkSent(ctx, []uuid.UUID{id}, now); err != nil {
		log.Error().Err(err).Str("event_id", id.String()).Msg("failed to mark outbox event as sent")
		return err
	}
	r.mu.Lock()
	r.processed++
	r.lastSent = now
	r.mu.Unlock()
	return nil
}

func (r *Relay) publishWithRetry(ctx context.Context, ev events.Event) error {
	attempt := 0
	backoff := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewExponential(r.cfg.RetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := r.publisher.Publish(ctx, ev); err != nil {
			log.Error().
				Err(err).
				Int("attempt", attempt).
				Str("event_id", ev.ID.String()).
				Msg("failed to publish, retrying")
			return retry.RetryableError(err)
		}
		if attempt > 1 {
			log.Info().
				Int("attempt", attempt).
				Str("event_id", ev.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	})
}
