package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string
	NotifyChannel    string
	FallbackInterval time.Duration
	PingInterval     time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    "draft_outbox_new",
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
	}
}

// Listener wakes the relay on Postgres NOTIFY and sweeps unsent rows on a ticker to pick
// up anything a dropped connection missed.
type Listener struct {
	relay    *Relay
	listener *pq.Listener
	cfg      ListenerConfig
	active   chan struct{}
}

func NewListener(relay *Relay, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for notifications")
	return &Listener{relay: relay, listener: l, cfg: cfg, active: make(chan struct{})}, nil
}

// Start blocks until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")
	close(l.active)

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// Rows written while the relay was down.
	l.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.listener.Close()
		case note := <-l.listener.Notify:
			if note == nil {
				// reconnected; notifications may have been lost
				l.sweep(ctx)
				continue
			}
			id, err := uuid.Parse(note.Extra)
			if err != nil {
				log.Error().Err(err).Str("extra", note.Extra).Msg("invalid event ID in notification")
				continue
			}
			if err := l.relay.RelayOne(ctx, id); err != nil {
				log.Error().Err(err).Str("event_id", id.String()).Msg("failed to relay notification")
			}
		case <-fallbackTicker.C:
			l.sweep(ctx)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Active reports whether Start has begun.
func (l *Listener) Active() bool {
	select {
	case <-l.active:
		return true
	default:
		return false
	}
}

func (l *Listener) sweep(ctx context.Context) {
	n, err := l.relay.RelayUnsent(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("relayed unsent outbox events")
	}
}
