package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const recentEventsPerDraft = 256

type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "DRAFT_EVENTS",
		ConsumerName:  "draft-gateway",
		SubjectFilter: "draft.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Broadcaster receives decoded events.
type Broadcaster interface {
	BroadcastToDraft(draftID uuid.UUID, event *DraftEvent)
}

// EventConsumer reads draft events from JetStream and broadcasts them. The relay delivers at
// least once, so events already broadcast are dropped by ID.
type EventConsumer struct {
	broadcaster Broadcaster
	nc          *nats.Conn
	js          jetstream.JetStream
	consumer    jetstream.Consumer
	config      JetStreamConsumerConfig
	recent      *recentEvents
}

func NewEventConsumer(ctx context.Context, b Broadcaster, config JetStreamConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.Name("draftturns-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := newEventConsumer(b, config)
	ec.nc = nc
	ec.js = js
	if err := ec.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func newEventConsumer(b Broadcaster, config JetStreamConsumerConfig) *EventConsumer {
	return &EventConsumer{broadcaster: b, config: config, recent: newRecentEvents(recentEventsPerDraft)}
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Draft turn gateway WebSocket consumer",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("JetStream consumer ready")

	ec.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			ec.ack(msg, ec.handle(msg.Data()))
		}
	}
}

func (ec *EventConsumer) ack(msg jetstream.Msg, err error) {
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
		return
	}
	// Malformed or unknown events never become valid; terminate instead of redelivering.
	log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping undeliverable message")
	if termErr := msg.Term(); termErr != nil {
		log.Error().Err(termErr).Msg("failed to TERM message")
	}
}

// handle decodes one envelope and broadcasts it unless it was seen already.
func (ec *EventConsumer) handle(data []byte) error {
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if ev.DraftID == uuid.Nil || ev.ID == uuid.Nil {
		return errors.New("event envelope missing ids")
	}

	wsEvent, err := toDraftEvent(ev)
	if err != nil {
		return err
	}
	if !ec.recent.add(ev.DraftID, ev.ID) {
		log.Debug().Str("event_id", ev.ID.String()).Msg("duplicate event dropped")
		return nil
	}

	ec.broadcaster.BroadcastToDraft(ev.DraftID, wsEvent)
	log.Debug().
		Str("event_id", ev.ID.String()).
		Str("draft_id", ev.DraftID.String()).
		Str("event_type", ev.Type).
		Msg("event broadcasted to WebSocket clients")
	return nil
}

func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}

// Connected reports whether the NATS connection is up.
func (ec *EventConsumer) Connected() bool {
	return ec.nc != nil && ec.nc.IsConnected()
}

// recentEvents remembers the last n event IDs per draft.
type recentEvents struct {
	mu     sync.Mutex
	n      int
	drafts map[uuid.UUID]*idRing
}

type idRing struct {
	ids  []uuid.UUID
	set  map[uuid.UUID]bool
	next int
}

func newRecentEvents(n int) *recentEvents {
	return &recentEvents{n: n, drafts: make(map[uuid.UUID]*idRing)}
}

// add records id and reports whether it was new.
func (r *recentEvents) add(draftID, id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ring, ok := r.drafts[draftID]
	if !ok {
		ring = &idRing{ids: make([]uuid.UUID, 0, r.n), set: make(map[uuid.UUID]bool, r.n)}
		r.drafts[draftID] = ring
	}
	if ring.set[id] {
		return false
	}
	if len(ring.ids) < r.n {
		ring.ids = append(ring.ids, id)
	} else {
		delete(ring.set, ring.ids[ring.next])
		ring.ids[ring.next] = id
		ring.next = (ring.next + 1) % r.n
	}
	ring.set[id] = true
	return true
}
