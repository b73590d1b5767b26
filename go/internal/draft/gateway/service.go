// Package gateway pushes draft events from JetStream to WebSocket clients watching a draft.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service ties the consumer, the connection manager and the HTTP handlers together.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	stateHandler      *StateHandler
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

func NewService(ctx context.Context, config Config, states StateReader) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	stateHandler := NewStateHandler(states, clockwork.NewRealClock())

	eventConsumer, err := NewEventConsumer(ctx, connectionManager, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, stateHandler),
		eventConsumer:     eventConsumer,
		stateHandler:      stateHandler,
	}, nil
}

// Start blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting draft gateway service")

	go s.connectionManager.Start(ctx)
	go func() {
		if err := s.eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("draft gateway service shutting down")
	return s.eventConsumer.Stop()
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.eventConsumer.Connected() {
		http.Error(w, "NATS disconnected", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
