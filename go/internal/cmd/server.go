package main

import (
	"fmt"
	"net/http"

	"connectrpc.com/grpcreflect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/draftturns/go/internal/draft/service"
)

func setupServer(port int, services *Services, pool *pgxpool.Pool) (*http.Server, error) {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	mux.Handle(service.NewHandler(services.Draft))
	if err := setupReflection(mux); err != nil {
		return nil, err
	}
	setupHealthCheck(mux, pool)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}, nil
}

func setupReflection(mux *http.ServeMux) error {
	reflector, err := service.NewReflector()
	if err != nil {
		return fmt.Errorf("failed to set up reflection: %w", err)
	}
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))
	return nil
}

func setupHealthCheck(mux *http.ServeMux, pool *pgxpool.Pool) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("health check: database unreachable")
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
