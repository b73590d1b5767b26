package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftturns/go/internal/cache"
	"github.com/mcdev12/draftturns/go/internal/config"
	"github.com/mcdev12/draftturns/go/internal/draft/gateway"
	"github.com/mcdev12/draftturns/go/internal/draft/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("nats_url", cfg.NATS.URL).
		Str("engine_url", cfg.Gateway.EngineURL).
		Int("port", cfg.Gateway.Port).
		Msg("starting draft gateway")

	// State reads go through the shared Redis cache the engine invalidates.
	var states gateway.StateReader = service.NewClient(http.DefaultClient, cfg.Gateway.EngineURL)
	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, reading state from the engine directly")
	} else {
		defer rdb.Close()
		states = cache.NewStateCache(rdb, states, cfg.Redis.TTL)
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.URL = cfg.NATS.URL
	gatewayConfig.JetStreamConfig.StreamName = cfg.NATS.Stream
	gatewayConfig.JetStreamConfig.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"
	gatewayConfig.JetStreamConfig.ConsumerName = cfg.Gateway.ConsumerName

	gatewayService, err := gateway.NewService(ctx, gatewayConfig, states)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:     c.Handler(mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	<-done
	log.Info().Msg("draft gateway shutdown complete")
}
