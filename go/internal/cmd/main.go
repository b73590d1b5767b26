package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := setupDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up database")
	}
	defer db.Close()

	services := setupServices(ctx, cfg, db)
	defer services.Close()

	// Timers for turns that were running when the last process stopped.
	if _, err := services.Supervisor.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore turn timers")
	}

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		if err := services.Supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("timeout supervisor stopped")
		}
	}()

	server, err := setupServer(cfg.Port, services, db.Pool)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up server")
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("draft turn server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	<-supDone
	log.Info().Msg("graceful shutdown complete")
}
