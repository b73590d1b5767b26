package main

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftturns/go/internal/cache"
	"github.com/mcdev12/draftturns/go/internal/config"
	"github.com/mcdev12/draftturns/go/internal/draft/autopick"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/mcdev12/draftturns/go/internal/draft/outbox"
	"github.com/mcdev12/draftturns/go/internal/draft/service"
	"github.com/mcdev12/draftturns/go/internal/draft/store/postgres"
	"github.com/mcdev12/draftturns/go/internal/draft/supervisor"
)

type Services struct {
	Engine     *engine.Engine
	Supervisor *supervisor.Supervisor
	Draft      *service.Service
	closers    []func()
}

func setupServices(ctx context.Context, cfg config.Config, db *Database) *Services {
	// Wire up dependency injection chain
	// Store → Engine → Supervisor, with committed events going to the outbox and the cache.
	store := postgres.New(db.Pool, cfg.Engine.LockTimeout)

	eng := engine.New(store,
		engine.WithClock(clockwork.NewRealClock()),
		engine.WithRetry(cfg.Engine.ConflictRetries, cfg.Engine.ConflictBackoff),
		engine.WithSelector(autopick.NewRandomSelector(store, nil)),
	)

	sinks := events.Fanout{outbox.NewNotifier(outbox.NewRepository(db.SQL))}
	var states service.StateReader = eng
	svcs := &Services{Engine: eng}

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, serving state without cache")
	} else {
		stateCache := cache.NewStateCache(rdb, eng, cfg.Redis.TTL)
		sinks = append(sinks, stateCache)
		states = stateCache
		svcs.closers = append(svcs.closers, func() { _ = rdb.Close() })
	}
	eng.SetNotifier(sinks)

	sup := supervisor.New(eng,
		supervisor.WithWorkers(cfg.Supervisor.Workers, cfg.Supervisor.QueueSize),
		supervisor.WithRetryDelay(cfg.Supervisor.RetryDelay),
	)
	eng.SetScheduler(sup)
	svcs.Supervisor = sup

	svcs.Draft = service.NewService(eng, states, service.WithSelectionPools(store))
	return svcs
}

func (s *Services) Close() {
	for _, c := range s.closers {
		c()
	}
}
