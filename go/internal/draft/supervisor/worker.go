package supervisor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/rs/zerolog/log"
)

// worker processes fired turn timers from the work channel
func (s *Supervisor) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	log.Debug().
		Str("instance", s.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("instance", s.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case token := <-s.workCh:
			if !s.claimInFlight(token) {
				log.Debug().Str("draft_id", token.DraftID.String()).Msg("skipping timeout already in flight")
				continue
			}
			s.handleTimeout(ctx, workerID, token)
			s.releaseInFlight(token)
		}
	}
}

func (s *Supervisor) handleTimeout(ctx context.Context, workerID int, token models.TurnToken) {
	log.Info().
		Str("draft_id", token.DraftID.String()).
		Int("turn_index", token.TurnIndex).
		Int("worker_id", workerID).
		Msg("turn deadline elapsed")

	res, err := s.recoverer.Recover(ctx, token)
	if err != nil {
		if engine.IsClientError(err) || ctx.Err() != nil {
			log.Warn().
				Err(err).
				Str("draft_id", token.DraftID.String()).
				Msg("timeout recovery rejected")
			return
		}
		log.Error().
			Err(err).
			Str("draft_id", token.DraftID.String()).
			Int("worker_id", workerID).
			Dur("retry_in", s.retryDelay).
			Msg("timeout recovery failed, retrying")
		s.retryLater(token)
		return
	}
	if res.Stale {
		log.Debug().Str("draft_id", token.DraftID.String()).Msg("timeout was stale")
		s.armCurrent(res.Current)
	}
}

// armCurrent arms the draft's running turn after a stale timeout when no timer is held for it,
// which happens when the engine's re-arms arrived out of order.
func (s *Supervisor) armCurrent(current *models.TurnToken) {
	if current == nil {
		return
	}
	if _, armed := s.Armed(current.DraftID); armed {
		return
	}
	log.Info().
		Str("draft_id", current.DraftID.String()).
		Int("turn_index", current.TurnIndex).
		Msg("re-arming running turn after stale timeout")
	s.Arm(*current)
}

// retryLater re-arms a failed recovery unless the engine armed a newer turn meanwhile.
func (s *Supervisor) retryLater(token models.TurnToken) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	if _, armed := s.activeTimers[token.DraftID]; armed {
		return
	}
	entry := &armedTimer{token: token, stop: make(chan struct{}), timer: s.clock.NewTimer(s.retryDelay)}
	s.activeTimers[token.DraftID] = entry
	go s.await(entry)
}

type turnKey struct {
	draftID   uuid.UUID
	turnIndex int
}

func (s *Supervisor) claimInFlight(token models.TurnToken) bool {
	key := turnKey{token.DraftID, token.TurnIndex}
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[key] {
		return false
	}
	s.inFlight[key] = true
	return true
}

func (s *Supervisor) releaseInFlight(token models.TurnToken) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, turnKey{token.DraftID, token.TurnIndex})
}
