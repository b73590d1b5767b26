// Package autopick chooses the selection attached to an automatic pick-phase claim.
package autopick

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

// Pool lists what is still available to pick in a draft.
type Pool interface {
	AvailableSelections(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error)
}

// RandomSelector picks uniformly from the pool.
type RandomSelector struct {
	pool Pool
	mu   sync.Mutex
	rng  *rand.Rand
}

var _ engine.Selector = (*RandomSelector)(nil)

// NewRandomSelector seeds its own source when rng is nil.
func NewRandomSelector(pool Pool, rng *rand.Rand) *RandomSelector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomSelector{pool: pool, rng: rng}
}

// Select returns nil when nothing is left, so the claim goes through without a selection.
func (s *RandomSelector) Select(ctx context.Context, draftID, rosterID uuid.UUID) (*uuid.UUID, error) {
	available, err := s.pool.AvailableSelections(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("list available selections: %w", err)
	}
	if len(available) == 0 {
		log.Warn().Str("draft_id", draftID.String()).Msg("auto-pick found no available selections")
		return nil, nil
	}

	s.mu.Lock()
	choice := available[s.rng.Intn(len(available))]
	s.mu.Unlock()

	log.Info().
		Str("draft_id", draftID.String()).
		Str("roster_id", rosterID.String()).
		Str("selection", choice.String()).
		Msg("auto-pick chose selection")
	return &choice, nil
}
