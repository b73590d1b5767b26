package autopick

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// StaticPool keeps pools in memory. Taken selections are removed with Take.
type StaticPool struct {
	mu    sync.Mutex
	pools map[uuid.UUID][]uuid.UUID
}

func NewStaticPool() *StaticPool {
	return &StaticPool{pools: make(map[uuid.UUID][]uuid.UUID)}
}

func (p *StaticPool) SetSelectionPool(_ context.Context, draftID uuid.UUID, selections []uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pools[draftID] = slices.Clone(selections)
	return nil
}

func (p *StaticPool) AvailableSelections(_ context.Context, draftID uuid.UUID) ([]uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.pools[draftID]), nil
}

func (p *StaticPool) Take(draftID, selection uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pools[draftID] = slices.DeleteFunc(p.pools[draftID], func(id uuid.UUID) bool { return id == selection })
}
