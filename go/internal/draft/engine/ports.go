package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/mcdev12/draftturns/go/internal/models"
)

// DraftState is everything the engine reads about one draft. Claims only cover the draft's
// current phase, in commit order.
type DraftState struct {
	Draft        models.Draft
	Participants []uuid.UUID
	Claims       []models.ClaimRecord
	Clock        models.TurnClock
}

// Store persists drafts and serializes work per draft.
type Store interface {
	CreateDraft(ctx context.Context, draft models.Draft, participants []uuid.UUID) error
	// InTx locks the draft's turn clock, hands fn the locked state and commits fn's writes
	// when it returns nil. Nothing is written when fn fails. Lock contention surfaces as
	// ErrConflict; an unknown draft as ErrDraftNotFound.
	InTx(ctx context.Context, draftID uuid.UUID, fn func(tx Tx) error) error
	// Load reads a consistent snapshot without taking the lock.
	Load(ctx context.Context, draftID uuid.UUID) (*DraftState, error)
	// ListRunning returns the current turn of every in-progress draft with a deadline.
	ListRunning(ctx context.Context) ([]models.TurnToken, error)
}

// Tx is the write side of a locked draft.
type Tx interface {
	State() DraftState
	InsertClaim(ctx context.Context, claim models.ClaimRecord) error
	DeleteClaims(ctx context.Context, phase models.DraftPhase) (int, error)
	SaveClock(ctx context.Context, clock models.TurnClock) error
	SaveDraft(ctx context.Context, draft models.Draft) error
	SaveParticipants(ctx context.Context, participants []uuid.UUID) error
}

// Scheduler arms the timeout for a turn. Arm replaces any timer held for the same draft unless
// that timer is for a later turn.
type Scheduler interface {
	Arm(token models.TurnToken)
	Cancel(draftID uuid.UUID)
}

// Notifier receives events after they commit. Failures are logged, never rolled back.
type Notifier interface {
	Notify(ctx context.Context, evs ...events.Event) error
}

// Selector chooses what an automatically assigned pick selects. It is consulted before the
// draft lock is taken.
type Selector interface {
	Select(ctx context.Context, draftID, rosterID uuid.UUID) (*uuid.UUID, error)
}
