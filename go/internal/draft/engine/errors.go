package engine

import (
	"errors"

	"github.com/mcdev12/draftturns/go/internal/draft/ledger"
)

// Client errors. They are returned verbatim and never retried by the engine.
var (
	ErrNotInProgress        = errors.New("draft is not in progress")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrAlreadyClaimed       = ledger.ErrAlreadyClaimed
	ErrDuplicateParticipant = ledger.ErrDuplicateParticipant
	ErrUnitOutOfRange       = ledger.ErrUnitOutOfRange
	ErrInvalidDraft         = errors.New("invalid draft")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrDraftNotFound        = errors.New("draft not found")
)

// ErrConflict is returned by a Store when the draft lock or transaction could not be obtained
// cleanly. The engine retries it.
var ErrConflict = errors.New("concurrent update conflict")

// ErrTransient is returned once conflict retries are exhausted. Callers should retry the same
// request rather than change it.
var ErrTransient = errors.New("temporarily unavailable, retry")

// IsClientError reports whether err is a validation error the caller must correct.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotInProgress) ||
		errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrDuplicateParticipant) ||
		errors.Is(err, ErrUnitOutOfRange) ||
		errors.Is(err, ErrInvalidDraft) ||
		errors.Is(err, ErrInvalidTransition)
}
