package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

var errInternal = errors.New("internal error")

// toConnectError maps engine errors to Connect codes. Client errors keep their message;
// infrastructure failures are logged and replaced with a generic one.
func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, engine.ErrNotInProgress),
		errors.Is(err, engine.ErrNotYourTurn),
		errors.Is(err, engine.ErrInvalidTransition):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, engine.ErrDuplicateParticipant):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, engine.ErrDraftNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, engine.ErrInvalidDraft),
		errors.Is(err, engine.ErrUnitOutOfRange):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, engine.ErrTransient),
		errors.Is(err, engine.ErrConflict):
		return connect.NewError(connect.CodeUnavailable, engine.ErrTransient)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	log.Error().Err(err).Msg("draft turn service call failed")
	return connect.NewError(connect.CodeInternal, errInternal)
}
