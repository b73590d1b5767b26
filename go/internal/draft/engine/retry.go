package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

const (
	defaultConflictRetries = 5
	defaultConflictBackoff = 10 * time.Millisecond
)

// inTx runs fn under the draft lock, retrying lock and write conflicts with jittered exponential
// backoff. fn may run more than once and must not leak state between attempts.
func (e *Engine) inTx(ctx context.Context, draftID uuid.UUID, fn func(tx Tx) error) error {
	backoff := retry.NewExponential(e.retryBase)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(e.retries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := e.store.InTx(ctx, draftID, fn)
		if errors.Is(err, ErrConflict) {
			log.Debug().
				Str("draft_id", draftID.String()).
				Int("attempt", attempt).
				Err(err).
				Msg("draft commit conflicted, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}
