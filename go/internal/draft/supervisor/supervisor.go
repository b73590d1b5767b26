// Package supervisor fires timeout recovery for drafts whose turn deadline elapsed. It owns one
// timer per in-progress draft and a pool of workers that call back into the engine.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Recoverer is what the supervisor needs from the engine.
type Recoverer interface {
	Recover(ctx context.Context, token models.TurnToken) (*engine.RecoverResult, error)
	RunningTurns(ctx context.Context) ([]models.TurnToken, error)
}

type armedTimer struct {
	token models.TurnToken
	timer clockwork.Timer // nil when the deadline had already passed
	stop  chan struct{}
}

// Supervisor is the timer registry. Arm and Cancel are safe for concurrent use.
type Supervisor struct {
	recoverer  Recoverer
	clock      clockwork.Clock
	instanceID string
	numWorkers int
	retryDelay time.Duration

	workCh chan models.TurnToken
	done   chan struct{}

	activeTimers   map[uuid.UUID]*armedTimer
	activeTimersMu sync.Mutex

	inFlight   map[turnKey]bool
	inFlightMu sync.Mutex

	shutdownOnce sync.Once
}

var _ engine.Scheduler = (*Supervisor)(nil)

// Option configures a Supervisor.
type Option func(*Supervisor)

func WithClock(c clockwork.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithWorkers sets the worker count and the queue size in front of them.
func WithWorkers(workers, queueSize int) Option {
	return func(s *Supervisor) {
		if workers > 0 {
			s.numWorkers = workers
		}
		if queueSize > 0 {
			s.workCh = make(chan models.TurnToken, queueSize)
		}
	}
}

// WithRetryDelay sets how long a recovery that failed on infrastructure waits before it is tried
// again.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.retryDelay = d }
}

// New creates a Supervisor. Timers can be armed before Run; they queue until workers start.
func New(recoverer Recoverer, opts ...Option) *Supervisor {
	numWorkers := 10
	s := &Supervisor{
		recoverer:    recoverer,
		clock:        clockwork.NewRealClock(),
		instanceID:   uuid.New().String()[:8],
		numWorkers:   numWorkers,
		retryDelay:   time.Second,
		workCh:       make(chan models.TurnToken, numWorkers*2),
		done:         make(chan struct{}),
		activeTimers: make(map[uuid.UUID]*armedTimer),
		inFlight:     make(map[turnKey]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm schedules recovery of the token's turn at its deadline, replacing any timer held for the
// draft. A token for an earlier turn than the one already armed is ignored, so commits that
// re-arm out of order cannot leave the draft waiting on a stale turn. A deadline in the past is
// queued at once.
func (s *Supervisor) Arm(token models.TurnToken) {
	select {
	case <-s.done:
		return
	default:
	}

	entry := &armedTimer{token: token, stop: make(chan struct{})}
	wait := token.Deadline.Sub(s.clock.Now())
	if wait > 0 {
		entry.timer = s.clock.NewTimer(wait)
	}
	if !s.replaceTimer(token.DraftID, entry) {
		entry.halt()
		log.Debug().
			Str("draft_id", token.DraftID.String()).
			Int("turn_index", token.TurnIndex).
			Int64("generation", token.Generation).
			Msg("ignoring timer for an earlier turn")
		return
	}

	go s.await(entry)

	log.Debug().
		Str("draft_id", token.DraftID.String()).
		Int("turn_index", token.TurnIndex).
		Int64("generation", token.Generation).
		Time("deadline", token.Deadline).
		Dur("wait", wait).
		Msg("armed turn timer")
}

// Cancel stops the draft's timer, if any.
func (s *Supervisor) Cancel(draftID uuid.UUID) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	if entry, exists := s.activeTimers[draftID]; exists {
		entry.halt()
		delete(s.activeTimers, draftID)
		log.Debug().Str("draft_id", draftID.String()).Msg("cancelled turn timer")
	}
}

// Armed returns the token currently armed for a draft.
func (s *Supervisor) Armed(draftID uuid.UUID) (models.TurnToken, bool) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	entry, ok := s.activeTimers[draftID]
	if !ok {
		return models.TurnToken{}, false
	}
	return entry.token, true
}

// Restore arms a timer for every in-progress draft found in storage. Deadlines that passed while
// the process was down fire immediately.
func (s *Supervisor) Restore(ctx context.Context) (int, error) {
	tokens, err := s.recoverer.RunningTurns(ctx)
	if err != nil {
		return 0, err
	}
	for _, token := range tokens {
		s.Arm(token)
	}
	log.Info().
		Str("instance", s.instanceID).
		Int("drafts", len(tokens)).
		Msg("restored turn timers")
	return len(tokens), nil
}

// Run starts the worker pool and blocks until ctx is done, then stops every timer.
func (s *Supervisor) Run(ctx context.Context) error {
	log.Info().Str("instance", s.instanceID).Int("workers", s.numWorkers).Msg("timeout supervisor started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < s.numWorkers; i++ {
		wg.Add(1)
		go s.worker(workerCtx, &wg, i)
	}

	<-ctx.Done()
	log.Info().Str("instance", s.instanceID).Msg("timeout supervisor shutdown requested")

	s.Shutdown()
	cancelWorkers()
	wg.Wait()
	log.Info().Str("instance", s.instanceID).Msg("all workers shut down")
	return nil
}

// Shutdown stops every timer and clears the registry. Later Arm calls are ignored.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.done)

		s.activeTimersMu.Lock()
		for draftID, entry := range s.activeTimers {
			entry.halt()
			log.Debug().Str("draft_id", draftID.String()).Msg("cancelled timer on shutdown")
		}
		s.activeTimers = make(map[uuid.UUID]*armedTimer)
		s.activeTimersMu.Unlock()
	})
}

func (s *Supervisor) await(entry *armedTimer) {
	if entry.timer != nil {
		select {
		case <-entry.timer.Chan():
		case <-entry.stop:
			return
		case <-s.done:
			return
		}
	}

	if !s.removeTimer(entry) {
		return
	}

	select {
	case s.workCh <- entry.token:
		log.Debug().Str("draft_id", entry.token.DraftID.String()).Msg("timer fired - enqueued for processing")
	case <-s.done:
	}
}

// replaceTimer swaps in a draft's new timer and stops the previous one under the same lock. It
// reports false and keeps the existing timer when that one is for a later turn.
func (s *Supervisor) replaceTimer(draftID uuid.UUID, entry *armedTimer) bool {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	if existing, exists := s.activeTimers[draftID]; exists {
		if existing.token.Supersedes(entry.token) {
			return false
		}
		existing.halt()
		log.Debug().Str("draft_id", draftID.String()).Msg("replaced existing timer")
	}
	s.activeTimers[draftID] = entry
	return true
}

// removeTimer drops a fired timer. It reports false when the timer was replaced or cancelled
// in the meantime.
func (s *Supervisor) removeTimer(entry *armedTimer) bool {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	current, exists := s.activeTimers[entry.token.DraftID]
	if !exists || current != entry {
		return false
	}
	delete(s.activeTimers, entry.token.DraftID)
	return true
}

func (e *armedTimer) halt() {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
	if e.timer != nil {
		stopAndDrainTimer(e.timer)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
