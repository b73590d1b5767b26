package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	events []events.Event
	sent   map[uuid.UUID]time.Time
}

func newFakeSource(evs ...events.Event) *fakeSource {
	return &fakeSource{events: evs, sent: map[uuid.UUID]time.Time{}}
}

func (f *fakeSource) Insert(_ context.Context, evs ...events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evs...)
	return nil
}

func (f *fakeSource) FetchByID(_ context.Context, id uuid.UUID) (*events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == id {
			if _, ok := f.sent[id]; ok {
				return nil, ErrNotFound
			}
			return &ev, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeSource) FetchUnsent(_ context.Context, limit int) ([]events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, ev := range f.events {
		if _, ok := f.sent[ev.ID]; !ok && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeSource) MarkSent(_ context.Context, ids []uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.sent[id] = at
	}
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []events.Event
	failures  map[uuid.UUID]int
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures[ev.ID] > 0 {
		p.failures[ev.ID]--
		return errors.New("nats: timeout")
	}
	p.published = append(p.published, ev)
	return nil
}

func testEvent(t *testing.T, draftID uuid.UUID, typ string) events.Event {
	t.Helper()
	ev, err := events.New(draftID, typ, time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC), map[string]int{"turnIndex": 1})
	require.NoError(t, err)
	return ev
}

func testRelayConfig() RelayConfig {
	return RelayConfig{BatchSize: 10, MaxRetries: 2, RetryDelay: time.Millisecond}
}

func TestRelay_RelayOne(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	ev := testEvent(t, uuid.New(), events.TypeTurnStarted)
	src := newFakeSource(ev)
	pub := &fakePublisher{}
	relay := NewRelay(src, pub, clock, testRelayConfig())

	require.NoError(t, relay.RelayOne(ctx, ev.ID))
	require.Len(t, pub.published, 1)
	assert.Equal(t, ev.ID, pub.published[0].ID)
	assert.Equal(t, clock.Now(), src.sent[ev.ID])

	// The sweep already sent it; a late notification is a no-op.
	require.NoError(t, relay.RelayOne(ctx, ev.ID))
	assert.Len(t, pub.published, 1)

	processed, last := relay.Stats()
	assert.Equal(t, uint64(1), processed)
	assert.Equal(t, clock.Now(), last)
}

func TestRelay_RetriesPublish(t *testing.T) {
	ctx := context.Background()
	ev := testEvent(t, uuid.New(), events.TypeClaimCommitted)
	src := newFakeSource(ev)
	pub := &fakePublisher{failures: map[uuid.UUID]int{ev.ID: 2}}
	relay := NewRelay(src, pub, clockwork.NewFakeClock(), testRelayConfig())

	require.NoError(t, relay.RelayOne(ctx, ev.ID))
	assert.Len(t, pub.published, 1)
	assert.Contains(t, src.sent, ev.ID)
}

func TestRelay_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	ev := testEvent(t, uuid.New(), events.TypeClaimCommitted)
	src := newFakeSource(ev)
	pub := &fakePublisher{failures: map[uuid.UUID]int{ev.ID: 10}}
	relay := NewRelay(src, pub, clockwork.NewFakeClock(), testRelayConfig())

	assert.Error(t, relay.RelayOne(ctx, ev.ID))
	assert.NotContains(t, src.sent, ev.ID)
}

func TestRelay_RelayUnsentStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	draftID := uuid.New()
	first := testEvent(t, draftID, events.TypeClaimCommitted)
	second := testEvent(t, draftID, events.TypeTurnStarted)
	third := testEvent(t, draftID, events.TypeClaimCommitted)
	src := newFakeSource(first, second, third)
	pub := &fakePublisher{failures: map[uuid.UUID]int{second.ID: 10}}
	relay := NewRelay(src, pub, clockwork.NewFakeClock(), testRelayConfig())

	n, err := relay.RelayUnsent(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, src.sent, first.ID)
	assert.NotContains(t, src.sent, second.ID)
	assert.NotContains(t, src.sent, third.ID)

	pub.failures[second.ID] = 0
	n, err = relay.RelayUnsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.published, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID},
		[]uuid.UUID{pub.published[0].ID, pub.published[1].ID, pub.published[2].ID})
}

func TestNotifier_InsertsEvents(t *testing.T) {
	src := newFakeSource()
	n := NewNotifier(src)
	draftID := uuid.New()

	require.NoError(t, n.Notify(context.Background()))
	require.NoError(t, n.Notify(context.Background(),
		testEvent(t, draftID, events.TypeClaimCommitted),
		testEvent(t, draftID, events.TypeTurnStarted)))
	assert.Len(t, src.events, 2)
}
