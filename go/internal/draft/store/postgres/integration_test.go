package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore needs a disposable database in TEST_DATABASE_URL.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := OpenSQL(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Close())

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return New(pool, time.Second)
}

func TestStore_PickPhaseWithPool(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	eng := engine.New(store)

	a, b := uuid.New(), uuid.New()
	d, err := eng.CreateDraft(ctx, models.Draft{
		Phase:         models.PhasePicks,
		OrderingMode:  models.OrderingLinear,
		Rounds:        1,
		TimePerTurn:   time.Minute,
		TimeoutPolicy: models.TimeoutPolicyAutoAssign,
	}, []uuid.UUID{a, b})
	require.NoError(t, err)

	p1, p2 := uuid.New(), uuid.New()
	require.NoError(t, store.SetSelectionPool(ctx, d.ID, []uuid.UUID{p1, p2}))

	_, err = eng.StartPhase(ctx, d.ID)
	require.NoError(t, err)
	_, err = eng.Claim(ctx, engine.ClaimRequest{DraftID: d.ID, RosterID: a, Selection: &p1})
	require.NoError(t, err)

	available, err := store.AvailableSelections(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p2}, available)

	running, err := store.ListRunning(ctx)
	require.NoError(t, err)
	assert.Contains(t, tokenDrafts(running), d.ID)

	st, err := store.Load(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Clock.TurnIndex)
	require.Len(t, st.Claims, 1)
	assert.Equal(t, p1, *st.Claims[0].Selection)
}

func tokenDrafts(tokens []models.TurnToken) []uuid.UUID {
	ids := make([]uuid.UUID, len(tokens))
	for i, t := range tokens {
		ids[i] = t.DraftID
	}
	return ids
}

type lastArmed struct {
	token models.TurnToken
}

func (l *lastArmed) Arm(token models.TurnToken) { l.token = token }
func (l *lastArmed) Cancel(uuid.UUID)           {}

func TestStore_ArmedTokenRecoversAfterRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	armed := &lastArmed{}
	eng := engine.New(store, engine.WithScheduler(armed))

	d, err := eng.CreateDraft(ctx, models.Draft{
		OrderingMode:  models.OrderingLinear,
		Rounds:        1,
		TimePerTurn:   time.Minute,
		TimeoutPolicy: models.TimeoutPolicySkip,
	}, []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)
	_, err = eng.StartPhase(ctx, d.ID)
	require.NoError(t, err)

	first := armed.token
	res, err := eng.Recover(ctx, first)
	require.NoError(t, err)
	assert.False(t, res.Stale)
	assert.True(t, armed.token.Supersedes(first))

	res, err = eng.Recover(ctx, first)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	require.NotNil(t, res.Current)
	assert.Equal(t, armed.token.Generation, res.Current.Generation)
}
