package order

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosters(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestExpectedRosterLinear(t *testing.T) {
	p := rosters(3)
	for turn := 0; turn < 9; turn++ {
		assert.Equal(t, p[turn%3], ExpectedRoster(p, models.OrderingLinear, turn))
	}
}

func TestSnakeRounds(t *testing.T) {
	p := rosters(4)
	a, b, c, d := p[0], p[1], p[2], p[3]

	assert.Equal(t, []uuid.UUID{a, b, c, d}, RoundOrder(p, models.OrderingSnake, 0))
	assert.Equal(t, []uuid.UUID{d, c, b, a}, RoundOrder(p, models.OrderingSnake, 1))
	assert.Equal(t, []uuid.UUID{a, b, c, d}, RoundOrder(p, models.OrderingSnake, 2))
	assert.Equal(t, []uuid.UUID{d, c, b, a}, RoundOrder(p, models.OrderingSnake, 3))
}

func TestRoundReversalRepeatsSecondRound(t *testing.T) {
	p := rosters(4)

	for round := 0; round < 6; round++ {
		got := RoundOrder(p, models.OrderingSnakeRoundReversal, round)
		if round == 2 {
			assert.Equal(t, RoundOrder(p, models.OrderingSnakeRoundReversal, 1), got, "round 2 repeats round 1")
			continue
		}
		assert.Equal(t, RoundOrder(p, models.OrderingSnake, round), got, "round %d matches snake", round)
	}
}

func TestPickSequenceSnakeScenario(t *testing.T) {
	ten, twenty, thirty, forty := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	p := []uuid.UUID{ten, twenty, thirty, forty}

	want := []uuid.UUID{
		ten, twenty, thirty, forty,
		forty, thirty, twenty, ten,
		ten, twenty, thirty, forty,
	}
	assert.Equal(t, want, PickSequence(p, models.OrderingSnake, 3))
}

func TestExpectedRosterIsDeterministic(t *testing.T) {
	p := rosters(7)
	modes := []models.OrderingMode{models.OrderingLinear, models.OrderingSnake, models.OrderingSnakeRoundReversal}
	for _, mode := range modes {
		for turn := 0; turn < 70; turn++ {
			first := ExpectedRoster(p, mode, turn)
			require.Equal(t, first, ExpectedRoster(append([]uuid.UUID(nil), p...), mode, turn))
		}
	}
}

func TestExpectedRosterEdgeCases(t *testing.T) {
	assert.Equal(t, uuid.Nil, ExpectedRoster(nil, models.OrderingSnake, 3))

	p := rosters(2)
	assert.Equal(t, p[0], ExpectedRoster(p, models.OrderingSnake, -4))
	assert.Equal(t, p[0], ExpectedRoster(p, models.OrderingMode("unknown"), 2))
}

func TestUnitOwnerAndRound(t *testing.T) {
	p := rosters(4)
	assert.Equal(t, p[3], UnitOwner(p, models.OrderingSnake, 5))
	assert.Equal(t, p[0], UnitOwner(p, models.OrderingSnake, 8))
	assert.Equal(t, 0, RoundOf(4, 4))
	assert.Equal(t, 1, RoundOf(5, 4))
	assert.Equal(t, 2, RoundOf(12, 4))
	assert.Equal(t, 0, RoundOf(0, 4))
}
