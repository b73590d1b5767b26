package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claim(unit int, roster uuid.UUID) models.ClaimRecord {
	return models.ClaimRecord{ID: uuid.New(), Unit: unit, RosterID: roster}
}

func TestRecordClaimDerby(t *testing.T) {
	l, err := New(models.PhaseDerby, 4, nil)
	require.NoError(t, err)

	a, b := uuid.New(), uuid.New()
	require.NoError(t, l.RecordClaim(claim(3, a)))

	assert.ErrorIs(t, l.RecordClaim(claim(3, b)), ErrAlreadyClaimed)
	assert.ErrorIs(t, l.RecordClaim(claim(1, a)), ErrDuplicateParticipant)
	assert.ErrorIs(t, l.RecordClaim(claim(5, b)), ErrUnitOutOfRange)
	assert.ErrorIs(t, l.RecordClaim(claim(0, b)), ErrUnitOutOfRange)

	assert.Equal(t, []int{1, 2, 4}, l.Remaining())
	assert.True(t, l.HasClaimed(a))
	assert.False(t, l.HasClaimed(b))
	assert.Len(t, l.History(), 1)
}

func TestPickPhaseAllowsManyClaimsPerRoster(t *testing.T) {
	l, err := New(models.PhasePicks, 6, nil)
	require.NoError(t, err)

	a := uuid.New()
	require.NoError(t, l.RecordClaim(claim(1, a)))
	require.NoError(t, l.RecordClaim(claim(6, a)))
	assert.Equal(t, 4, l.RemainingCount())
}

func TestRemainingPlusHistoryIsTotal(t *testing.T) {
	l, err := New(models.PhaseDerby, 5, nil)
	require.NoError(t, err)

	for _, unit := range []int{5, 2, 4, 1, 3} {
		require.NoError(t, l.RecordClaim(claim(unit, uuid.New())))
		assert.Equal(t, 5, l.RemainingCount()+len(l.History()))
	}
	assert.True(t, l.IsComplete())
	assert.Empty(t, l.Remaining())
}

func TestRemainingUnitsStopsEarly(t *testing.T) {
	l, err := New(models.PhasePicks, 10, []models.ClaimRecord{claim(2, uuid.New())})
	require.NoError(t, err)

	var seen []int
	for u := range l.RemainingUnits() {
		seen = append(seen, u)
		if len(seen) == 3 {
			break
		}
	}
	assert.Equal(t, []int{1, 3, 4}, seen)
}

func TestNewRejectsCorruptHistory(t *testing.T) {
	r := uuid.New()
	_, err := New(models.PhaseDerby, 3, []models.ClaimRecord{claim(1, r), claim(1, uuid.New())})
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}
