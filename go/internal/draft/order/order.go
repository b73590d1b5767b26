// Package order maps a turn index to the roster expected to act.
//
// Every function here is pure: the same participants, mode and turn index always give the same
// roster, in any process.
package order

import (
	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/models"
)

// ExpectedRoster returns the roster due at the 0-based turnIndex.
// An empty participant list yields uuid.Nil.
func ExpectedRoster(participants []uuid.UUID, mode models.OrderingMode, turnIndex int) uuid.UUID {
	n := len(participants)
	if n == 0 {
		return uuid.Nil
	}
	if turnIndex < 0 {
		turnIndex = 0
	}

	round := turnIndex / n
	slot := turnIndex % n
	if IsReversed(mode, round) {
		slot = n - 1 - slot
	}
	return participants[slot]
}

// IsReversed reports whether the 0-based round runs backwards through the participant list.
func IsReversed(mode models.OrderingMode, round int) bool {
	switch mode {
	case models.OrderingSnake:
		return round%2 == 1
	case models.OrderingSnakeRoundReversal:
		// the third round keeps the second round's direction
		if round == 2 {
			return true
		}
		return round%2 == 1
	default:
		return false
	}
}

// RoundOrder returns the order rosters act in during the 0-based round.
func RoundOrder(participants []uuid.UUID, mode models.OrderingMode, round int) []uuid.UUID {
	n := len(participants)
	out := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		out[i] = ExpectedRoster(participants, mode, round*n+i)
	}
	return out
}

// PickSequence returns the full roster sequence for a pick phase of the given rounds.
func PickSequence(participants []uuid.UUID, mode models.OrderingMode, rounds int) []uuid.UUID {
	total := rounds * len(participants)
	seq := make([]uuid.UUID, 0, total)
	for i := 0; i < total; i++ {
		seq = append(seq, ExpectedRoster(participants, mode, i))
	}
	return seq
}

// UnitOwner returns the roster that owns a 1-indexed overall pick number.
func UnitOwner(participants []uuid.UUID, mode models.OrderingMode, unit int) uuid.UUID {
	return ExpectedRoster(participants, mode, unit-1)
}

// RoundOf returns the 0-based round a 1-indexed overall pick number falls in.
func RoundOf(unit, participantCount int) int {
	if participantCount <= 0 || unit <= 0 {
		return 0
	}
	return (unit - 1) / participantCount
}
