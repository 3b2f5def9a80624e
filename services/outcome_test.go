package services

import (
	"testing"

	"casino-wager-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeBounds(t *testing.T) {
	src := NewRandOutcomeSource()

	cases := []struct {
		contestType models.ContestType
		min, max    int
	}{
		{models.ContestDice, 1, 6},
		{models.ContestDiceBot, 1, 6},
		{models.ContestCoinflip, 1, 2},
	}

	for _, tc := range cases {
		seen := make(map[int]bool)
		for i := 0; i < 500; i++ {
			got, err := src.Next(tc.contestType)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, tc.min)
			assert.LessOrEqual(t, got, tc.max)
			seen[got] = true
		}
		// 500 draws over at most six faces should hit the full range.
		assert.Len(t, seen, tc.max-tc.min+1, "contest %s should cover its range", tc.contestType)
	}
}

func TestOutcomeUnknownContest(t *testing.T) {
	src := NewRandOutcomeSource()
	_, err := src.Next("roulette")
	assert.Error(t, err)
}
