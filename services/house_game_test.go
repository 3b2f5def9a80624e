package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHouseGames(seed map[string]float64, rolls ...int) (*HouseGameService, *fakeLedger) {
	ledger := newFakeLedger(seed)
	return NewHouseGameService(ledger, &scriptedOutcomes{rolls: rolls}, nil, nil), ledger
}

func TestPlayDiceWin(t *testing.T) {
	svc, ledger := newHouseGames(map[string]float64{"alice": 100, HouseAccountID: 1000}, 6, 2)

	res, err := svc.PlayDice("alice", decimal.NewFromInt(10), "")
	require.NoError(t, err)

	assert.Equal(t, "win", res.Result)
	assert.Equal(t, 6, res.PlayerRoll)
	assert.Equal(t, 2, res.HouseRoll)
	assert.True(t, res.Payout.Equal(decimal.NewFromInt(20)))
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(110)))
	assert.True(t, ledger.balance(HouseAccountID).Equal(decimal.NewFromInt(990)))

	// Both legs are reference-keyed transfers, so an interrupted game can
	// be replayed without duplicating value.
	stake, ok := ledger.entryBySuffix(":stake:out")
	require.True(t, ok)
	assert.Equal(t, "alice", stake.account)
	assert.Equal(t, TxDiceBot, stake.kind)
	assert.True(t, stake.amount.Equal(decimal.NewFromInt(-10)))
	payout, ok := ledger.entryBySuffix(":payout:in")
	require.True(t, ok)
	assert.Equal(t, "alice", payout.account)
	assert.Equal(t, TxDiceBot, payout.kind)
	assert.True(t, payout.amount.Equal(decimal.NewFromInt(20)))
}

func TestPlayDiceLoss(t *testing.T) {
	svc, ledger := newHouseGames(map[string]float64{"alice": 100, HouseAccountID: 1000}, 1, 4)

	res, err := svc.PlayDice("alice", decimal.NewFromInt(10), "")
	require.NoError(t, err)

	assert.Equal(t, "loss", res.Result)
	assert.True(t, res.Payout.IsZero())
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(90)))
	assert.True(t, ledger.balance(HouseAccountID).Equal(decimal.NewFromInt(1010)))
}

func TestPlayDiceDrawRefunds(t *testing.T) {
	svc, ledger := newHouseGames(map[string]float64{"alice": 100, HouseAccountID: 1000}, 3, 3)

	res, err := svc.PlayDice("alice", decimal.NewFromInt(10), "")
	require.NoError(t, err)

	assert.Equal(t, "draw", res.Result)
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(100)))
	assert.True(t, ledger.balance(HouseAccountID).Equal(decimal.NewFromInt(1000)))
}

func TestPlayDiceRejectsBadStake(t *testing.T) {
	svc, ledger := newHouseGames(map[string]float64{"alice": 5, HouseAccountID: 1000}, 6, 1)

	_, err := svc.PlayDice("alice", decimal.NewFromInt(-1), "")
	assert.Error(t, err)

	_, err = svc.PlayDice("alice", decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(5)))
}

func TestPlayCoinflip(t *testing.T) {
	t.Run("matching call pays double", func(t *testing.T) {
		svc, ledger := newHouseGames(map[string]float64{"alice": 100, HouseAccountID: 1000}, 1)

		res, err := svc.PlayCoinflip("alice", decimal.NewFromInt(10), "heads", "")
		require.NoError(t, err)

		assert.Equal(t, "win", res.Result)
		assert.Equal(t, "heads", res.Landed)
		assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(110)))
	})

	t.Run("wrong call loses the stake", func(t *testing.T) {
		svc, ledger := newHouseGames(map[string]float64{"alice": 100, HouseAccountID: 1000}, 2)

		res, err := svc.PlayCoinflip("alice", decimal.NewFromInt(10), "heads", "")
		require.NoError(t, err)

		assert.Equal(t, "loss", res.Result)
		assert.Equal(t, "tails", res.Landed)
		assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(90)))
	})

	t.Run("invalid choice rejected before any debit", func(t *testing.T) {
		svc, ledger := newHouseGames(map[string]float64{"alice": 100, HouseAccountID: 1000}, 1)

		_, err := svc.PlayCoinflip("alice", decimal.NewFromInt(10), "edge", "")
		assert.Error(t, err)
		assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(100)))
	})
}
