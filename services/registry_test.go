package services

import (
	"sync"
	"testing"
	"time"

	"casino-wager-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, seed map[string]float64) (*ChallengeRegistry, *fakeLedger, *fakeJournal, *fakeNotifier) {
	t.Helper()
	ledger := newFakeLedger(seed)
	journal := newFakeJournal()
	notifier := &fakeNotifier{}
	executor := NewSettlementExecutor(ledger, journal, notifier, nil)
	registry := NewChallengeRegistry(ledger, executor, notifier)
	return registry, ledger, journal, notifier
}

func TestCreateDebitsStake(t *testing.T) {
	registry, ledger, _, _ := newTestRegistry(t, map[string]float64{"alice": 100, HouseAccountID: 1000})

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(10),
		ChallengerID: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ChallengeAwaitingOpponent, ch.State)
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(90)))
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, TxPvpStake, ledger.entryKind(ch.ID+":stake:alice"), "stake debit and its entry land together")
}

func TestCreateValidation(t *testing.T) {
	registry, ledger, _, _ := newTestRegistry(t, map[string]float64{"alice": 5})

	_, err := registry.Create(CreateParams{ContestType: "roulette", Wager: decimal.NewFromInt(10), ChallengerID: "alice"})
	assert.Error(t, err)

	_, err = registry.Create(CreateParams{ContestType: models.ContestDice, Wager: decimal.NewFromInt(-1), ChallengerID: "alice"})
	assert.Error(t, err)

	_, err = registry.Create(CreateParams{ContestType: models.ContestDice, Wager: decimal.NewFromInt(10), ChallengerID: "alice", OpponentID: "alice"})
	assert.Error(t, err)

	// Insufficient balance aborts with no challenge and no debit.
	_, err = registry.Create(CreateParams{ContestType: models.ContestDice, Wager: decimal.NewFromInt(10), ChallengerID: "alice"})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 0, registry.Len())
}

func TestConcurrentAcceptsExactlyOneWins(t *testing.T) {
	registry, _, _, _ := newTestRegistry(t, map[string]float64{
		"alice": 100, "bob": 100, "carol": 100, "dave": 100, "erin": 100, HouseAccountID: 1000,
	})

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(10),
		ChallengerID: "alice",
	})
	require.NoError(t, err)

	acceptors := []string{"bob", "carol", "dave", "erin"}
	results := make([]error, len(acceptors))
	var wg sync.WaitGroup
	for i, who := range acceptors {
		wg.Add(1)
		go func(i int, who string) {
			defer wg.Done()
			_, results[i] = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventAccept, ActorID: who})
		}(i, who)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, won)

	got, err := registry.Get(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeAwaitingChallengerOutcome, got.State)
	assert.Contains(t, acceptors, got.OpponentID)
}

func TestAcceptAbortsWhenStakeDoesNotClear(t *testing.T) {
	registry, ledger, _, _ := newTestRegistry(t, map[string]float64{"alice": 100, "bob": 3, HouseAccountID: 1000})

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(10),
		ChallengerID: "alice",
	})
	require.NoError(t, err)

	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventAccept, ActorID: "bob"})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Challenge stays open; bob's balance is untouched.
	got, err := registry.Get(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeAwaitingOpponent, got.State)
	assert.Empty(t, got.OpponentID)
	assert.True(t, ledger.balance("bob").Equal(decimal.NewFromInt(3)))
}

func TestFullMatchConservesMoney(t *testing.T) {
	registry, ledger, journal, _ := newTestRegistry(t, map[string]float64{"alice": 100, "bob": 100, HouseAccountID: 1000})
	before := ledger.total()

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(10),
		ChallengerID: "alice",
	})
	require.NoError(t, err)

	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventAccept, ActorID: "bob"})
	require.NoError(t, err)
	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventSubmitOutcome, ActorID: "alice", Outcome: 6})
	require.NoError(t, err)
	final, err := registry.Mutate(ch.ID, ChallengeEvent{Kind: EventSubmitOutcome, ActorID: "bob", Outcome: 2})
	require.NoError(t, err)

	assert.Equal(t, models.ChallengeResolved, final.State)
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(110)), "winner nets +wager")
	assert.True(t, ledger.balance("bob").Equal(decimal.NewFromInt(90)), "loser nets -wager")
	assert.True(t, ledger.total().Equal(before), "settlement must conserve total funds")

	// The challenge is gone from the registry and journaled as settled.
	_, err = registry.Get(ch.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	assert.Equal(t, 0, registry.Len())
	unsettled, err := journal.Unsettled(10)
	require.NoError(t, err)
	assert.Empty(t, unsettled)
}

func TestJournalOutageAbortsSettlementCommit(t *testing.T) {
	registry, ledger, journal, _ := newTestRegistry(t, map[string]float64{"alice": 100, "bob": 100, HouseAccountID: 1000})
	before := ledger.total()

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(10),
		ChallengerID: "alice",
	})
	require.NoError(t, err)
	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventAccept, ActorID: "bob"})
	require.NoError(t, err)
	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventSubmitOutcome, ActorID: "alice", Outcome: 6})
	require.NoError(t, err)

	// The journal is down when the final roll lands. Without the journal
	// row there is nothing for the retry worker to re-drive, so the
	// terminal commit must abort and the challenge must stay live.
	journal.failRecord = true
	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventSubmitOutcome, ActorID: "bob", Outcome: 2})
	require.Error(t, err)

	got, err := registry.Get(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeAwaitingOpponentOutcome, got.State)
	assert.Nil(t, got.OpponentOutcome)
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(90)), "both stakes stay escrowed")
	assert.True(t, ledger.balance("bob").Equal(decimal.NewFromInt(90)))

	// Once the journal recovers, replaying the event settles normally.
	journal.failRecord = false
	final, err := registry.Mutate(ch.ID, ChallengeEvent{Kind: EventSubmitOutcome, ActorID: "bob", Outcome: 2})
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeResolved, final.State)
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(110)))
	assert.True(t, ledger.balance("bob").Equal(decimal.NewFromInt(90)))
	assert.True(t, ledger.total().Equal(before), "no funds destroyed across the outage")
}

func TestDeclineRefundsChallenger(t *testing.T) {
	registry, ledger, _, _ := newTestRegistry(t, map[string]float64{"alice": 100, HouseAccountID: 1000})

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(25),
		ChallengerID: "alice",
	})
	require.NoError(t, err)
	require.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(75)))

	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventDecline, ActorID: "alice"})
	require.NoError(t, err)

	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 0, registry.Len())
}

func TestTimeoutSweepRacesHumanAction(t *testing.T) {
	registry, _, _, _ := newTestRegistry(t, map[string]float64{"alice": 100, "bob": 100, HouseAccountID: 1000})

	now := time.Now()
	registry.SetClock(func() time.Time { return now })

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(10),
		ChallengerID: "alice",
	})
	require.NoError(t, err)

	// The sweep scans the lapsed deadline...
	late := now.Add(ChallengeTimeout + time.Second)
	due := registry.ListExpiring(late)
	require.Len(t, due, 1)
	assert.Equal(t, ch.ID, due[0].ID)
	assert.Equal(t, models.ChallengeAwaitingOpponent, due[0].Event.TimeoutState)

	// ...but bob accepts before the timeout is injected. The pinned state
	// makes the stale timeout a guard failure, not a cancellation.
	registry.SetClock(func() time.Time { return late })
	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventAccept, ActorID: "bob"})
	require.NoError(t, err)

	_, err = registry.Mutate(due[0].ID, due[0].Event)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := registry.Get(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeAwaitingChallengerOutcome, got.State)
}

func TestSweepCancelsExpiredOpenChallenge(t *testing.T) {
	registry, ledger, _, _ := newTestRegistry(t, map[string]float64{"alice": 100, HouseAccountID: 1000})

	now := time.Now()
	registry.SetClock(func() time.Time { return now })

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(10),
		ChallengerID: "alice",
	})
	require.NoError(t, err)

	late := now.Add(ChallengeTimeout + time.Second)
	registry.SetClock(func() time.Time { return late })
	registry.SweepExpired(late)

	_, err = registry.Get(ch.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(100)), "stake refunded on expiry")
}

func TestForfeitSettlement(t *testing.T) {
	registry, ledger, _, _ := newTestRegistry(t, map[string]float64{"alice": 100, "bob": 100, HouseAccountID: 1000})

	now := time.Now()
	registry.SetClock(func() time.Time { return now })

	ch, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(10),
		ChallengerID: "alice",
	})
	require.NoError(t, err)
	_, err = registry.Mutate(ch.ID, ChallengeEvent{Kind: EventAccept, ActorID: "bob"})
	require.NoError(t, err)

	// Alice never rolls; her stake goes to the house and bob is made whole.
	late := now.Add(ChallengeTimeout + time.Second)
	registry.SetClock(func() time.Time { return late })
	registry.SweepExpired(late)

	assert.True(t, ledger.balance("alice").Equal(decimal.NewFromInt(90)))
	assert.True(t, ledger.balance("bob").Equal(decimal.NewFromInt(100)))
	assert.True(t, ledger.balance(HouseAccountID).Equal(decimal.NewFromInt(1010)))
}

func TestListOpenExcludesTargetedProgress(t *testing.T) {
	registry, _, _, _ := newTestRegistry(t, map[string]float64{"alice": 100, "bob": 100, HouseAccountID: 1000})

	first, err := registry.Create(CreateParams{
		ContestType:  models.ContestDice,
		Wager:        decimal.NewFromInt(5),
		ChallengerID: "alice",
	})
	require.NoError(t, err)
	second, err := registry.Create(CreateParams{
		ContestType:  models.ContestCoinflip,
		Wager:        decimal.NewFromInt(5),
		ChallengerID: "bob",
	})
	require.NoError(t, err)

	open := registry.ListOpen()
	require.Len(t, open, 2)

	_, err = registry.Mutate(first.ID, ChallengeEvent{Kind: EventAccept, ActorID: "bob"})
	require.NoError(t, err)

	open = registry.ListOpen()
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
}
