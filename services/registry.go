package services

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"casino-wager-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChallengeRegistry owns every live challenge and is the only path that
// mutates one. Locking is two-level: the registry map under an RWMutex,
// plus one mutex per challenge so read-check-write on a single ID is
// serialized while unrelated challenges proceed concurrently. That
// serialization is what turns a double-accept, or an accept racing a
// timeout, into one winner and one ErrChallengeNotFound.
type ChallengeRegistry struct {
	mu      sync.RWMutex
	entries map[string]*challengeEntry

	ledger   Ledger
	settler  *SettlementExecutor
	notifier Notifier

	// now is swappable so tests can drive the deadline clock.
	now func() time.Time
}

type challengeEntry struct {
	mu sync.Mutex
	ch *models.Challenge
	// settled flips when the terminal transition commits; a late event
	// that still holds this entry observes it and reports not-found.
	settled bool
}

func NewChallengeRegistry(ledger Ledger, settler *SettlementExecutor, notifier Notifier) *ChallengeRegistry {
	return &ChallengeRegistry{
		entries:  make(map[string]*challengeEntry),
		ledger:   ledger,
		settler:  settler,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateParams carries the challenge command. An empty OpponentID makes
// an open challenge anyone may accept.
type CreateParams struct {
	ContestType  models.ContestType
	Wager        decimal.Decimal
	ChallengerID string
	OpponentID   string
	ChatContext  string
}

// Create debits the challenger's stake and inserts the challenge in
// AWAITING_OPPONENT. The stake moves before the challenge exists, so an
// insufficient balance aborts with no state change at all.
func (r *ChallengeRegistry) Create(p CreateParams) (*models.Challenge, error) {
	if _, ok := p.ContestType.Rules(); !ok {
		return nil, fmt.Errorf("unknown contest type %q", p.ContestType)
	}
	if !p.Wager.IsPositive() {
		return nil, fmt.Errorf("wager must be positive, got %s", p.Wager)
	}
	if p.OpponentID == p.ChallengerID && p.OpponentID != "" {
		return nil, fmt.Errorf("cannot challenge yourself")
	}

	id := uuid.NewString()
	if _, err := r.ledger.DebitOnce(p.ChallengerID, TxPvpStake, p.Wager,
		id+":stake:"+p.ChallengerID,
		fmt.Sprintf("PvP %s challenge stake", p.ContestType)); err != nil {
		return nil, err
	}

	ch := &models.Challenge{
		ID:           id,
		ContestType:  p.ContestType,
		Wager:        p.Wager,
		ChallengerID: p.ChallengerID,
		OpponentID:   p.OpponentID,
		Targeted:     p.OpponentID != "",
		State:        models.ChallengeAwaitingOpponent,
		CreatedAt:    r.now(),
		ChatContext:  p.ChatContext,
	}

	r.mu.Lock()
	r.entries[id] = &challengeEntry{ch: ch}
	r.mu.Unlock()

	if r.notifier != nil {
		who := "Anyone"
		if ch.Targeted {
			who = ch.OpponentID
		}
		_, _ = r.notifier.Prompt(ch.ChatContext,
			fmt.Sprintf("🎲 %s challenge for %s by %s — %s can accept!",
				ch.ContestType, FormatMoney(ch.Wager), ch.ChallengerID, who),
			[]string{"accept", "decline"})
	}

	log.Printf("✅ [Registry] Challenge %s created (%s, %s) by %s", id, ch.ContestType, FormatMoney(ch.Wager), ch.ChallengerID)
	return ch.Clone(), nil
}

// Mutate is the single mutation gate. It looks the challenge up, runs the
// pure transition on a scratch copy, performs the accept debit if one is
// required, commits, and — for terminal states — settles inside the same
// critical section before removing the entry.
func (r *ChallengeRegistry) Mutate(id string, ev ChallengeEvent) (*models.Challenge, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.settled {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}

	snap := entry.ch.Clone()
	action, err := Transition(snap, ev, r.now())
	if err != nil {
		return nil, err
	}

	// The accept only commits if the opponent's stake clears; a failed
	// debit leaves the challenge open for someone else.
	if action.Kind == ActionDebitOpponent {
		if _, err := r.ledger.DebitOnce(snap.OpponentID, TxPvpStake, snap.Wager,
			id+":stake:"+snap.OpponentID,
			fmt.Sprintf("PvP %s challenge stake", snap.ContestType)); err != nil {
			return nil, err
		}
	}

	if snap.State.Terminal() {
		// The journal row is the idempotence marker the retry worker
		// re-drives from; until it exists the terminal state must not
		// commit, or a journal outage here would strand both stakes with
		// nothing left to retry. Abort instead: the challenge stays live
		// and the event is replayed by the caller or the sweep.
		if err := r.settler.Settle(snap, action); err != nil {
			return nil, err
		}
		*entry.ch = *snap
		entry.settled = true
		r.mu.Lock()
		delete(r.entries, id)
		r.mu.Unlock()
	} else {
		*entry.ch = *snap
		r.promptNext(entry.ch)
	}

	return entry.ch.Clone(), nil
}

// promptNext nudges whichever side the challenge is now waiting on.
func (r *ChallengeRegistry) promptNext(ch *models.Challenge) {
	if r.notifier == nil {
		return
	}
	switch ch.State {
	case models.ChallengeAwaitingChallengerOutcome:
		_, _ = r.notifier.Prompt(ch.ChatContext,
			fmt.Sprintf("🎲 %s accepted! %s, roll now.", ch.OpponentID, ch.ChallengerID),
			[]string{"roll"})
	case models.ChallengeAwaitingOpponentOutcome:
		_, _ = r.notifier.Prompt(ch.ChatContext,
			fmt.Sprintf("🎲 %s rolled %d. %s, your turn.", ch.ChallengerID, *ch.ChallengerOutcome, ch.OpponentID),
			[]string{"roll"})
	}
}

// ExpiringChallenge is one timeout the scheduler should inject.
type ExpiringChallenge struct {
	ID    string
	Event ChallengeEvent
}

// ListExpiring scans live challenges and returns the timeout events their
// deadlines imply at now, without mutating anything. Each event is pinned
// to the state it was scanned in so a race lost to a human action is
// rejected by the transition guard instead of firing against the
// successor state.
func (r *ChallengeRegistry) ListExpiring(now time.Time) []ExpiringChallenge {
	r.mu.RLock()
	snapshot := make([]*challengeEntry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.RUnlock()

	var due []ExpiringChallenge
	for _, e := range snapshot {
		e.mu.Lock()
		ch := e.ch
		if !e.settled && deadlineLapsed(ch, now) {
			due = append(due, ExpiringChallenge{
				ID:    ch.ID,
				Event: ChallengeEvent{Kind: EventTimeout, TimeoutState: ch.State},
			})
		}
		e.mu.Unlock()
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due
}

func deadlineLapsed(ch *models.Challenge, now time.Time) bool {
	switch ch.State {
	case models.ChallengeAwaitingOpponent:
		return now.Sub(ch.CreatedAt) > ChallengeTimeout
	case models.ChallengeAwaitingChallengerOutcome:
		return ch.AcceptedAt != nil && now.Sub(*ch.AcceptedAt) > ChallengeTimeout
	case models.ChallengeAwaitingOpponentOutcome:
		return ch.ChallengerRespondedAt != nil && now.Sub(*ch.ChallengerRespondedAt) > ChallengeTimeout
	}
	return false
}

// Get returns a copy of a live challenge.
func (r *ChallengeRegistry) Get(id string) (*models.Challenge, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.settled {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	return entry.ch.Clone(), nil
}

// ListOpen returns copies of challenges still waiting for an opponent.
func (r *ChallengeRegistry) ListOpen() []*models.Challenge {
	r.mu.RLock()
	snapshot := make([]*challengeEntry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.RUnlock()

	var open []*models.Challenge
	for _, e := range snapshot {
		e.mu.Lock()
		if !e.settled && e.ch.State == models.ChallengeAwaitingOpponent {
			open = append(open, e.ch.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.Before(open[j].CreatedAt) })
	return open
}

// Len reports the number of live challenges.
func (r *ChallengeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SetClock overrides the registry clock. Test hook.
func (r *ChallengeRegistry) SetClock(now func() time.Time) {
	r.now = now
}
