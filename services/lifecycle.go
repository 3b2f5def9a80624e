package services

import (
	"errors"
	"fmt"
	"time"

	"casino-wager-system/models"

	"github.com/shopspring/decimal"
)

// ChallengeTimeout is the single deadline applied to every wait state,
// measured from the timestamp that entered the state.
const ChallengeTimeout = 30 * time.Second

var (
	// ErrChallengeNotFound marks an event that lost the race: the
	// challenge was already settled and removed. Callers racing the
	// scheduler drop it silently.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrInvalidTransition marks an event the current state does not
	// accept (wrong turn, duplicate accept, stale timeout).
	ErrInvalidTransition = errors.New("invalid transition")
)

// EventKind identifies the inbound event driving a transition.
type EventKind string

const (
	EventAccept        EventKind = "accept"
	EventDecline       EventKind = "decline"
	EventSubmitOutcome EventKind = "submit_outcome"
	EventTimeout       EventKind = "timeout"
)

// ChallengeEvent is one lifecycle input. ActorID is the account acting;
// Outcome carries the generated roll for submissions. TimeoutState pins a
// timeout to the wait state it was scanned in, so a timeout that lost the
// race to a human action cannot fire against the successor state.
type ChallengeEvent struct {
	Kind         EventKind
	ActorID      string
	Outcome      int
	TimeoutState models.ChallengeState
}

// ActionKind names the financial consequence a transition demands.
type ActionKind int

const (
	ActionNone ActionKind = iota
	// ActionDebitOpponent is the only non-terminal action: the accept
	// commits only if the opponent's stake clears.
	ActionDebitOpponent
	ActionPayWinner
	ActionRefundBoth
	ActionForfeit
	ActionRefundChallenger
)

// SettlementAction describes what the caller must do with funds after the
// transition commits. The transition itself performs no I/O.
type SettlementAction struct {
	Kind ActionKind

	WinnerID string
	LoserID  string
	// BeneficiaryID is the refunded side of a forfeit or cancellation;
	// the other side's stake goes to the house.
	BeneficiaryID string
	Amount        decimal.Decimal
}

// Transition applies one event to a challenge snapshot. On success the
// snapshot is updated in place (state, outcome, timestamps) and the
// required settlement action is returned; on a guard failure the snapshot
// is untouched and the event must be dropped or surfaced by the caller.
func Transition(ch *models.Challenge, ev ChallengeEvent, now time.Time) (SettlementAction, error) {
	switch ev.Kind {
	case EventAccept:
		return applyAccept(ch, ev, now)
	case EventDecline:
		return applyDecline(ch, ev)
	case EventSubmitOutcome:
		return applySubmit(ch, ev, now)
	case EventTimeout:
		return applyTimeout(ch, ev, now)
	}
	return SettlementAction{}, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev.Kind)
}

func applyAccept(ch *models.Challenge, ev ChallengeEvent, now time.Time) (SettlementAction, error) {
	if ch.State != models.ChallengeAwaitingOpponent {
		return SettlementAction{}, fmt.Errorf("%w: challenge %s is not open for acceptance", ErrInvalidTransition, ch.ID)
	}
	if ev.ActorID == ch.ChallengerID {
		return SettlementAction{}, fmt.Errorf("%w: cannot accept your own challenge", ErrInvalidTransition)
	}
	if ch.Targeted && ev.ActorID != ch.OpponentID {
		return SettlementAction{}, fmt.Errorf("%w: challenge is addressed to another player", ErrInvalidTransition)
	}

	ch.OpponentID = ev.ActorID
	ch.State = models.ChallengeAwaitingChallengerOutcome
	t := now
	ch.AcceptedAt = &t
	return SettlementAction{Kind: ActionDebitOpponent, Amount: ch.Wager}, nil
}

func applyDecline(ch *models.Challenge, ev ChallengeEvent) (SettlementAction, error) {
	if ch.State != models.ChallengeAwaitingOpponent {
		return SettlementAction{}, fmt.Errorf("%w: challenge %s can no longer be declined", ErrInvalidTransition, ch.ID)
	}
	if ev.ActorID != ch.ChallengerID && !(ch.Targeted && ev.ActorID == ch.OpponentID) {
		return SettlementAction{}, fmt.Errorf("%w: only the challenger or the invited opponent may decline", ErrInvalidTransition)
	}

	ch.State = models.ChallengeCancelledUnaccepted
	return SettlementAction{
		Kind:          ActionRefundChallenger,
		BeneficiaryID: ch.ChallengerID,
		Amount:        ch.Wager,
	}, nil
}

func applySubmit(ch *models.Challenge, ev ChallengeEvent, now time.Time) (SettlementAction, error) {
	switch ch.State {
	case models.ChallengeAwaitingChallengerOutcome:
		if ev.ActorID != ch.ChallengerID {
			return SettlementAction{}, fmt.Errorf("%w: waiting on the challenger's roll", ErrInvalidTransition)
		}
		outcome := ev.Outcome
		ch.ChallengerOutcome = &outcome
		t := now
		ch.ChallengerRespondedAt = &t
		ch.State = models.ChallengeAwaitingOpponentOutcome
		return SettlementAction{Kind: ActionNone}, nil

	case models.ChallengeAwaitingOpponentOutcome:
		if ev.ActorID != ch.OpponentID {
			return SettlementAction{}, fmt.Errorf("%w: waiting on the opponent's roll", ErrInvalidTransition)
		}
		outcome := ev.Outcome
		ch.OpponentOutcome = &outcome
		t := now
		ch.OpponentRespondedAt = &t
		ch.State = models.ChallengeResolved
		return resolveOutcomes(ch)
	}
	return SettlementAction{}, fmt.Errorf("%w: challenge %s does not accept a roll now", ErrInvalidTransition, ch.ID)
}

// resolveOutcomes compares both submitted outcomes under the contest's
// tie policy. Strictly greater wins; a tie refunds both sides except in
// bot-fallback mode where the challenger loses.
func resolveOutcomes(ch *models.Challenge) (SettlementAction, error) {
	rules, ok := ch.ContestType.Rules()
	if !ok {
		return SettlementAction{}, fmt.Errorf("unknown contest type %q", ch.ContestType)
	}
	co, oo := *ch.ChallengerOutcome, *ch.OpponentOutcome

	switch {
	case co > oo:
		return SettlementAction{Kind: ActionPayWinner, WinnerID: ch.ChallengerID, LoserID: ch.OpponentID, Amount: ch.Wager}, nil
	case oo > co:
		return SettlementAction{Kind: ActionPayWinner, WinnerID: ch.OpponentID, LoserID: ch.ChallengerID, Amount: ch.Wager}, nil
	}

	if rules.Tie == models.TieChallengerLoses {
		return SettlementAction{Kind: ActionPayWinner, WinnerID: ch.OpponentID, LoserID: ch.ChallengerID, Amount: ch.Wager}, nil
	}
	return SettlementAction{
		Kind:   ActionRefundBoth,
		Amount: ch.Wager,
	}, nil
}

func applyTimeout(ch *models.Challenge, ev ChallengeEvent, now time.Time) (SettlementAction, error) {
	// A timeout is only valid against the exact state it was scanned in;
	// anything else means a human action won the race.
	if ev.TimeoutState != ch.State {
		return SettlementAction{}, fmt.Errorf("%w: stale timeout for %s", ErrInvalidTransition, ch.ID)
	}

	switch ch.State {
	case models.ChallengeAwaitingOpponent:
		if now.Sub(ch.CreatedAt) <= ChallengeTimeout {
			return SettlementAction{}, fmt.Errorf("%w: challenge %s has not expired yet", ErrInvalidTransition, ch.ID)
		}
		ch.State = models.ChallengeCancelledUnaccepted
		return SettlementAction{
			Kind:          ActionRefundChallenger,
			BeneficiaryID: ch.ChallengerID,
			Amount:        ch.Wager,
		}, nil

	case models.ChallengeAwaitingChallengerOutcome:
		if ch.AcceptedAt == nil || now.Sub(*ch.AcceptedAt) <= ChallengeTimeout {
			return SettlementAction{}, fmt.Errorf("%w: challenger still has time to roll", ErrInvalidTransition)
		}
		ch.State = models.ChallengeForfeitedChallenger
		// Opponent gets their own stake back; the challenger's stake is
		// the house take.
		return SettlementAction{
			Kind:          ActionForfeit,
			BeneficiaryID: ch.OpponentID,
			LoserID:       ch.ChallengerID,
			Amount:        ch.Wager,
		}, nil

	case models.ChallengeAwaitingOpponentOutcome:
		if ch.ChallengerRespondedAt == nil || now.Sub(*ch.ChallengerRespondedAt) <= ChallengeTimeout {
			return SettlementAction{}, fmt.Errorf("%w: opponent still has time to roll", ErrInvalidTransition)
		}
		ch.State = models.ChallengeForfeitedOpponent
		return SettlementAction{
			Kind:          ActionForfeit,
			BeneficiaryID: ch.ChallengerID,
			LoserID:       ch.OpponentID,
			Amount:        ch.Wager,
		}, nil
	}
	return SettlementAction{}, fmt.Errorf("%w: no deadline applies to state %s", ErrInvalidTransition, ch.State)
}
