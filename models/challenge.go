package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChallengeState is the lifecycle position of a PvP challenge. Terminal
// states never transition again; a challenge is removed from the registry
// as soon as it reaches one.
type ChallengeState string

const (
	ChallengeAwaitingOpponent          ChallengeState = "AWAITING_OPPONENT"
	ChallengeAwaitingChallengerOutcome ChallengeState = "AWAITING_CHALLENGER_OUTCOME"
	ChallengeAwaitingOpponentOutcome   ChallengeState = "AWAITING_OPPONENT_OUTCOME"
	ChallengeResolved                  ChallengeState = "RESOLVED"
	ChallengeCancelledUnaccepted       ChallengeState = "CANCELLED_UNACCEPTED"
	ChallengeForfeitedChallenger       ChallengeState = "FORFEITED_CHALLENGER"
	ChallengeForfeitedOpponent         ChallengeState = "FORFEITED_OPPONENT"
)

// Terminal reports whether the state ends the challenge.
func (s ChallengeState) Terminal() bool {
	switch s {
	case ChallengeResolved, ChallengeCancelledUnaccepted,
		ChallengeForfeitedChallenger, ChallengeForfeitedOpponent:
		return true
	}
	return false
}

// Challenge is a proposed or active PvP wager between two accounts. Live
// challenges exist only in the registry; once settled they survive as a
// GameRecord. Outcome pointers are write-once: the lifecycle rejects a
// second submission from the same side.
type Challenge struct {
	ID          string
	ContestType ContestType
	Wager       decimal.Decimal

	ChallengerID string
	// OpponentID is fixed at creation for a targeted challenge and empty
	// until acceptance for an open one.
	OpponentID string
	// Targeted marks a challenge aimed at a specific opponent; only that
	// account may accept it.
	Targeted bool

	State             ChallengeState
	ChallengerOutcome *int
	OpponentOutcome   *int

	// Each timestamp is set exactly once, when the matching state is
	// entered, and drives that state's 30s deadline.
	CreatedAt             time.Time
	AcceptedAt            *time.Time
	ChallengerRespondedAt *time.Time
	OpponentRespondedAt   *time.Time

	// ChatContext is an opaque routing token handed back to the notifier.
	ChatContext string

	// SettlementApplied is flipped by the settlement executor once funds
	// have moved, so a replay can detect the duplicate.
	SettlementApplied bool
}

// Clone returns a deep copy used as a scratch value during transitions so
// a failed guard leaves the registry entry untouched.
func (c *Challenge) Clone() *Challenge {
	dup := *c
	if c.ChallengerOutcome != nil {
		v := *c.ChallengerOutcome
		dup.ChallengerOutcome = &v
	}
	if c.OpponentOutcome != nil {
		v := *c.OpponentOutcome
		dup.OpponentOutcome = &v
	}
	if c.AcceptedAt != nil {
		t := *c.AcceptedAt
		dup.AcceptedAt = &t
	}
	if c.ChallengerRespondedAt != nil {
		t := *c.ChallengerRespondedAt
		dup.ChallengerRespondedAt = &t
	}
	if c.OpponentRespondedAt != nil {
		t := *c.OpponentRespondedAt
		dup.OpponentRespondedAt = &t
	}
	return &dup
}
