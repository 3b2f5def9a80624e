package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementKind names the financial consequence of a terminal challenge
// state, as stored in the settlement journal.
type SettlementKind string

const (
	SettlementPayWinner        SettlementKind = "pay_winner"
	SettlementRefundBoth       SettlementKind = "refund_both"
	SettlementForfeit          SettlementKind = "forfeit"
	SettlementRefundChallenger SettlementKind = "refund_challenger"
)

// GameRecord is the durable journal row for a settled (or settling)
// challenge. It is written in the same critical section that commits the
// terminal state, before any funds move, so the retry worker can re-drive
// a settlement that crashed mid-way. Settled flips to true exactly once.
type GameRecord struct {
	ID          string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ChallengeID string          `gorm:"uniqueIndex;not null" json:"challenge_id"`
	ContestType string          `gorm:"type:varchar(32);not null" json:"contest_type"`
	Wager       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"wager"`

	ChallengerID string `gorm:"index;not null" json:"challenger_id"`
	OpponentID   string `gorm:"index" json:"opponent_id"`

	ChallengerOutcome *int `json:"challenger_outcome,omitempty"`
	OpponentOutcome   *int `json:"opponent_outcome,omitempty"`

	FinalState     string         `gorm:"type:varchar(32);not null" json:"final_state"`
	SettlementKind SettlementKind `gorm:"type:varchar(32);not null" json:"settlement_kind"`
	WinnerID       string         `json:"winner_id,omitempty"`
	LoserID        string         `json:"loser_id,omitempty"`
	// BeneficiaryID is the refunded side of a forfeit or cancellation.
	BeneficiaryID string `json:"beneficiary_id,omitempty"`

	ChatContext string `json:"chat_context,omitempty"`

	Settled   bool       `gorm:"not null;default:false;index" json:"settled"`
	SettledAt *time.Time `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
