package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the local balance record for a player, keyed by the identity
// the Gateway forwards in X-User-ID. The house is an ordinary account so
// forfeiture takes stay inside the same conservation checks as every other
// movement of funds.
type Account struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string `gorm:"index" json:"username"`

	Balance             decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance"`
	PlaythroughRequired decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"playthrough_required"`

	// Volume and outcome stats, maintained by the progression service.
	TotalWagered               decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_wagered"`
	WageredSinceLastWithdrawal decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"wagered_since_last_withdrawal"`
	TotalPnl                   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_pnl"`
	GamesPlayed                int64           `gorm:"not null;default:0" json:"games_played"`
	GamesWon                   int64           `gorm:"not null;default:0" json:"games_won"`
	WinStreak                  int64           `gorm:"not null;default:0" json:"win_streak"`
	BestWinStreak              int64           `gorm:"not null;default:0" json:"best_win_streak"`

	// Referral program: 1% of referred players' wagering volume accrues
	// to the referrer as unclaimed earnings.
	ReferralCode              string          `gorm:"uniqueIndex" json:"referral_code,omitempty"`
	ReferredBy                string          `gorm:"index" json:"referred_by,omitempty"`
	ReferralCount             int64           `gorm:"not null;default:0" json:"referral_count"`
	ReferralEarnings          decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"referral_earnings"`
	UnclaimedReferralEarnings decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unclaimed_referral_earnings"`

	FirstWagerDate *time.Time `json:"first_wager_date,omitempty"`
	LastBonusClaim *time.Time `json:"last_bonus_claim,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
