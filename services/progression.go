package services

import (
	"log"
	"time"

	"casino-wager-system/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReferralCutRate is the share of a referred player's wagering volume
// accrued to their referrer as unclaimed earnings.
var ReferralCutRate = decimal.NewFromFloat(0.01)

// ProgressionService maintains per-account volume and outcome stats:
// games played/won, wagered totals, win streaks, P&L, playthrough burn-down
// and referral accrual. Stats are best-effort bookkeeping — a failed
// update is logged, never allowed to block a settlement.
type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// GameResult is one player's view of a finished game.
type GameResult int

const (
	ResultLoss GameResult = iota
	ResultWin
	ResultDraw
)

// RecordSettlement applies the stats update for both sides of a settled
// PvP challenge. Runs exactly once per challenge, on the pass that flips
// the settlement marker.
func (s *ProgressionService) RecordSettlement(rec *models.GameRecord) {
	challengerResult := ResultDraw
	opponentResult := ResultDraw

	switch rec.SettlementKind {
	case models.SettlementPayWinner:
		if rec.WinnerID == rec.ChallengerID {
			challengerResult, opponentResult = ResultWin, ResultLoss
		} else {
			challengerResult, opponentResult = ResultLoss, ResultWin
		}
	case models.SettlementForfeit:
		// The forfeiting side eats their stake; the refunded side is
		// made whole, not enriched, so neither counts as a win.
		if rec.LoserID == rec.ChallengerID {
			challengerResult, opponentResult = ResultLoss, ResultDraw
		} else {
			challengerResult, opponentResult = ResultDraw, ResultLoss
		}
	case models.SettlementRefundChallenger:
		// Never accepted: no game was played, no volume was wagered.
		return
	}

	s.RecordWager(rec.ChallengerID, rec.Wager, challengerResult)
	if rec.OpponentID != "" {
		s.RecordWager(rec.OpponentID, rec.Wager, opponentResult)
	}
}

// RecordWager folds one wagered game into an account's stats and accrues
// the referral cut to the account's referrer.
func (s *ProgressionService) RecordWager(accountID string, wager decimal.Decimal, result GameResult) {
	var acc models.Account
	if err := s.DB.Where("external_user_id = ?", accountID).First(&acc).Error; err != nil {
		log.Printf("❌ [Progression] Account %s not found for stats update: %v", accountID, err)
		return
	}

	acc.GamesPlayed++
	acc.TotalWagered = acc.TotalWagered.Add(wager)
	acc.WageredSinceLastWithdrawal = acc.WageredSinceLastWithdrawal.Add(wager)

	switch result {
	case ResultWin:
		acc.GamesWon++
		acc.WinStreak++
		if acc.WinStreak > acc.BestWinStreak {
			acc.BestWinStreak = acc.WinStreak
		}
		acc.TotalPnl = acc.TotalPnl.Add(wager)
	case ResultLoss:
		acc.WinStreak = 0
		acc.TotalPnl = acc.TotalPnl.Sub(wager)
	}

	// Wagering burns down any bonus playthrough requirement.
	if acc.PlaythroughRequired.IsPositive() {
		acc.PlaythroughRequired = decimal.Max(decimal.Zero, acc.PlaythroughRequired.Sub(wager))
	}

	if acc.FirstWagerDate == nil {
		now := time.Now()
		acc.FirstWagerDate = &now
	}

	if err := s.DB.Save(&acc).Error; err != nil {
		log.Printf("❌ [Progression] Failed to update stats for %s: %v", accountID, err)
		return
	}

	if acc.ReferredBy != "" {
		s.accrueReferralCut(acc.ReferredBy, wager)
	}
}

func (s *ProgressionService) accrueReferralCut(referrerID string, wager decimal.Decimal) {
	cut := wager.Mul(ReferralCutRate)
	res := s.DB.Model(&models.Account{}).
		Where("external_user_id = ?", referrerID).
		Update("unclaimed_referral_earnings", gorm.Expr("unclaimed_referral_earnings + ?", cut))
	if res.Error != nil {
		log.Printf("❌ [Progression] Referral accrual for %s failed: %v", referrerID, res.Error)
	}
}
