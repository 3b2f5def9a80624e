package services

import (
	"fmt"
	"log"

	"casino-wager-system/models"

	"github.com/shopspring/decimal"
)

// Transaction kinds written by PvP settlement.
const (
	TxPvpStake   = "pvp_stake"
	TxPvpWin     = "pvp_win"
	TxPvpLoss    = "pvp_loss"
	TxPvpRefund  = "pvp_refund"
	TxPvpForfeit = "pvp_forfeit"
)

// ProgressionRecorder receives the one-shot per-settlement stats update.
type ProgressionRecorder interface {
	RecordSettlement(rec *models.GameRecord)
}

// SettlementExecutor turns a terminal transition's settlement action into
// ledger movements, exactly once per challenge. It journals the terminal
// state before any funds move; every credit leg carries a deterministic
// reference so re-driving a half-applied settlement (after a crash or a
// ledger outage) completes it without duplicating value.
type SettlementExecutor struct {
	Ledger      Ledger
	Journal     SettlementJournal
	Notifier    Notifier
	Progression ProgressionRecorder
}

func NewSettlementExecutor(ledger Ledger, journal SettlementJournal, notifier Notifier, progression ProgressionRecorder) *SettlementExecutor {
	return &SettlementExecutor{
		Ledger:      ledger,
		Journal:     journal,
		Notifier:    notifier,
		Progression: progression,
	}
}

// Settle journals the terminal state and applies it. A journal failure is
// returned before any funds move, so the caller can abort its commit and
// leave the challenge replayable. Once the row exists, apply errors are
// logged only: the retry worker drives the settlement to completion from
// the journal.
func (e *SettlementExecutor) Settle(ch *models.Challenge, action SettlementAction) error {
	rec := recordFor(ch, action)
	if err := e.Journal.Record(rec); err != nil {
		return fmt.Errorf("journal settlement for %s: %w", ch.ID, err)
	}
	ch.SettlementApplied = true
	if err := e.Apply(rec); err != nil {
		log.Printf("❌ [Settlement] Apply for %s failed (retry worker will complete it): %v", ch.ID, err)
	}
	return nil
}

// Apply drives a journaled settlement to completion. Safe to call any
// number of times for the same record.
func (e *SettlementExecutor) Apply(rec *models.GameRecord) error {
	wager := rec.Wager

	switch rec.SettlementKind {
	case models.SettlementPayWinner:
		payout := wager.Mul(decimal.NewFromInt(2))
		if _, err := e.Ledger.CreditOnce(rec.WinnerID, TxPvpWin, payout,
			rec.ChallengeID+":win",
			fmt.Sprintf("PvP %s win - wager %s", rec.ContestType, wager)); err != nil {
			return fmt.Errorf("pay winner for %s: %w", rec.ChallengeID, err)
		}
		if _, err := e.Ledger.RecordTransaction(rec.LoserID, TxPvpLoss, wager.Neg(),
			rec.ChallengeID+":loss",
			fmt.Sprintf("PvP %s loss - wager %s", rec.ContestType, wager)); err != nil {
			return fmt.Errorf("record loss for %s: %w", rec.ChallengeID, err)
		}

	case models.SettlementRefundBoth:
		for _, side := range []string{rec.ChallengerID, rec.OpponentID} {
			if _, err := e.Ledger.CreditOnce(side, TxPvpRefund, wager,
				rec.ChallengeID+":refund:"+side,
				fmt.Sprintf("PvP %s draw - stake returned", rec.ContestType)); err != nil {
				return fmt.Errorf("refund %s for %s: %w", side, rec.ChallengeID, err)
			}
		}

	case models.SettlementForfeit:
		if _, err := e.Ledger.CreditOnce(rec.BeneficiaryID, TxPvpRefund, wager,
			rec.ChallengeID+":refund:"+rec.BeneficiaryID,
			fmt.Sprintf("PvP %s opponent forfeited - stake returned", rec.ContestType)); err != nil {
			return fmt.Errorf("refund beneficiary for %s: %w", rec.ChallengeID, err)
		}
		if _, err := e.Ledger.CreditOnce(HouseAccountID, TxPvpForfeit, wager,
			rec.ChallengeID+":house",
			fmt.Sprintf("Forfeited stake from %s", rec.LoserID)); err != nil {
			return fmt.Errorf("credit house for %s: %w", rec.ChallengeID, err)
		}
		if _, err := e.Ledger.RecordTransaction(rec.LoserID, TxPvpForfeit, wager.Neg(),
			rec.ChallengeID+":forfeit",
			fmt.Sprintf("PvP %s stake forfeited on timeout", rec.ContestType)); err != nil {
			return fmt.Errorf("record forfeit for %s: %w", rec.ChallengeID, err)
		}

	case models.SettlementRefundChallenger:
		if _, err := e.Ledger.CreditOnce(rec.BeneficiaryID, TxPvpRefund, wager,
			rec.ChallengeID+":refund:"+rec.BeneficiaryID,
			fmt.Sprintf("PvP %s challenge cancelled - stake returned", rec.ContestType)); err != nil {
			return fmt.Errorf("refund challenger for %s: %w", rec.ChallengeID, err)
		}

	default:
		return fmt.Errorf("unknown settlement kind %q for %s", rec.SettlementKind, rec.ChallengeID)
	}

	flipped, err := e.Journal.MarkSettled(rec.ChallengeID)
	if err != nil {
		return fmt.Errorf("mark settled for %s: %w", rec.ChallengeID, err)
	}
	if flipped {
		// One-shot side effects ride the first successful pass only.
		if e.Progression != nil {
			e.Progression.RecordSettlement(rec)
		}
		e.report(rec)
	}
	return nil
}

func (e *SettlementExecutor) report(rec *models.GameRecord) {
	if e.Notifier == nil || rec.ChatContext == "" {
		return
	}
	amount := FormatMoney(rec.Wager)
	switch rec.SettlementKind {
	case models.SettlementPayWinner:
		e.Notifier.Report(rec.ChatContext,
			fmt.Sprintf("🎉 %s wins the %s challenge for %s!", rec.WinnerID, rec.ContestType, amount))
	case models.SettlementRefundBoth:
		e.Notifier.Report(rec.ChatContext,
			fmt.Sprintf("🤝 Draw! Both %s stakes refunded.", amount))
	case models.SettlementForfeit:
		e.Notifier.Report(rec.ChatContext,
			fmt.Sprintf("⏰ %s forfeited — %s stake returned to %s.", rec.LoserID, amount, rec.BeneficiaryID))
	case models.SettlementRefundChallenger:
		e.Notifier.Report(rec.ChatContext,
			fmt.Sprintf("❌ Challenge expired — %s refunded to %s.", amount, rec.BeneficiaryID))
	}
}

// recordFor maps a terminal challenge and its settlement action onto the
// journal row the retry worker can re-drive from.
func recordFor(ch *models.Challenge, action SettlementAction) *models.GameRecord {
	rec := &models.GameRecord{
		ChallengeID:       ch.ID,
		ContestType:       string(ch.ContestType),
		Wager:             ch.Wager,
		ChallengerID:      ch.ChallengerID,
		OpponentID:        ch.OpponentID,
		ChallengerOutcome: ch.ChallengerOutcome,
		OpponentOutcome:   ch.OpponentOutcome,
		FinalState:        string(ch.State),
		WinnerID:          action.WinnerID,
		LoserID:           action.LoserID,
		BeneficiaryID:     action.BeneficiaryID,
		ChatContext:       ch.ChatContext,
	}
	switch action.Kind {
	case ActionPayWinner:
		rec.SettlementKind = models.SettlementPayWinner
	case ActionRefundBoth:
		rec.SettlementKind = models.SettlementRefundBoth
	case ActionForfeit:
		rec.SettlementKind = models.SettlementForfeit
	case ActionRefundChallenger:
		rec.SettlementKind = models.SettlementRefundChallenger
	default:
		log.Printf("❌ [Settlement] terminal state %s with unexpected action %d on %s", ch.State, action.Kind, ch.ID)
	}
	return rec
}
