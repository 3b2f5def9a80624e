package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"casino-wager-system/models"
	"casino-wager-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DailyBonusRate is the share of wagered-since-withdrawal volume paid out
// by the daily bonus.
var DailyBonusRate = decimal.NewFromFloat(0.01)

// DailyBonusCooldown is the minimum gap between bonus claims.
const DailyBonusCooldown = 24 * time.Hour

// AccountService covers the account-facing surface around the wagering
// core: balances, transaction history, daily bonus, tips, referral
// earnings and ledger backups.
type AccountService struct {
	DB     *gorm.DB
	Ledger *GormLedger
}

func NewAccountService(db *gorm.DB, ledger *GormLedger) *AccountService {
	return &AccountService{DB: db, Ledger: ledger}
}

// GetBalance returns the caller's account, creating it with the starter
// balance on first contact.
func (s *AccountService) GetBalance(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	acc, err := s.Ledger.EnsureAccount(userID)
	if err != nil {
		log.Printf("❌ [Account] Failed to load account %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{
		"balance":              acc.Balance,
		"playthrough_required": acc.PlaythroughRequired,
		"withdrawals_unlocked": !acc.PlaythroughRequired.IsPositive(),
	})
}

// GetTransactions returns the caller's most recent ledger entries.
func (s *AccountService) GetTransactions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 10)
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var txs []models.Transaction
	if err := s.DB.Where("account_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error; err != nil {
		log.Printf("❌ [Account] Failed to load transactions for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"transactions": txs, "count": len(txs)})
}

// ClaimDailyBonus pays 1% of the volume wagered since the last
// withdrawal, once per 24h, and adds the bonus to the playthrough
// requirement so it must be wagered before withdrawal.
func (s *AccountService) ClaimDailyBonus(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	acc, err := s.Ledger.EnsureAccount(userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	now := time.Now()
	if acc.LastBonusClaim != nil {
		if elapsed := now.Sub(*acc.LastBonusClaim); elapsed < DailyBonusCooldown {
			remaining := DailyBonusCooldown - elapsed
			return c.Status(429).JSON(fiber.Map{
				"error":            "daily bonus on cooldown",
				"retry_in_seconds": int(remaining.Seconds()),
			})
		}
	}

	bonus := acc.WageredSinceLastWithdrawal.Mul(DailyBonusRate).Round(2)
	if bonus.LessThan(decimal.NewFromFloat(0.01)) {
		return c.Status(400).JSON(fiber.Map{
			"error":         "bonus below minimum",
			"current_bonus": bonus,
			"minimum":       0.01,
		})
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("external_user_id = ?", userID).
			Updates(map[string]interface{}{
				"balance":              gorm.Expr("balance + ?", bonus),
				"playthrough_required": gorm.Expr("playthrough_required + ?", bonus),
				"last_bonus_claim":     &now,
			})
		if res.Error != nil {
			return res.Error
		}
		return tx.Create(&models.Transaction{
			AccountID:   userID,
			Kind:        "bonus",
			Amount:      bonus,
			Reference:   uuid.NewString(),
			Description: fmt.Sprintf("Daily bonus on %s wagered volume", FormatMoney(acc.WageredSinceLastWithdrawal)),
		}).Error
	})
	if err != nil {
		log.Printf("❌ [Account] Bonus claim failed for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to claim bonus"})
	}

	return c.JSON(fiber.Map{
		"bonus":   bonus,
		"message": "daily bonus claimed — wager it before withdrawing",
	})
}

type tipRequest struct {
	Amount      float64 `json:"amount"`
	RecipientID string  `json:"recipient_id"`
}

// Tip transfers balance between two accounts in one database
// transaction: both balance changes and both ledger entries commit
// together or not at all, so an interrupted tip never strands funds.
func (s *AccountService) Tip(c *fiber.Ctx) error {
	var req tipRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID := c.Locals("user_id").(string)
	amount := decimal.NewFromFloat(req.Amount)

	if !amount.IsPositive() {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be positive"})
	}
	if req.RecipientID == "" || req.RecipientID == userID {
		return c.Status(400).JSON(fiber.Map{"error": "cannot tip yourself"})
	}
	if _, err := s.Ledger.EnsureAccount(userID); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if _, err := s.Ledger.EnsureAccount(req.RecipientID); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	ref := uuid.NewString()
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("external_user_id = ? AND balance >= ?", userID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}
		upd := tx.Model(&models.Account{}).
			Where("external_user_id = ?", req.RecipientID).
			Update("balance", gorm.Expr("balance + ?", amount))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		if err := tx.Create(&models.Transaction{
			AccountID:   userID,
			Kind:        "tip_sent",
			Amount:      amount.Neg(),
			Reference:   ref + ":sent",
			Description: fmt.Sprintf("Tipped %s to %s", FormatMoney(amount), req.RecipientID),
		}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Transaction{
			AccountID:   req.RecipientID,
			Kind:        "tip_received",
			Amount:      amount,
			Reference:   ref + ":received",
			Description: fmt.Sprintf("Received %s tip from %s", FormatMoney(amount), userID),
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return c.Status(400).JSON(fiber.Map{"error": "insufficient balance"})
		}
		log.Printf("❌ [Account] Tip failed (%s → %s, %s): %v", userID, req.RecipientID, amount, err)
		return c.Status(500).JSON(fiber.Map{"error": "transfer failed"})
	}

	return c.JSON(fiber.Map{"message": "tip sent", "amount": amount, "recipient": req.RecipientID})
}

// ClaimReferralEarnings moves accrued referral earnings into the balance.
func (s *AccountService) ClaimReferralEarnings(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	acc, err := s.Ledger.EnsureAccount(userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	unclaimed := acc.UnclaimedReferralEarnings
	if !unclaimed.IsPositive() {
		return c.Status(400).JSON(fiber.Map{"error": "no referral earnings to claim"})
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("external_user_id = ? AND unclaimed_referral_earnings = ?", userID, unclaimed).
			Updates(map[string]interface{}{
				"balance":                     gorm.Expr("balance + ?", unclaimed),
				"unclaimed_referral_earnings": decimal.Zero,
				"referral_earnings":           gorm.Expr("referral_earnings + ?", unclaimed),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("earnings changed concurrently, retry")
		}
		return tx.Create(&models.Transaction{
			AccountID:   userID,
			Kind:        "referral",
			Amount:      unclaimed,
			Reference:   uuid.NewString(),
			Description: "Referral earnings claimed",
		}).Error
	})
	if err != nil {
		log.Printf("❌ [Account] Referral claim failed for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to claim earnings"})
	}

	return c.JSON(fiber.Map{"claimed": unclaimed})
}

// Backup snapshots accounts and transactions to object storage and
// returns the object key.
func (s *AccountService) Backup(c *fiber.Ctx) error {
	var accounts []models.Account
	if err := s.DB.Find(&accounts).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	var txs []models.Transaction
	if err := s.DB.Find(&txs).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	payload, err := json.Marshal(fiber.Map{
		"accounts":     accounts,
		"transactions": txs,
		"taken_at":     time.Now().UTC(),
	})
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to encode backup"})
	}

	key := fmt.Sprintf("backups/ledger_%s.json", time.Now().UTC().Format("20060102_150405"))
	url, err := utils.UploadBackup(key, payload)
	if err != nil {
		log.Printf("❌ [Account] Backup upload failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "backup upload failed"})
	}

	log.Printf("✅ Ledger backup uploaded: %s", key)
	return c.JSON(fiber.Map{"key": key, "url": url})
}
