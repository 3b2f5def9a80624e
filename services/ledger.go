package services

import (
	"errors"
	"fmt"

	"casino-wager-system/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HouseAccountID is the operating account credited by forfeitures and
// vs-house losses. It is an ordinary ledger row so conservation stays
// checkable across every settlement.
const HouseAccountID = "house"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// Ledger is the balance/transaction port the challenge core settles
// through. Every mutating operation is atomic and idempotent on its
// reference: a balance never moves without its ledger entry committing in
// the same step, and a replayed reference moves nothing a second time.
type Ledger interface {
	// RecordTransaction appends a record-only entry (no balance change),
	// reporting whether this call inserted the row.
	RecordTransaction(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error)
	// CreditOnce credits and logs in one atomic step, skipping both when
	// the reference was already logged. Reports whether it applied.
	CreditOnce(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error)
	// DebitOnce is the debit-side counterpart of CreditOnce. The logged
	// entry carries the negated amount.
	DebitOnce(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error)
	// Transfer moves amount between two accounts with matching entries on
	// both sides (reference ":out"/":in"), all-or-nothing.
	Transfer(fromID, toID, kind string, amount decimal.Decimal, reference, description string) error
}

// starterBalance seeds new accounts, matching the signup credit the
// platform advertises.
var starterBalance = decimal.NewFromInt(1000)

// houseSeedBalance funds the house account on first boot.
var houseSeedBalance = decimal.NewFromFloat(6973.0)

// GormLedger is the postgres-backed Ledger. Debits are single-statement
// compare-and-update so two concurrent debits can never overdraw, and
// every balance move shares a database transaction with its ledger entry.
type GormLedger struct {
	DB *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{DB: db}
}

// EnsureAccount creates the account row if it does not exist yet, seeded
// with the starter balance, and returns it.
func (l *GormLedger) EnsureAccount(accountID string) (*models.Account, error) {
	var acc models.Account
	err := l.DB.Where("external_user_id = ?", accountID).First(&acc).Error
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	acc = models.Account{
		ExternalUserID:             accountID,
		Balance:                    starterBalance,
		PlaythroughRequired:        decimal.Zero,
		TotalWagered:               decimal.Zero,
		WageredSinceLastWithdrawal: decimal.Zero,
		TotalPnl:                   decimal.Zero,
		ReferralEarnings:           decimal.Zero,
		UnclaimedReferralEarnings:  decimal.Zero,
	}
	if err := l.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoNothing: true,
	}).Create(&acc).Error; err != nil {
		return nil, err
	}
	// Re-read in case a concurrent creator won the insert.
	if err := l.DB.Where("external_user_id = ?", accountID).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// EnsureHouseAccount seeds the house ledger row on startup.
func (l *GormLedger) EnsureHouseAccount() error {
	acc := models.Account{
		ExternalUserID:             HouseAccountID,
		Username:                   "house",
		Balance:                    houseSeedBalance,
		PlaythroughRequired:        decimal.Zero,
		TotalWagered:               decimal.Zero,
		WageredSinceLastWithdrawal: decimal.Zero,
		TotalPnl:                   decimal.Zero,
		ReferralEarnings:           decimal.Zero,
		UnclaimedReferralEarnings:  decimal.Zero,
	}
	return l.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoNothing: true,
	}).Create(&acc).Error
}

// debitBalance removes amount inside tx, failing with
// ErrInsufficientFunds when the balance cannot cover it.
func debitBalance(tx *gorm.DB, accountID string, amount decimal.Decimal) error {
	res := tx.Model(&models.Account{}).
		Where("external_user_id = ? AND balance >= ?", accountID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing account from a short balance.
		var count int64
		if err := tx.Model(&models.Account{}).
			Where("external_user_id = ?", accountID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrAccountNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

func creditBalance(tx *gorm.DB, accountID string, amount decimal.Decimal) error {
	res := tx.Model(&models.Account{}).
		Where("external_user_id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// insertEntry inserts a ledger entry, reporting false when the reference
// was already logged.
func insertEntry(tx *gorm.DB, accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error) {
	entry := models.Transaction{
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordTransaction appends a record-only ledger entry. A reference that
// was already logged inserts nothing and returns false, which is how
// settlement replays detect an already-applied leg.
func (l *GormLedger) RecordTransaction(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error) {
	return insertEntry(l.DB, accountID, kind, amount, reference, description)
}

// CreditOnce performs the transaction-log insert and the balance credit
// inside one database transaction. If the reference already exists the
// whole step is a no-op, which makes settlement replays safe leg by leg.
func (l *GormLedger) CreditOnce(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error) {
	if amount.IsNegative() {
		return false, fmt.Errorf("credit amount must not be negative: %s", amount)
	}
	applied := false
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		inserted, err := insertEntry(tx, accountID, kind, amount, reference, description)
		if err != nil {
			return err
		}
		if !inserted {
			return nil // already applied on a previous pass
		}
		if err := creditBalance(tx, accountID, amount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// DebitOnce removes amount and logs the entry (negated) atomically. An
// insufficient balance rolls the whole step back.
func (l *GormLedger) DebitOnce(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error) {
	if amount.IsNegative() {
		return false, fmt.Errorf("debit amount must not be negative: %s", amount)
	}
	applied := false
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		inserted, err := insertEntry(tx, accountID, kind, amount.Neg(), reference, description)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		if err := debitBalance(tx, accountID, amount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// Transfer moves amount from one account to another in a single database
// transaction: both balance changes and both ledger entries commit
// together or not at all, so an interrupted transfer can never strand
// funds between accounts. Idempotent on reference.
func (l *GormLedger) Transfer(fromID, toID, kind string, amount decimal.Decimal, reference, description string) error {
	if amount.IsNegative() {
		return fmt.Errorf("transfer amount must not be negative: %s", amount)
	}
	return l.DB.Transaction(func(tx *gorm.DB) error {
		inserted, err := insertEntry(tx, fromID, kind, amount.Neg(), reference+":out", description)
		if err != nil {
			return err
		}
		if !inserted {
			return nil // already applied
		}
		if _, err := insertEntry(tx, toID, kind, amount, reference+":in", description); err != nil {
			return err
		}
		if err := debitBalance(tx, fromID, amount); err != nil {
			return err
		}
		return creditBalance(tx, toID, amount)
	})
}
