package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one ledger movement. Reference is the idempotence key:
// settlement legs are written with deterministic references so a replayed
// settlement inserts nothing and moves no funds a second time.
type Transaction struct {
	ID        string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AccountID string          `gorm:"index;not null" json:"account_id"` // ExternalUserID
	Kind      string          `gorm:"type:varchar(32);not null;index" json:"kind"`
	Amount    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Reference string          `gorm:"uniqueIndex;not null" json:"reference"`

	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}
