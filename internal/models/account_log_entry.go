package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/denrolya/budget-api/internal/money"
	"github.com/denrolya/budget-api/internal/uuid"
)

// AccountLogEntry is an immutable snapshot of an account's running balance at
// a point in time. CreatedAt aliases a transaction's execution instant, not
// the wall-clock time the row was written. Entries are created and removed
// exclusively by the history rebuilder; at most one entry exists per
// account and instant (same-instant transactions are netted into one).
//
// Convention: Balance is the running balance immediately BEFORE the
// transactions at CreatedAt take effect ("balance at start of day").
type AccountLogEntry struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string          `gorm:"type:uuid;not null;index:idx_log_account_date" json:"account_id"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance"`
	CreatedAt time.Time       `gorm:"not null;index:idx_log_account_date" json:"created_at"`

	ConvertedValues money.Values `json:"converted_values"`

	Account *Account `gorm:"foreignKey:AccountID" json:"-"`
}

// BeforeCreate hook generates a UUIDv7 for new entries. CreatedAt is set by
// the rebuilder and must not be overwritten.
func (e *AccountLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	return nil
}
