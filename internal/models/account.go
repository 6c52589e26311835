package models

import (
	"github.com/shopspring/decimal"
)

// Account represents a financial account in the system. Its currency is
// fixed at creation; the balance is the authoritative running total and is
// mutated only by the ledger consistency engine, never directly by callers.
type Account struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`

	Transactions []Transaction     `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
	LogEntries   []AccountLogEntry `gorm:"foreignKey:AccountID" json:"log_entries,omitempty"`
}
