package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/denrolya/budget-api/internal/money"
)

// Debt tracks money owed to or by the user. Balance is kept in the debt's own
// currency: linked expenses increase it (the user owes more), linked incomes
// decrease it (repayment). Because the debt and the transaction's account may
// differ in currency, the engine applies the transaction's converted value in
// the debt currency, not its raw amount.
type Debt struct {
	Base
	UserID   string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Debtor   string          `gorm:"not null" json:"debtor"`
	Currency string          `gorm:"size:3;not null" json:"currency"`
	Balance  decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	Note     string          `json:"note"`
	ClosedAt *time.Time      `json:"closed_at,omitempty"`

	ConvertedValues money.Values `json:"converted_values"`

	Transactions []Transaction `gorm:"foreignKey:DebtID" json:"transactions,omitempty"`
}

// IsClosed reports whether the debt has been closed.
func (d *Debt) IsClosed() bool { return d.ClosedAt != nil }
