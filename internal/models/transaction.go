package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/denrolya/budget-api/internal/money"
)

// TransactionType tags a transaction as an expense or an income. The signed
// effect of a transaction on its account balance is derived from this tag in
// exactly one place (SignedAmount), not spread across virtual dispatch.
type TransactionType string

const (
	TransactionTypeExpense TransactionType = "expense"
	TransactionTypeIncome  TransactionType = "income"
)

// Valid reports whether the type is one of the known variants.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeExpense || t == TransactionTypeIncome
}

// Transaction represents a financial transaction. Amount is always stored
// positive; the sign of its balance effect is implied by Type. ExecutedAt is
// the date of economic effect and is independent of CreatedAt.
// ConvertedValues is recomputed by the engine whenever amount, account, or
// execution date change; it is never user-supplied. For an expense with
// compensations it holds the netted value.
type Transaction struct {
	Base
	UserID    string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID string          `gorm:"type:uuid;not null;index" json:"account_id"`
	DebtID    *string         `gorm:"type:uuid;index" json:"debt_id,omitempty"`
	Type      TransactionType `gorm:"not null" json:"type"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Note      string          `json:"note"`

	ExecutedAt time.Time  `gorm:"not null;index" json:"executed_at"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`
	IsDraft    bool       `gorm:"default:false" json:"is_draft"`

	ConvertedValues money.Values `json:"converted_values"`

	// An income may compensate an expense (e.g. a reimbursement); the
	// expense holds the set of incomes compensating it.
	OriginalExpenseID *string       `gorm:"type:uuid;index" json:"original_expense_id,omitempty"`
	Compensations     []Transaction `gorm:"foreignKey:OriginalExpenseID" json:"compensations,omitempty"`

	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Debt    *Debt    `gorm:"foreignKey:DebtID" json:"debt,omitempty"`
}

// IsExpense reports whether the transaction is an expense.
func (t *Transaction) IsExpense() bool { return t.Type == TransactionTypeExpense }

// IsIncome reports whether the transaction is an income.
func (t *Transaction) IsIncome() bool { return t.Type == TransactionTypeIncome }

// IsCanceled reports whether the transaction has been soft-deleted.
func (t *Transaction) IsCanceled() bool { return t.CanceledAt != nil }

// SignedAmount returns the transaction's effect on its account balance in the
// account's own currency: negative for expenses, positive for incomes.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.IsExpense() {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ConvertedValue returns the transaction's value in the given currency.
func (t *Transaction) ConvertedValue(code string) decimal.Decimal {
	return t.ConvertedValues.Get(code)
}
