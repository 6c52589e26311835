package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/models"
	"github.com/denrolya/budget-api/internal/money"
)

// Netter computes the net converted value of an expense that has linked
// income compensations: the expense's own converted value minus each
// compensation's converted value per currency. Compensations are symmetric;
// order does not matter.
type Netter struct {
	converter *Converter
}

// NewNetter creates a compensation netter backed by the given converter.
func NewNetter(converter *Converter) *Netter {
	return &Netter{converter: converter}
}

// NetValues returns the expense's net converted values. Compensation values
// are recomputed fresh from amount, account currency, and execution date, so
// stale stored maps never leak into the net. excludeID names a compensation
// that is being removed in the current unit of work and must not be counted
// even though it is still present in storage.
func (n *Netter) NetValues(ctx context.Context, tx *gorm.DB, expense *models.Transaction, excludeID string) (money.Values, error) {
	if !expense.IsExpense() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidTransactionType, "only expenses can be netted")
	}

	currency, err := n.accountCurrency(tx, expense.AccountID)
	if err != nil {
		return nil, err
	}

	net, err := n.converter.Convert(ctx, expense.Amount, currency, &expense.ExecutedAt)
	if err != nil {
		return nil, err
	}

	q := tx.Where("original_expense_id = ? AND canceled_at IS NULL", expense.ID)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var compensations []models.Transaction
	if err := q.Find(&compensations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i := range compensations {
		comp := &compensations[i]
		compCurrency, err := n.accountCurrency(tx, comp.AccountID)
		if err != nil {
			return nil, err
		}
		values, err := n.converter.Convert(ctx, comp.Amount, compCurrency, &comp.ExecutedAt)
		if err != nil {
			return nil, err
		}
		net = net.Sub(values)
	}

	return net, nil
}

func (n *Netter) accountCurrency(tx *gorm.DB, accountID string) (string, error) {
	var account models.Account
	if err := tx.Select("id", "currency").First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrAccountNotFound
		}
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return account.Currency, nil
}
