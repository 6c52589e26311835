package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/models"
)

// Mutator applies signed balance deltas to Account and Debt aggregates.
// Account deltas use the transaction's raw amount (the account and the
// transaction share a currency); debt deltas use the transaction's converted
// value in the debt's own currency, with the sign convention mirrored:
// an expense increases the debt, an income repays it.
type Mutator struct {
	converter *Converter
}

// NewMutator creates a balance mutator backed by the given converter.
func NewMutator(converter *Converter) *Mutator {
	return &Mutator{converter: converter}
}

// signedEffect is the single place the Expense/Income tag is turned into a
// signed account-balance delta.
func signedEffect(typ models.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if typ == models.TransactionTypeExpense {
		return amount.Neg()
	}
	return amount
}

// ApplyCreate adds the transaction's signed effect to its account balance.
func (m *Mutator) ApplyCreate(tx *gorm.DB, account *models.Account, t *models.Transaction) error {
	return m.adjust(tx, account, signedEffect(t.Type, t.Amount))
}

// ApplyDelete reverses the transaction's signed effect on its account balance.
// Callers must not invoke this for an already-canceled transaction.
func (m *Mutator) ApplyDelete(tx *gorm.DB, account *models.Account, t *models.Transaction) error {
	return m.adjust(tx, account, signedEffect(t.Type, t.Amount).Neg())
}

// ApplyUpdate applies exactly one of the four update cases based on which
// fields changed:
//
//  1. neither account nor amount changed: no balance effect
//  2. only account changed: reverse on old account, apply on new
//  3. only amount changed: apply the signed difference to the one account
//  4. both changed: reverse old amount on old account, apply new amount on new
func (m *Mutator) ApplyUpdate(tx *gorm.DB, cs ChangeSet, t *models.Transaction) error {
	switch {
	case !cs.MovesBalances():
		return nil

	case cs.AccountChanged && !cs.AmountChanged:
		if err := m.adjustByID(tx, cs.OldAccountID, signedEffect(t.Type, cs.OldAmount).Neg()); err != nil {
			return err
		}
		return m.adjustByID(tx, cs.NewAccountID, signedEffect(t.Type, cs.OldAmount))

	case cs.AmountChanged && !cs.AccountChanged:
		delta := signedEffect(t.Type, cs.NewAmount).Sub(signedEffect(t.Type, cs.OldAmount))
		return m.adjustByID(tx, cs.NewAccountID, delta)

	default: // both changed
		if err := m.adjustByID(tx, cs.OldAccountID, signedEffect(t.Type, cs.OldAmount).Neg()); err != nil {
			return err
		}
		return m.adjustByID(tx, cs.NewAccountID, signedEffect(t.Type, cs.NewAmount))
	}
}

// ApplyDebtCreate adds the transaction's effect, in the debt's currency, to
// the linked debt's balance.
func (m *Mutator) ApplyDebtCreate(ctx context.Context, tx *gorm.DB, t *models.Transaction, accountCurrency string) error {
	debt, err := m.fetchDebt(tx, *t.DebtID)
	if err != nil {
		return err
	}
	effect, err := m.debtEffect(ctx, t.Type, t.Amount, accountCurrency, t.ExecutedAt, debt.Currency)
	if err != nil {
		return err
	}
	return m.adjustDebt(ctx, tx, debt, effect)
}

// ApplyDebtDelete reverses the transaction's effect on the linked debt.
func (m *Mutator) ApplyDebtDelete(ctx context.Context, tx *gorm.DB, t *models.Transaction, accountCurrency string) error {
	debt, err := m.fetchDebt(tx, *t.DebtID)
	if err != nil {
		return err
	}
	effect, err := m.debtEffect(ctx, t.Type, t.Amount, accountCurrency, t.ExecutedAt, debt.Currency)
	if err != nil {
		return err
	}
	return m.adjustDebt(ctx, tx, debt, effect.Neg())
}

// ApplyDebtUpdate reverses the old effect (old amount, old date, old account
// currency) and applies the new one in a single balance adjustment.
func (m *Mutator) ApplyDebtUpdate(ctx context.Context, tx *gorm.DB, cs ChangeSet, t *models.Transaction, oldAccountCurrency, newAccountCurrency string) error {
	debt, err := m.fetchDebt(tx, *t.DebtID)
	if err != nil {
		return err
	}
	oldEffect, err := m.debtEffect(ctx, t.Type, cs.OldAmount, oldAccountCurrency, cs.OldExecutedAt, debt.Currency)
	if err != nil {
		return err
	}
	newEffect, err := m.debtEffect(ctx, t.Type, cs.NewAmount, newAccountCurrency, cs.NewExecutedAt, debt.Currency)
	if err != nil {
		return err
	}
	return m.adjustDebt(ctx, tx, debt, newEffect.Sub(oldEffect))
}

// debtEffect converts the amount into the debt's currency as of the given
// date and signs it: expense positive (owed grows), income negative (repaid).
func (m *Mutator) debtEffect(ctx context.Context, typ models.TransactionType, amount decimal.Decimal, accountCurrency string, at time.Time, debtCurrency string) (decimal.Decimal, error) {
	values, err := m.converter.Convert(ctx, amount, accountCurrency, &at)
	if err != nil {
		return decimal.Zero, err
	}

	converted := values.Get(debtCurrency)
	if typ == models.TransactionTypeExpense {
		return converted, nil
	}
	return converted.Neg(), nil
}

func (m *Mutator) adjust(tx *gorm.DB, account *models.Account, delta decimal.Decimal) error {
	account.Balance = account.Balance.Add(delta)
	if err := tx.Model(account).Update("balance", account.Balance).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (m *Mutator) adjustByID(tx *gorm.DB, accountID string, delta decimal.Decimal) error {
	var account models.Account
	if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrAccountNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return m.adjust(tx, &account, delta)
}

// adjustDebt moves the debt balance and refreshes its converted values,
// which always reflect the present-day value of the outstanding balance.
func (m *Mutator) adjustDebt(ctx context.Context, tx *gorm.DB, debt *models.Debt, delta decimal.Decimal) error {
	debt.Balance = debt.Balance.Add(delta)
	values, err := m.converter.Convert(ctx, debt.Balance, debt.Currency, nil)
	if err != nil {
		return err
	}
	debt.ConvertedValues = values

	if err := tx.Model(debt).Updates(map[string]interface{}{
		"balance":          debt.Balance,
		"converted_values": debt.ConvertedValues,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (m *Mutator) fetchDebt(tx *gorm.DB, debtID string) (*models.Debt, error) {
	var debt models.Debt
	if err := tx.First(&debt, "id = ?", debtID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrDebtNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &debt, nil
}
