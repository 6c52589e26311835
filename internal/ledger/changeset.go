package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/models"
)

// Snapshot captures the balance-relevant fields of a transaction before an
// update. The service layer takes it explicitly prior to applying changes;
// the engine never reaches into ambient change tracking.
type Snapshot struct {
	ID         string
	AccountID  string
	Amount     decimal.Decimal
	ExecutedAt time.Time
}

// SnapshotOf captures the current balance-relevant state of a transaction.
func SnapshotOf(t *models.Transaction) Snapshot {
	return Snapshot{
		ID:         t.ID,
		AccountID:  t.AccountID,
		Amount:     t.Amount,
		ExecutedAt: t.ExecutedAt,
	}
}

// ChangeSet describes which balance-relevant fields changed between a
// transaction's previous and new state.
type ChangeSet struct {
	AccountChanged       bool
	AmountChanged        bool
	ExecutionDateChanged bool

	OldAccountID string
	NewAccountID string

	OldAmount decimal.Decimal
	NewAmount decimal.Decimal

	OldExecutedAt time.Time
	NewExecutedAt time.Time
}

// Any reports whether any balance-relevant field changed.
func (cs ChangeSet) Any() bool {
	return cs.AccountChanged || cs.AmountChanged || cs.ExecutionDateChanged
}

// MovesBalances reports whether the update requires balance mutation.
// Execution-date changes alone never move balances; only the transaction's
// position in history moves.
func (cs ChangeSet) MovesBalances() bool {
	return cs.AccountChanged || cs.AmountChanged
}

// EarliestAffectedDate returns the earlier of the old and new execution
// dates; history entries at or after it may be stale.
func (cs ChangeSet) EarliestAffectedDate() time.Time {
	if cs.OldExecutedAt.Before(cs.NewExecutedAt) {
		return cs.OldExecutedAt
	}
	return cs.NewExecutedAt
}

// Diff compares a previous snapshot against the transaction's current state.
// Amount comparison is numeric: two representations of the same value are not
// a change. A snapshot taken from a different entity is a programmer error
// and yields ErrInconsistentChangeSet.
func Diff(prev Snapshot, cur *models.Transaction) (ChangeSet, error) {
	if prev.ID != cur.ID {
		return ChangeSet{}, apperrors.WithMessage(apperrors.ErrInconsistentChangeSet,
			"snapshot belongs to a different transaction")
	}

	return ChangeSet{
		AccountChanged:       prev.AccountID != cur.AccountID,
		AmountChanged:        !prev.Amount.Equal(cur.Amount),
		ExecutionDateChanged: !prev.ExecutedAt.Equal(cur.ExecutedAt),
		OldAccountID:         prev.AccountID,
		NewAccountID:         cur.AccountID,
		OldAmount:            prev.Amount,
		NewAmount:            cur.Amount,
		OldExecutedAt:        prev.ExecutedAt,
		NewExecutedAt:        cur.ExecutedAt,
	}, nil
}
