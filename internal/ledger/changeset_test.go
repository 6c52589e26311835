package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/denrolya/budget-api/internal/models"
	"github.com/denrolya/budget-api/internal/testutil"
)

func TestDiff(t *testing.T) {
	base := &models.Transaction{
		Type:       models.TransactionTypeExpense,
		Amount:     decimal.NewFromInt(50),
		ExecutedAt: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
	}
	base.ID = "t-1"
	base.AccountID = "a-1"

	t.Run("no_changes", func(t *testing.T) {
		cs, err := Diff(SnapshotOf(base), base)
		testutil.AssertNoError(t, err)
		if cs.Any() {
			t.Error("expected empty change set")
		}
	})

	t.Run("amount_comparison_is_numeric", func(t *testing.T) {
		prev := SnapshotOf(base)
		cur := *base
		cur.Amount = decimal.RequireFromString("50.00")

		cs, err := Diff(prev, &cur)
		testutil.AssertNoError(t, err)
		if cs.AmountChanged {
			t.Error("50 and 50.00 are the same amount; expected no change")
		}
	})

	t.Run("detects_each_field", func(t *testing.T) {
		prev := SnapshotOf(base)
		cur := *base
		cur.AccountID = "a-2"
		cur.Amount = decimal.NewFromInt(75)
		cur.ExecutedAt = base.ExecutedAt.AddDate(0, 0, 3)

		cs, err := Diff(prev, &cur)
		testutil.AssertNoError(t, err)

		if !cs.AccountChanged || !cs.AmountChanged || !cs.ExecutionDateChanged {
			t.Errorf("expected all fields flagged, got %+v", cs)
		}
		if !cs.MovesBalances() {
			t.Error("account and amount changes must move balances")
		}
	})

	t.Run("date_only_change_does_not_move_balances", func(t *testing.T) {
		prev := SnapshotOf(base)
		cur := *base
		cur.ExecutedAt = base.ExecutedAt.AddDate(0, 0, -5)

		cs, err := Diff(prev, &cur)
		testutil.AssertNoError(t, err)

		if cs.MovesBalances() {
			t.Error("execution-date change alone must not move balances")
		}
		if !cs.EarliestAffectedDate().Equal(cur.ExecutedAt) {
			t.Errorf("earliest affected date must be the earlier of old/new, got %s", cs.EarliestAffectedDate())
		}
	})

	t.Run("date_moved_later_invalidates_from_old_date", func(t *testing.T) {
		prev := SnapshotOf(base)
		cur := *base
		cur.ExecutedAt = base.ExecutedAt.AddDate(0, 1, 0)

		cs, err := Diff(prev, &cur)
		testutil.AssertNoError(t, err)

		if !cs.EarliestAffectedDate().Equal(base.ExecutedAt) {
			t.Errorf("expected old date %s, got %s", base.ExecutedAt, cs.EarliestAffectedDate())
		}
	})

	t.Run("snapshot_of_different_transaction", func(t *testing.T) {
		prev := SnapshotOf(base)
		other := *base
		other.ID = "t-2"

		_, err := Diff(prev, &other)
		testutil.AssertAppError(t, err, "INCONSISTENT_CHANGE_SET")
	})
}
