package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/denrolya/budget-api/internal/models"
	"github.com/denrolya/budget-api/internal/testutil"
)

var (
	day1 = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
)

func logEntries(t *testing.T, db *gorm.DB, accountID string) []models.AccountLogEntry {
	t.Helper()

	var entries []models.AccountLogEntry
	if err := db.Where("account_id = ?", accountID).Order("created_at ASC").Find(&entries).Error; err != nil {
		t.Fatalf("failed to load log entries: %v", err)
	}
	return entries
}

// seedHistoryAccount creates a UAH account whose balance already reflects
// three transactions: +100 on day1, -30 on day2, +50 on day3.
func seedHistoryAccount(t *testing.T, db *gorm.DB) (*models.Account, []*models.Transaction) {
	t.Helper()

	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccountWithBalance(t, db, user.ID, "UAH", decimal.NewFromInt(120))
	transactions := []*models.Transaction{
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, decimal.NewFromInt(100), day1),
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, decimal.NewFromInt(30), day2),
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, decimal.NewFromInt(50), day3),
	}
	return account, transactions
}

func TestHistoryRebuilder_Rebuild(t *testing.T) {
	t.Run("writes_one_entry_per_instant_with_balance_before_effect", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rebuilder := NewHistoryRebuilder(NewConverter(testutil.NewStubRateSource(), testCurrencies))
		account, _ := seedHistoryAccount(t, db)

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day1, ""))

		entries := logEntries(t, db, account.ID)
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		testutil.AssertDecimalEqual(t, entries[0].Balance, "0", "balance before day1")
		testutil.AssertDecimalEqual(t, entries[1].Balance, "100", "balance before day2")
		testutil.AssertDecimalEqual(t, entries[2].Balance, "70", "balance before day3")

		// Walking the entries forward reproduces the account balance.
		testutil.AssertDecimalEqual(t, entries[2].Balance.Add(decimal.NewFromInt(50)), "120", "replayed final balance")

		// Entries carry converted values at their own date.
		testutil.AssertDecimalEqual(t, entries[1].ConvertedValues.Get("USD"), "4", "day2 entry USD value")
	})

	t.Run("rebuild_is_idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rebuilder := NewHistoryRebuilder(NewConverter(testutil.NewStubRateSource(), testCurrencies))
		account, _ := seedHistoryAccount(t, db)

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day1, ""))
		first := logEntries(t, db, account.ID)

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day1, ""))
		second := logEntries(t, db, account.ID)

		if len(first) != len(second) {
			t.Fatalf("expected %d entries after second rebuild, got %d", len(first), len(second))
		}
		for i := range first {
			if !first[i].Balance.Equal(second[i].Balance) {
				t.Errorf("entry %d: balance drifted from %s to %s", i, first[i].Balance, second[i].Balance)
			}
			if !first[i].CreatedAt.Equal(second[i].CreatedAt) {
				t.Errorf("entry %d: date drifted from %s to %s", i, first[i].CreatedAt, second[i].CreatedAt)
			}
		}
	})

	t.Run("partial_rebuild_keeps_earlier_entries", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rebuilder := NewHistoryRebuilder(NewConverter(testutil.NewStubRateSource(), testCurrencies))
		account, _ := seedHistoryAccount(t, db)

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day1, ""))
		before := logEntries(t, db, account.ID)

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day2, ""))
		after := logEntries(t, db, account.ID)

		if len(after) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(after))
		}
		if after[0].ID != before[0].ID {
			t.Error("entry before the affected date must survive untouched")
		}
		testutil.AssertDecimalEqual(t, after[1].Balance, "100", "rewritten day2 entry")
		testutil.AssertDecimalEqual(t, after[2].Balance, "70", "rewritten day3 entry")
	})

	t.Run("same_instant_transactions_share_one_entry", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rebuilder := NewHistoryRebuilder(NewConverter(testutil.NewStubRateSource(), testCurrencies))
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, "UAH", decimal.NewFromInt(70))
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, decimal.NewFromInt(100), day1)
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, decimal.NewFromInt(30), day1)

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day1, ""))

		entries := logEntries(t, db, account.ID)
		if len(entries) != 1 {
			t.Fatalf("expected a single entry for the shared instant, got %d", len(entries))
		}
		testutil.AssertDecimalEqual(t, entries[0].Balance, "0", "balance before the netted instant")
	})

	t.Run("excluded_transaction_is_replayed_away", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rebuilder := NewHistoryRebuilder(NewConverter(testutil.NewStubRateSource(), testCurrencies))
		account, transactions := seedHistoryAccount(t, db)

		// Simulate the day2 expense being deleted: its balance effect is
		// already reversed, the row just has not been canceled yet.
		account.Balance = decimal.NewFromInt(150)
		testutil.AssertNoError(t, db.Model(account).Update("balance", account.Balance).Error)

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day1, transactions[1].ID))

		entries := logEntries(t, db, account.ID)
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		testutil.AssertDecimalEqual(t, entries[0].Balance, "0", "balance before day1")
		testutil.AssertDecimalEqual(t, entries[1].Balance, "100", "balance before day3 without the deleted expense")
	})

	t.Run("canceled_and_draft_transactions_are_ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rebuilder := NewHistoryRebuilder(NewConverter(testutil.NewStubRateSource(), testCurrencies))
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, "UAH", decimal.NewFromInt(100))
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeIncome, decimal.NewFromInt(100), day1)

		canceled := testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, decimal.NewFromInt(40), day2)
		testutil.AssertNoError(t, db.Model(canceled).Update("canceled_at", time.Now()).Error)

		draft := testutil.CreateTestTransaction(t, db, user.ID, account.ID, models.TransactionTypeExpense, decimal.NewFromInt(10), day3)
		testutil.AssertNoError(t, db.Model(draft).Update("is_draft", true).Error)

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day1, ""))

		entries := logEntries(t, db, account.ID)
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		testutil.AssertDecimalEqual(t, entries[0].Balance, "0", "only the live income produces an entry")
	})

	t.Run("account_without_transactions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		rebuilder := NewHistoryRebuilder(NewConverter(testutil.NewStubRateSource(), testCurrencies))
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, "UAH")

		testutil.AssertNoError(t, rebuilder.Rebuild(context.Background(), db, account, day1, ""))

		if entries := logEntries(t, db, account.ID); len(entries) != 0 {
			t.Errorf("expected no entries, got %d", len(entries))
		}
	})

	t.Run("rate_failure_aborts_rebuild", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		source := testutil.NewStubRateSource()
		rebuilder := NewHistoryRebuilder(NewConverter(source, testCurrencies))
		account, _ := seedHistoryAccount(t, db)

		source.Err = context.DeadlineExceeded
		err := rebuilder.Rebuild(context.Background(), db, account, day1, "")
		testutil.AssertAppError(t, err, "HISTORY_REBUILD_FAILURE")
	})
}
