package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/denrolya/budget-api/internal/models"
	"github.com/denrolya/budget-api/internal/pagination"
	"github.com/denrolya/budget-api/internal/testutil"
)

func TestCreateDebt(t *testing.T) {
	t.Run("creates_open_debt", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewDebtService(db, newTestEngine())
		user := testutil.CreateTestUser(t, db)

		debt, err := svc.CreateDebt(user.ID, "Alex", "eur", "lunch money")
		testutil.AssertNoError(t, err)

		if debt.Currency != "EUR" {
			t.Errorf("expected normalized currency EUR, got %q", debt.Currency)
		}
		if debt.IsClosed() {
			t.Error("new debt must be open")
		}
		testutil.AssertDecimalEqual(t, debt.Balance, "0", "new debt balance")
	})

	t.Run("missing_debtor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewDebtService(db, newTestEngine())
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateDebt(user.ID, "", "EUR", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unsupported_currency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewDebtService(db, newTestEngine())
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateDebt(user.ID, "Alex", "XAU", "")
		testutil.AssertAppError(t, err, "UNSUPPORTED_CURRENCY")
	})
}

func TestCloseDebt(t *testing.T) {
	t.Run("closes_once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewDebtService(db, newTestEngine())
		user := testutil.CreateTestUser(t, db)

		debt, err := svc.CreateDebt(user.ID, "Alex", "EUR", "")
		testutil.AssertNoError(t, err)

		closed, err := svc.CloseDebt(user.ID, debt.ID)
		testutil.AssertNoError(t, err)
		if !closed.IsClosed() {
			t.Error("expected the debt to be closed")
		}

		_, err = svc.CloseDebt(user.ID, debt.ID)
		testutil.AssertAppError(t, err, "DEBT_CLOSED")
	})

	t.Run("closed_debts_hidden_by_default", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewDebtService(db, newTestEngine())
		user := testutil.CreateTestUser(t, db)

		open, err := svc.CreateDebt(user.ID, "Alex", "EUR", "")
		testutil.AssertNoError(t, err)
		closed, err := svc.CreateDebt(user.ID, "Bob", "EUR", "")
		testutil.AssertNoError(t, err)
		_, err = svc.CloseDebt(user.ID, closed.ID)
		testutil.AssertNoError(t, err)

		page, err := svc.GetUserDebts(user.ID, pagination.PageRequest{}, false)
		testutil.AssertNoError(t, err)
		if len(page.Data) != 1 || page.Data[0].ID != open.ID {
			t.Errorf("expected only the open debt, got %d debts", len(page.Data))
		}

		all, err := svc.GetUserDebts(user.ID, pagination.PageRequest{}, true)
		testutil.AssertNoError(t, err)
		if len(all.Data) != 2 {
			t.Errorf("expected both debts with include_closed, got %d", len(all.Data))
		}
	})
}

func TestDeleteDebt(t *testing.T) {
	t.Run("cancels_linked_transactions_and_restores_balances", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		engine := newTestEngine()
		acctSvc := NewAccountService(db, engine)
		txSvc := NewTransactionService(db, acctSvc, engine)
		debtSvc := NewDebtService(db, engine)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, "UAH")

		debt, err := debtSvc.CreateDebt(user.ID, "Alex", "EUR", "")
		testutil.AssertNoError(t, err)

		linked, err := txSvc.CreateTransaction(context.Background(), user.ID, CreateTransactionInput{
			AccountID:  account.ID,
			Type:       models.TransactionTypeExpense,
			Amount:     decimal.NewFromInt(30),
			ExecutedAt: testDate,
			DebtID:     &debt.ID,
		})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, debtSvc.DeleteDebt(context.Background(), user.ID, debt.ID))

		// The linked transaction is canceled, its balance effect reversed.
		stored, err := txSvc.GetTransactionByID(user.ID, linked.ID)
		testutil.AssertNoError(t, err)
		if !stored.IsCanceled() {
			t.Error("expected the linked transaction to be canceled")
		}

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, updated.Balance, "0", "account balance restored")

		_, err = debtSvc.GetDebtByID(user.ID, debt.ID)
		testutil.AssertAppError(t, err, "DEBT_NOT_FOUND")
	})
}
