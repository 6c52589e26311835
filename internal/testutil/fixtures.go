package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/denrolya/budget-api/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        email,
		Password:     string(hash),
		BaseCurrency: "UAH",
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates an account with zero balance in the given currency.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID, currency string) *models.Account {
	t.Helper()
	return CreateTestAccountWithBalance(t, db, userID, currency, decimal.Zero)
}

// CreateTestAccountWithBalance creates an account with the given balance.
func CreateTestAccountWithBalance(t *testing.T, db *gorm.DB, userID, currency string, balance decimal.Decimal) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Account %d", nextID()),
		Currency: currency,
		Balance:  balance,
		IsActive: true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestDebt creates an open debt with zero balance in the given currency.
func CreateTestDebt(t *testing.T, db *gorm.DB, userID, currency string) *models.Debt {
	t.Helper()

	debt := &models.Debt{
		UserID:   userID,
		Debtor:   fmt.Sprintf("Debtor %d", nextID()),
		Currency: currency,
		Balance:  decimal.Zero,
	}
	if err := db.Create(debt).Error; err != nil {
		t.Fatalf("failed to create test debt: %v", err)
	}
	return debt
}

// CreateTestTransaction persists a transaction row directly, bypassing the
// ledger engine. Useful for seeding state that a test then mutates.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, accountID string, typ models.TransactionType, amount decimal.Decimal, executedAt time.Time) *models.Transaction {
	t.Helper()

	transaction := &models.Transaction{
		UserID:     userID,
		AccountID:  accountID,
		Type:       typ,
		Amount:     amount,
		ExecutedAt: executedAt,
	}
	if err := db.Create(transaction).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return transaction
}
