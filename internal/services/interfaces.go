package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/denrolya/budget-api/internal/models"
	"github.com/denrolya/budget-api/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName, baseCurrency string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// AccountServicer defines the contract for account-related business logic.
// An account's currency is fixed at creation and its balance is read-only
// from the outside; balances move only through the ledger engine hooks.
type AccountServicer interface {
	CreateAccount(ctx context.Context, userID, name, description, currency string, initialBalance decimal.Decimal) (*models.Account, error)
	GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	UpdateAccount(userID, accountID string, name, description *string) (*models.Account, error)
	GetAccountLogEntries(userID, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.AccountLogEntry], error)
}

// CreateTransactionInput carries the user-supplied fields of a new
// transaction. ConvertedValues is deliberately absent: the engine always
// computes it.
type CreateTransactionInput struct {
	AccountID         string
	Type              models.TransactionType
	Amount            decimal.Decimal
	Note              string
	ExecutedAt        time.Time
	IsDraft           bool
	DebtID            *string
	OriginalExpenseID *string
}

// UpdateTransactionInput carries optional field updates; nil means unchanged.
type UpdateTransactionInput struct {
	AccountID  *string
	Amount     *decimal.Decimal
	Note       *string
	ExecutedAt *time.Time
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	Type      *models.TransactionType
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	WithDrafts bool
}

// TransactionServicer defines the contract for transaction-related business
// logic. Every mutation runs inside one database transaction and invokes the
// ledger orchestrator hook exactly once before that unit of work commits.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID string, in CreateTransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, in UpdateTransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	ImportTransactions(ctx context.Context, userID string, inputs []CreateTransactionInput) error
}

// DebtServicer defines the contract for debt-related business logic.
type DebtServicer interface {
	CreateDebt(userID, debtor, currency, note string) (*models.Debt, error)
	GetUserDebts(userID string, page pagination.PageRequest, includeClosed bool) (*pagination.PageResponse[models.Debt], error)
	GetDebtByID(userID, debtID string) (*models.Debt, error)
	CloseDebt(userID, debtID string) (*models.Debt, error)
	DeleteDebt(ctx context.Context, userID, debtID string) error
}
