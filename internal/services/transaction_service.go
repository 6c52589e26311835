package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/ledger"
	"github.com/denrolya/budget-api/internal/models"
	"github.com/denrolya/budget-api/internal/pagination"
)

// transactionService handles transaction-related business logic. Every
// mutation runs inside one database transaction and fires the ledger engine
// hook exactly once; if the engine fails, the whole unit of work rolls back
// and nothing is persisted.
type transactionService struct {
	db             *gorm.DB
	accountService AccountServicer
	engine         *ledger.Orchestrator
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, accountService AccountServicer, engine *ledger.Orchestrator) TransactionServicer {
	return &transactionService{
		db:             db,
		accountService: accountService,
		engine:         engine,
	}
}

// CreateTransaction creates a new transaction for a user's account
func (s *transactionService) CreateTransaction(ctx context.Context, userID string, in CreateTransactionInput) (*models.Transaction, error) {
	transaction, err := s.buildTransaction(userID, in)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.engine.TransactionCreated(ctx, tx, transaction, ledger.ModeNormal)
	})
	if err != nil {
		return nil, err
	}

	return transaction, nil
}

// buildTransaction validates the input and assembles an unsaved transaction.
func (s *transactionService) buildTransaction(userID string, in CreateTransactionInput) (*models.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if !in.Type.Valid() {
		return nil, apperrors.ErrInvalidTransactionType
	}
	if in.AccountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}
	if in.ExecutedAt.IsZero() {
		in.ExecutedAt = time.Now()
	}

	if _, err := s.accountService.GetAccountByID(userID, in.AccountID); err != nil {
		return nil, err
	}

	if in.OriginalExpenseID != nil {
		if in.Type != models.TransactionTypeIncome {
			return nil, apperrors.ErrInvalidCompensation
		}
		original, err := s.GetTransactionByID(userID, *in.OriginalExpenseID)
		if err != nil {
			return nil, err
		}
		if !original.IsExpense() {
			return nil, apperrors.ErrInvalidCompensation
		}
		if original.IsCanceled() {
			return nil, apperrors.ErrTransactionCanceled
		}
	}

	if in.DebtID != nil {
		var debt models.Debt
		if err := s.db.Where("id = ? AND user_id = ?", *in.DebtID, userID).First(&debt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrDebtNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if debt.IsClosed() {
			return nil, apperrors.ErrDebtClosed
		}
	}

	return &models.Transaction{
		UserID:            userID,
		AccountID:         in.AccountID,
		DebtID:            in.DebtID,
		Type:              in.Type,
		Amount:            in.Amount,
		Note:              in.Note,
		ExecutedAt:        in.ExecutedAt,
		IsDraft:           in.IsDraft,
		OriginalExpenseID: in.OriginalExpenseID,
	}, nil
}

// UpdateTransaction applies field updates to a transaction. A snapshot of the
// persisted state is taken before the fields change so the engine can work
// out exactly which aspects moved.
func (s *transactionService) UpdateTransaction(ctx context.Context, userID, transactionID string, in UpdateTransactionInput) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.IsCanceled() {
		return nil, apperrors.ErrTransactionCanceled
	}

	prev := ledger.SnapshotOf(transaction)

	updates := map[string]any{}
	if in.AccountID != nil && *in.AccountID != transaction.AccountID {
		if _, err := s.accountService.GetAccountByID(userID, *in.AccountID); err != nil {
			return nil, err
		}
		updates["account_id"] = *in.AccountID
		transaction.AccountID = *in.AccountID
	}
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *in.Amount
		transaction.Amount = *in.Amount
	}
	if in.ExecutedAt != nil {
		updates["executed_at"] = *in.ExecutedAt
		transaction.ExecutedAt = *in.ExecutedAt
	}
	if in.Note != nil {
		updates["note"] = *in.Note
		transaction.Note = *in.Note
	}

	if len(updates) == 0 {
		return transaction, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(transaction).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.engine.TransactionUpdated(ctx, tx, prev, transaction, ledger.ModeNormal)
	})
	if err != nil {
		return nil, err
	}

	return transaction, nil
}

// DeleteTransaction cancels a transaction. The row is kept with canceled_at
// set so compensation links and audit trails stay intact; the engine reverses
// its balance effects and replays history without it first.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}
	if transaction.IsCanceled() {
		return apperrors.ErrTransactionCanceled
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.engine.TransactionDeleted(ctx, tx, transaction, ledger.ModeNormal); err != nil {
			return err
		}
		if err := tx.Model(transaction).Update("canceled_at", time.Now()).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// GetAccountTransactions retrieves a paginated, filtered list of transactions for a specific account.
func (s *transactionService) GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	// First verify the account belongs to the user
	if _, err := s.accountService.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}

	base := s.db.Model(&models.Transaction{}).Where("user_id = ? AND account_id = ?", userID, accountID)
	return s.listTransactions(base, page, filter)
}

// GetUserTransactions retrieves a paginated, filtered list of transactions across all of a user's accounts.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	return s.listTransactions(base, page, filter)
}

func (s *transactionService) listTransactions(base *gorm.DB, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("executed_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	q = q.Where("canceled_at IS NULL")
	if !f.WithDrafts {
		q = q.Where("is_draft = ?", false)
	}
	if f.FromDate != nil {
		q = q.Where("executed_at >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("executed_at <= ?", *f.ToDate)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	return q
}

// ImportTransactions loads a batch of pre-reconciled transactions in one unit
// of work. The ledger engine is invoked in bulk-load mode, which skips
// conversion, netting, balancing, and history rebuilds entirely: the caller
// owns consistency of imported data.
func (s *transactionService) ImportTransactions(ctx context.Context, userID string, inputs []CreateTransactionInput) error {
	if len(inputs) == 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "nothing to import")
	}

	transactions := make([]*models.Transaction, 0, len(inputs))
	for _, in := range inputs {
		t, err := s.buildTransaction(userID, in)
		if err != nil {
			return err
		}
		transactions = append(transactions, t)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, t := range transactions {
			if err := tx.Create(t).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := s.engine.TransactionCreated(ctx, tx, t, ledger.ModeBulkLoad); err != nil {
				return err
			}
		}
		return nil
	})
}
