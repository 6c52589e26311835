package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/ledger"
	"github.com/denrolya/budget-api/internal/models"
	"github.com/denrolya/budget-api/internal/pagination"
)

// accountService handles account-related business logic. Account balances are
// never written here directly; the only way a balance moves is through the
// ledger engine reacting to transaction mutations.
type accountService struct {
	db     *gorm.DB
	engine *ledger.Orchestrator
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB, engine *ledger.Orchestrator) AccountServicer {
	return &accountService{db: db, engine: engine}
}

// CreateAccount creates a new account for a user. The currency is fixed for
// the lifetime of the account. A non-zero initial balance is recorded as a
// regular income transaction so the ledger engine establishes the balance and
// the first history entry.
func (s *accountService) CreateAccount(ctx context.Context, userID, name, description, currency string, initialBalance decimal.Decimal) (*models.Account, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if initialBalance.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "initial balance cannot be negative")
	}

	currency = strings.ToUpper(currency)
	if !s.engine.Converter().Supports(currency) {
		return nil, apperrors.ErrUnsupportedCurrency
	}

	account := &models.Account{
		UserID:      userID,
		Name:        name,
		Description: description,
		Currency:    currency,
		Balance:     decimal.Zero,
		IsActive:    true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if initialBalance.IsPositive() {
			transaction := &models.Transaction{
				UserID:     userID,
				AccountID:  account.ID,
				Type:       models.TransactionTypeIncome,
				Amount:     initialBalance,
				Note:       "Initial balance",
				ExecutedAt: time.Now(),
			}
			if err := tx.Create(transaction).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := s.engine.TransactionCreated(ctx, tx, transaction, ledger.ModeNormal); err != nil {
				return err
			}
			account.Balance = initialBalance
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetUserAccounts retrieves a paginated list of accounts for a user.
func (s *accountService) GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Account{}).Where("user_id = ? AND is_active = ?", userID, true)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountByID retrieves an account by ID for a specific user
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ? AND user_id = ? AND is_active = ?", accountID, userID, true).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// UpdateAccount updates the mutable fields of an account: name and
// description. Currency and balance are not updatable.
func (s *accountService) UpdateAccount(userID, accountID string, name, description *string) (*models.Account, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name != nil {
		if *name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
		}
		updates["name"] = *name
		account.Name = *name
	}
	if description != nil {
		updates["description"] = *description
		account.Description = *description
	}

	if len(updates) == 0 {
		return account, nil
	}

	if err := s.db.Model(account).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return account, nil
}

// GetAccountLogEntries retrieves the account's balance history, oldest first.
func (s *accountService) GetAccountLogEntries(userID, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.AccountLogEntry], error) {
	if _, err := s.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}

	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.AccountLogEntry{}).Where("account_id = ?", accountID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var entries []models.AccountLogEntry
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}
