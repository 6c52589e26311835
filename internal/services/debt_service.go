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

// debtService handles debt-related business logic. A debt's balance is
// maintained by the ledger engine: transactions linked to the debt move it in
// the debt's own currency using the rate of their execution date.
type debtService struct {
	db     *gorm.DB
	engine *ledger.Orchestrator
}

// NewDebtService creates a new DebtServicer.
func NewDebtService(db *gorm.DB, engine *ledger.Orchestrator) DebtServicer {
	return &debtService{db: db, engine: engine}
}

// CreateDebt opens a new debt for a user.
func (s *debtService) CreateDebt(userID, debtor, currency, note string) (*models.Debt, error) {
	if debtor == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "debtor is required")
	}

	currency = strings.ToUpper(currency)
	if !s.engine.Converter().Supports(currency) {
		return nil, apperrors.ErrUnsupportedCurrency
	}

	debt := &models.Debt{
		UserID:   userID,
		Debtor:   debtor,
		Currency: currency,
		Balance:  decimal.Zero,
		Note:     note,
	}

	if err := s.db.Create(debt).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return debt, nil
}

// GetUserDebts retrieves a paginated list of debts for a user. Closed debts
// are excluded unless requested.
func (s *debtService) GetUserDebts(userID string, page pagination.PageRequest, includeClosed bool) (*pagination.PageResponse[models.Debt], error) {
	page.Defaults()

	base := s.db.Model(&models.Debt{}).Where("user_id = ?", userID)
	if !includeClosed {
		base = base.Where("closed_at IS NULL")
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var debts []models.Debt
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at ASC").Find(&debts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(debts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetDebtByID retrieves a debt by ID for a specific user.
func (s *debtService) GetDebtByID(userID, debtID string) (*models.Debt, error) {
	var debt models.Debt
	if err := s.db.Where("id = ? AND user_id = ?", debtID, userID).First(&debt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrDebtNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &debt, nil
}

// CloseDebt marks a debt as settled. Closed debts no longer accept linked
// transactions; existing ones keep their history.
func (s *debtService) CloseDebt(userID, debtID string) (*models.Debt, error) {
	debt, err := s.GetDebtByID(userID, debtID)
	if err != nil {
		return nil, err
	}
	if debt.IsClosed() {
		return nil, apperrors.ErrDebtClosed
	}

	now := time.Now()
	debt.ClosedAt = &now
	if err := s.db.Model(debt).Update("closed_at", now).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return debt, nil
}

// DeleteDebt removes a debt together with its linked transactions. Each
// linked transaction is canceled through the ledger engine so account
// balances and history are unwound one by one; then the debt itself is
// soft-deleted. All of it happens in one unit of work.
func (s *debtService) DeleteDebt(ctx context.Context, userID, debtID string) error {
	debt, err := s.GetDebtByID(userID, debtID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var linked []models.Transaction
		if err := tx.Where("debt_id = ? AND canceled_at IS NULL", debt.ID).
			Order("executed_at ASC").Find(&linked).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		now := time.Now()
		for i := range linked {
			t := &linked[i]
			if err := s.engine.TransactionDeleted(ctx, tx, t, ledger.ModeNormal); err != nil {
				return err
			}
			if err := tx.Model(t).Update("canceled_at", now).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		if err := tx.Delete(debt).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}
