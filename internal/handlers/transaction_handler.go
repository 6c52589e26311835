package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/models"
	"github.com/denrolya/budget-api/internal/services"
)

// TransactionHandler handles transaction-related requests
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// CreateTransactionRequest represents the transaction creation payload.
// Setting original_expense_id marks the transaction as a compensation of that
// expense; it must be an income.
type CreateTransactionRequest struct {
	AccountID         string          `json:"account_id" binding:"required,uuid"`
	Type              string          `json:"type" binding:"required,transaction_type"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Note              string          `json:"note" binding:"max=500"`
	ExecutedAt        *time.Time      `json:"executed_at"`
	IsDraft           bool            `json:"is_draft"`
	DebtID            *string         `json:"debt_id" binding:"omitempty,uuid"`
	OriginalExpenseID *string         `json:"original_expense_id" binding:"omitempty,uuid"`
}

// UpdateTransactionRequest represents the transaction update payload.
// Absent fields are left unchanged.
type UpdateTransactionRequest struct {
	AccountID  *string          `json:"account_id" binding:"omitempty,uuid"`
	Amount     *decimal.Decimal `json:"amount"`
	Note       *string          `json:"note" binding:"omitempty,max=500"`
	ExecutedAt *time.Time       `json:"executed_at"`
}

// ImportTransactionsRequest represents a bulk-load payload.
type ImportTransactionsRequest struct {
	Transactions []CreateTransactionRequest `json:"transactions" binding:"required,min=1,dive"`
}

func (r CreateTransactionRequest) toInput() services.CreateTransactionInput {
	in := services.CreateTransactionInput{
		AccountID:         r.AccountID,
		Type:              models.TransactionType(r.Type),
		Amount:            r.Amount,
		Note:              r.Note,
		IsDraft:           r.IsDraft,
		DebtID:            r.DebtID,
		OriginalExpenseID: r.OriginalExpenseID,
	}
	if r.ExecutedAt != nil {
		in.ExecutedAt = *r.ExecutedAt
	}
	return in
}

// CreateTransaction handles transaction creation
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.CreateTransaction(c.Request.Context(), userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// UpdateTransaction handles transaction updates
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.UpdateTransaction(c.Request.Context(), userID, transactionID, services.UpdateTransactionInput{
		AccountID:  req.AccountID,
		Amount:     req.Amount,
		Note:       req.Note,
		ExecutedAt: req.ExecutedAt,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction cancels a transaction
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(c.Request.Context(), userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetTransaction returns a single transaction
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// ListTransactions returns the user's transactions, optionally filtered.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactions, err := h.transactionService.GetUserTransactions(userID, parsePageRequest(c), filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, transactions)
}

// ListAccountTransactions returns an account's transactions.
func (h *TransactionHandler) ListAccountTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactions, err := h.transactionService.GetAccountTransactions(userID, accountID, parsePageRequest(c), filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, transactions)
}

// ImportTransactions bulk-loads transactions without running the consistency
// pipeline.
func (h *TransactionHandler) ImportTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ImportTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inputs := make([]services.CreateTransactionInput, 0, len(req.Transactions))
	for _, r := range req.Transactions {
		inputs = append(inputs, r.toInput())
	}

	if err := h.transactionService.ImportTransactions(c.Request.Context(), userID, inputs); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"imported": len(inputs)})
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid from date")
		}
		filter.FromDate = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid to date")
		}
		filter.ToDate = &t
	}
	if v := c.Query("type"); v != "" {
		typ := models.TransactionType(v)
		if !typ.Valid() {
			return filter, apperrors.ErrInvalidTransactionType
		}
		filter.Type = &typ
	}
	if v := c.Query("min_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid min_amount")
		}
		filter.MinAmount = &d
	}
	if v := c.Query("max_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid max_amount")
		}
		filter.MaxAmount = &d
	}
	filter.WithDrafts = c.Query("with_drafts") == "true"

	return filter, nil
}
