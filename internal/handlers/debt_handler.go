package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/services"
)

// DebtHandler handles debt-related requests
type DebtHandler struct {
	debtService services.DebtServicer
}

// NewDebtHandler creates a new DebtHandler
func NewDebtHandler(debtService services.DebtServicer) *DebtHandler {
	return &DebtHandler{debtService: debtService}
}

// CreateDebtRequest represents the debt creation payload.
type CreateDebtRequest struct {
	Debtor   string `json:"debtor" binding:"required,max=100"`
	Currency string `json:"currency" binding:"required,iso4217"`
	Note     string `json:"note" binding:"max=500"`
}

// CreateDebt opens a new debt
func (h *DebtHandler) CreateDebt(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	debt, err := h.debtService.CreateDebt(userID, req.Debtor, req.Currency, req.Note)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"debt": debt})
}

// ListDebts returns the user's debts
func (h *DebtHandler) ListDebts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	includeClosed := c.Query("include_closed") == "true"
	debts, err := h.debtService.GetUserDebts(userID, parsePageRequest(c), includeClosed)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, debts)
}

// GetDebt returns a single debt
func (h *DebtHandler) GetDebt(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	debtID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	debt, err := h.debtService.GetDebtByID(userID, debtID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"debt": debt})
}

// CloseDebt marks a debt as settled
func (h *DebtHandler) CloseDebt(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	debtID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	debt, err := h.debtService.CloseDebt(userID, debtID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"debt": debt})
}

// DeleteDebt removes a debt and cancels its linked transactions
func (h *DebtHandler) DeleteDebt(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	debtID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.debtService.DeleteDebt(c.Request.Context(), userID, debtID); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
