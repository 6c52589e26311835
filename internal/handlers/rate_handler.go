package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/ledger"
)

// RateHandler exposes ad-hoc currency conversion backed by the engine's
// converter.
type RateHandler struct {
	converter *ledger.Converter
}

// NewRateHandler creates a new RateHandler
func NewRateHandler(converter *ledger.Converter) *RateHandler {
	return &RateHandler{converter: converter}
}

// Convert converts an amount from one currency into every supported currency.
// Query parameters: amount, from, and an optional date (YYYY-MM-DD) selecting
// the rates of that date's month.
func (h *RateHandler) Convert(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid amount"))
		return
	}

	from := strings.ToUpper(c.Query("from"))
	if from == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from currency is required"))
		return
	}

	var asOf *time.Time
	if v := c.Query("date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid date"))
			return
		}
		asOf = &t
	}

	values, err := h.converter.Convert(c.Request.Context(), amount, from, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"amount": amount,
		"from":   from,
		"values": values,
	})
}
