package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/models"
)

// HistoryRebuilder maintains each account's append-only, time-ordered
// sequence of balance snapshots, and replays the tail of that sequence when
// an earlier transaction changes.
//
// Snapshot convention: a log entry at instant T stores the running balance
// immediately BEFORE the transactions executed at T take effect ("balance at
// start of day"). Walking the entries forward and applying each instant's
// netted effect reproduces the account's authoritative balance exactly; this
// is asserted by tests and must not drift per call site.
type HistoryRebuilder struct {
	converter *Converter
}

// NewHistoryRebuilder creates a history rebuilder backed by the given converter.
func NewHistoryRebuilder(converter *Converter) *HistoryRebuilder {
	return &HistoryRebuilder{converter: converter}
}

// instantGroup is the synthetic expense-typed carrier for all transactions
// sharing an exact execution instant: expenses contribute +amount, incomes
// contribute -amount, so its signed balance effect is -amount.
type instantGroup struct {
	at     time.Time
	amount decimal.Decimal
}

// Rebuild invalidates every log entry of the account dated at or after
// affectedDate and replays the account's non-canceled, non-draft
// transactions after the most recent remaining entry, writing one snapshot
// per distinct execution instant. excludeTransactionID names a transaction
// that is being removed in the current unit of work; it is skipped even
// though storage may still contain it.
//
// The rebuild is idempotent and atomic: it runs inside the caller's unit of
// work, so a failure at any step rolls back the invalidation as well and the
// original log entries survive untouched.
func (r *HistoryRebuilder) Rebuild(ctx context.Context, tx *gorm.DB, account *models.Account, affectedDate time.Time, excludeTransactionID string) error {
	// Entries strictly before affectedDate are unaffected and form the base.
	if err := tx.Where("account_id = ? AND created_at >= ?", account.ID, affectedDate).
		Delete(&models.AccountLogEntry{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrHistoryRebuildFailure, err)
	}

	var kept []models.AccountLogEntry
	if err := tx.Where("account_id = ?", account.ID).
		Order("created_at DESC").Limit(1).Find(&kept).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrHistoryRebuildFailure, err)
	}

	q := tx.Where("account_id = ? AND canceled_at IS NULL AND is_draft = ?", account.ID, false)
	if excludeTransactionID != "" {
		q = q.Where("id <> ?", excludeTransactionID)
	}
	if len(kept) > 0 {
		q = q.Where("executed_at > ?", kept[0].CreatedAt)
	}

	var transactions []models.Transaction
	if err := q.Order("executed_at ASC").Find(&transactions).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrHistoryRebuildFailure, err)
	}
	if len(transactions) == 0 {
		return nil
	}

	groups := netByInstant(transactions)

	// The account's balance already reflects every committed effect; the
	// balance before the replay window is that total minus the window's
	// combined effect. Each group's effect is -group.amount (expense carrier).
	running := account.Balance
	for _, g := range groups {
		running = running.Add(g.amount)
	}

	for _, g := range groups {
		values, err := r.converter.Convert(ctx, running, account.Currency, &g.at)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrHistoryRebuildFailure, err)
		}

		entry := models.AccountLogEntry{
			AccountID:       account.ID,
			Balance:         running,
			ConvertedValues: values,
			CreatedAt:       g.at,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrHistoryRebuildFailure, err)
		}

		running = running.Sub(g.amount)
	}

	return nil
}

// netByInstant collapses transactions sharing an exact execution instant
// into a single carrier, keeping one snapshot per distinct timestamp.
// Input must be sorted by executed_at ascending.
func netByInstant(transactions []models.Transaction) []instantGroup {
	groups := make([]instantGroup, 0, len(transactions))
	for i := range transactions {
		t := &transactions[i]
		signed := t.Amount
		if t.IsIncome() {
			signed = signed.Neg()
		}
		if n := len(groups); n > 0 && groups[n-1].at.Equal(t.ExecutedAt) {
			groups[n-1].amount = groups[n-1].amount.Add(signed)
			continue
		}
		groups = append(groups, instantGroup{at: t.ExecutedAt, amount: signed})
	}
	return groups
}
