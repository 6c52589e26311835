package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/logger"
	"github.com/denrolya/budget-api/internal/models"
)

// Mode selects how much consistency work a hook performs. It is passed per
// call so a bulk load can never leak disabled-consistency state into
// unrelated operations.
type Mode int

const (
	// ModeNormal runs the full consistency pipeline.
	ModeNormal Mode = iota
	// ModeBulkLoad skips the pipeline entirely; the loader is responsible
	// for supplying consistent balances, converted values, and history.
	ModeBulkLoad
)

// State names the stages of one orchestrated ledger mutation.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateConverting
	StateNetting
	StateBalancingAccounts
	StateBalancingDebt
	StateRebuildingHistory
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateConverting:
		return "converting"
	case StateNetting:
		return "netting"
	case StateBalancingAccounts:
		return "balancing_accounts"
	case StateBalancingDebt:
		return "balancing_debt"
	case StateRebuildingHistory:
		return "rebuilding_history"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Orchestrator is the entry point the persistence layer invokes on
// transaction create, update, and delete, inside one atomic unit of work.
// It sequences conversion, netting, balance mutation, and history rebuild in
// that order; any failure propagates up and the surrounding unit of work
// rolls back whole, leaving balances, converted values, and history entries
// exactly as they were.
type Orchestrator struct {
	converter *Converter
	netter    *Netter
	mutator   *Mutator
	rebuilder *HistoryRebuilder
	locks     *accountLocks
	log       *zap.SugaredLogger
}

// NewOrchestrator wires the engine components around one converter.
func NewOrchestrator(converter *Converter) *Orchestrator {
	return &Orchestrator{
		converter: converter,
		netter:    NewNetter(converter),
		mutator:   NewMutator(converter),
		rebuilder: NewHistoryRebuilder(converter),
		locks:     newAccountLocks(),
		log:       logger.Get(),
	}
}

// Converter exposes the engine's converter for reporting code.
func (o *Orchestrator) Converter() *Converter { return o.converter }

// TransactionCreated runs the create pipeline: convert, net (when the
// transaction participates in a compensation), balance the account and any
// linked debt, and rebuild history from the execution date.
func (o *Orchestrator) TransactionCreated(ctx context.Context, tx *gorm.DB, t *models.Transaction, mode Mode) error {
	if o.skip(t, mode, "create") {
		return nil
	}

	release := o.locks.acquire(t.AccountID)
	defer release()

	account, err := o.fetchAccount(tx, t.AccountID)
	if err != nil {
		return err
	}

	o.transition("create", t.ID, StateConverting)
	values, err := o.converter.Convert(ctx, t.Amount, account.Currency, &t.ExecutedAt)
	if err != nil {
		return err
	}
	t.ConvertedValues = values

	o.transition("create", t.ID, StateNetting)
	if err := o.net(ctx, tx, t, ""); err != nil {
		return err
	}
	if err := tx.Model(t).Update("converted_values", t.ConvertedValues).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	o.transition("create", t.ID, StateBalancingAccounts)
	if err := o.mutator.ApplyCreate(tx, account, t); err != nil {
		return err
	}

	if t.DebtID != nil {
		o.transition("create", t.ID, StateBalancingDebt)
		if err := o.mutator.ApplyDebtCreate(ctx, tx, t, account.Currency); err != nil {
			return err
		}
	}

	o.transition("create", t.ID, StateRebuildingHistory)
	if err := o.rebuilder.Rebuild(ctx, tx, account, t.ExecutedAt, ""); err != nil {
		return err
	}

	o.transition("create", t.ID, StateCommitted)
	return nil
}

// TransactionUpdated runs the update pipeline. prev is the explicit
// before-snapshot taken by the caller prior to applying changes; conversion
// and netting run only when account, amount, or execution date changed,
// balancing only when account or amount changed, and the history rebuild
// when any of the three changed.
func (o *Orchestrator) TransactionUpdated(ctx context.Context, tx *gorm.DB, prev Snapshot, t *models.Transaction, mode Mode) error {
	if o.skip(t, mode, "update") {
		return nil
	}

	o.transition("update", t.ID, StateAnalyzing)
	cs, err := Diff(prev, t)
	if err != nil {
		return err
	}
	if !cs.Any() {
		return nil
	}

	release := o.locks.acquire(cs.OldAccountID, cs.NewAccountID)
	defer release()

	account, err := o.fetchAccount(tx, t.AccountID)
	if err != nil {
		return err
	}
	oldAccount := account
	if cs.AccountChanged {
		if oldAccount, err = o.fetchAccount(tx, cs.OldAccountID); err != nil {
			return err
		}
	}

	o.transition("update", t.ID, StateConverting)
	values, err := o.converter.Convert(ctx, t.Amount, account.Currency, &t.ExecutedAt)
	if err != nil {
		return err
	}
	t.ConvertedValues = values

	o.transition("update", t.ID, StateNetting)
	if err := o.net(ctx, tx, t, ""); err != nil {
		return err
	}
	if err := tx.Model(t).Update("converted_values", t.ConvertedValues).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if cs.MovesBalances() {
		o.transition("update", t.ID, StateBalancingAccounts)
		if err := o.mutator.ApplyUpdate(tx, cs, t); err != nil {
			return err
		}

		if t.DebtID != nil {
			o.transition("update", t.ID, StateBalancingDebt)
			if err := o.mutator.ApplyDebtUpdate(ctx, tx, cs, t, oldAccount.Currency, account.Currency); err != nil {
				return err
			}
		}
	}

	o.transition("update", t.ID, StateRebuildingHistory)
	if cs.AccountChanged {
		// Balances moved above; refetch so the rebuild walks from the
		// post-mutation totals.
		if oldAccount, err = o.fetchAccount(tx, cs.OldAccountID); err != nil {
			return err
		}
		if account, err = o.fetchAccount(tx, cs.NewAccountID); err != nil {
			return err
		}
		if err := o.rebuilder.Rebuild(ctx, tx, oldAccount, cs.OldExecutedAt, ""); err != nil {
			return err
		}
		if err := o.rebuilder.Rebuild(ctx, tx, account, cs.NewExecutedAt, ""); err != nil {
			return err
		}
	} else {
		if account, err = o.fetchAccount(tx, t.AccountID); err != nil {
			return err
		}
		if err := o.rebuilder.Rebuild(ctx, tx, account, cs.EarliestAffectedDate(), ""); err != nil {
			return err
		}
	}

	o.transition("update", t.ID, StateCommitted)
	return nil
}

// TransactionDeleted runs the delete pipeline: reverse the account and debt
// effects and rebuild history excluding the transaction being removed. An
// already-canceled transaction has no remaining effect and is skipped.
func (o *Orchestrator) TransactionDeleted(ctx context.Context, tx *gorm.DB, t *models.Transaction, mode Mode) error {
	if o.skip(t, mode, "delete") {
		return nil
	}
	if t.IsCanceled() {
		o.log.Debugw("ledger hook skipped, transaction already canceled", "transaction", t.ID)
		return nil
	}

	release := o.locks.acquire(t.AccountID)
	defer release()

	account, err := o.fetchAccount(tx, t.AccountID)
	if err != nil {
		return err
	}

	// Removing a compensation restores the original expense's net value.
	if t.OriginalExpenseID != nil {
		o.transition("delete", t.ID, StateNetting)
		if err := o.renetOriginalExpense(ctx, tx, *t.OriginalExpenseID, t.ID); err != nil {
			return err
		}
	}

	o.transition("delete", t.ID, StateBalancingAccounts)
	if err := o.mutator.ApplyDelete(tx, account, t); err != nil {
		return err
	}

	if t.DebtID != nil {
		o.transition("delete", t.ID, StateBalancingDebt)
		if err := o.mutator.ApplyDebtDelete(ctx, tx, t, account.Currency); err != nil {
			return err
		}
	}

	o.transition("delete", t.ID, StateRebuildingHistory)
	if err := o.rebuilder.Rebuild(ctx, tx, account, t.ExecutedAt, t.ID); err != nil {
		return err
	}

	o.transition("delete", t.ID, StateCommitted)
	return nil
}

// net replaces an expense's converted values with its netted values when it
// has live compensations, and refreshes the original expense when the
// transaction itself is a compensating income.
func (o *Orchestrator) net(ctx context.Context, tx *gorm.DB, t *models.Transaction, excludeID string) error {
	if t.IsExpense() {
		var count int64
		q := tx.Model(&models.Transaction{}).
			Where("original_expense_id = ? AND canceled_at IS NULL", t.ID)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return nil
		}

		net, err := o.netter.NetValues(ctx, tx, t, excludeID)
		if err != nil {
			return err
		}
		t.ConvertedValues = net
		return nil
	}

	if t.IsIncome() && t.OriginalExpenseID != nil {
		return o.renetOriginalExpense(ctx, tx, *t.OriginalExpenseID, "")
	}
	return nil
}

// renetOriginalExpense recomputes and persists the net converted values of
// the expense a compensation points at.
func (o *Orchestrator) renetOriginalExpense(ctx context.Context, tx *gorm.DB, expenseID, excludeID string) error {
	var expense models.Transaction
	if err := tx.First(&expense, "id = ?", expenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTransactionNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	net, err := o.netter.NetValues(ctx, tx, &expense, excludeID)
	if err != nil {
		return err
	}

	if err := tx.Model(&expense).Update("converted_values", net).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (o *Orchestrator) skip(t *models.Transaction, mode Mode, op string) bool {
	if mode == ModeBulkLoad {
		o.log.Debugw("ledger hook skipped, bulk load", "op", op, "transaction", t.ID)
		return true
	}
	if t.IsDraft {
		o.log.Debugw("ledger hook skipped, draft", "op", op, "transaction", t.ID)
		return true
	}
	return false
}

func (o *Orchestrator) fetchAccount(tx *gorm.DB, accountID string) (*models.Account, error) {
	var account models.Account
	if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

func (o *Orchestrator) transition(op, transactionID string, s State) {
	o.log.Debugw("ledger state", "op", op, "transaction", transactionID, "state", s.String())
}
