package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	ledgerRepo "ledgerpay/database/repository/ledger"
	"ledgerpay/models"
	"ledgerpay/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettleFunc runs inside the invoice critical section against a freshly read invoice.
// It returns the payment whose amount must be merged, or nil to leave the totals alone.
// Any payment state change the merge depends on must be written from inside fn.
type SettleFunc func(ctx context.Context, inv *models.Invoice) (*models.Payment, error)

// Applier is the only component that writes invoice settlement fields.
type Applier struct {
	repo       ledgerRepo.LedgerRepository
	locker     Locker
	logger     *zap.Logger
	maxRetries int
	lockWait   time.Duration
}

func NewApplier(repo ledgerRepo.LedgerRepository, locker Locker, logger *zap.Logger, maxRetries int) *Applier {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Applier{
		repo:       repo,
		locker:     locker,
		logger:     logger,
		maxRetries: maxRetries,
		lockWait:   10 * time.Second,
	}
}

// Settle serializes fn and the resulting merge per invoice.
func (a *Applier) Settle(ctx context.Context, invoiceID string, fn SettleFunc) (*models.Invoice, *models.Payment, error) {
	// Once started, settlement runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	lockCtx, cancel := context.WithTimeout(ctx, a.lockWait)
	unlock, err := a.locker.Lock(lockCtx, invoiceID)
	cancel()
	if err != nil {
		a.logger.Error("reconcile: invoice lock unavailable", zap.String("invoiceId", invoiceID), zap.Error(err))
		return nil, nil, utils.NewInternalReconciliationError(invoiceID, err)
	}
	defer unlock()

	inv, err := a.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}

	p, err := fn(ctx, inv)
	if err != nil {
		return inv, nil, err
	}
	if p == nil {
		return inv, nil, nil
	}

	merged, err := a.merge(ctx, inv, p)
	if err != nil {
		return nil, p, err
	}
	return merged, p, nil
}

// Apply merges an already-completed payment into its invoice.
func (a *Applier) Apply(ctx context.Context, invoiceID string, p *models.Payment) (*models.Invoice, error) {
	if p.InvoiceID != invoiceID {
		return nil, utils.NewValidationError("payment %s does not belong to invoice %s", p.ID, invoiceID)
	}
	if p.PaymentStatus != models.PaymentCompleted {
		return nil, utils.NewValidationError("payment %s is not completed", p.ID)
	}
	inv, _, err := a.Settle(ctx, invoiceID, func(context.Context, *models.Invoice) (*models.Payment, error) {
		return p, nil
	})
	return inv, err
}

// Repair merges completed payments that never reached the invoice totals,
// e.g. after a crash between the payment write and the invoice write.
func (a *Applier) Repair(ctx context.Context, invoiceID string) (*models.Invoice, int, error) {
	repaired := 0
	var current *models.Invoice
	_, _, err := a.Settle(ctx, invoiceID, func(ctx context.Context, inv *models.Invoice) (*models.Payment, error) {
		current = inv
		payments, err := a.repo.ListByInvoice(ctx, invoiceID)
		if err != nil {
			return nil, fmt.Errorf("list payments for repair: %w", err)
		}
		// Oldest first so paymentMethod/paymentDate come from the earliest payment.
		for i := len(payments) - 1; i >= 0; i-- {
			p := payments[i]
			if p.PaymentStatus != models.PaymentCompleted || current.HasApplied(p.ID) {
				continue
			}
			merged, err := a.merge(ctx, current, &p)
			if err != nil {
				return nil, err
			}
			a.logger.Warn("reconcile: repaired unapplied payment",
				zap.String("invoiceId", invoiceID), zap.String("paymentId", p.ID), zap.String("amount", p.Amount.String()))
			current = merged
			repaired++
		}
		return nil, nil
	})
	if err != nil {
		return nil, repaired, err
	}
	return current, repaired, nil
}

func (a *Applier) loadInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	inv, err := a.repo.GetInvoice(ctx, invoiceID)
	if errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, utils.NewNotFoundError("invoice", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}
	return inv, nil
}

// merge writes Reconcile(inv, p) with a version check, reloading and retrying on conflict.
func (a *Applier) merge(ctx context.Context, inv *models.Invoice, p *models.Payment) (*models.Invoice, error) {
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		if inv.HasApplied(p.ID) {
			return inv, nil
		}

		next := Reconcile(*inv, p)
		err := a.repo.UpdateSettlement(ctx, &next, p.ID)
		if err == nil {
			a.logger.Info("reconcile: payment applied",
				zap.String("invoiceId", inv.ID),
				zap.String("paymentId", p.ID),
				zap.String("amount", p.Amount.String()),
				zap.String("paidAmount", next.PaidAmount.String()),
				zap.String("paymentStatus", next.PaymentStatus))
			return &next, nil
		}
		if !errors.Is(err, ledgerRepo.ErrVersionConflict) {
			a.logger.Error("reconcile: invoice write failed", zap.String("invoiceId", inv.ID), zap.String("paymentId", p.ID), zap.Error(err))
			return nil, utils.NewInternalReconciliationError(inv.ID, err)
		}

		a.logger.Warn("reconcile: invoice version conflict, retrying",
			zap.String("invoiceId", inv.ID), zap.Int("attempt", attempt))
		if inv, err = a.repo.GetInvoice(ctx, inv.ID); err != nil {
			return nil, utils.NewInternalReconciliationError(p.InvoiceID, err)
		}
	}

	a.logger.Error("reconcile: retries exhausted",
		zap.String("invoiceId", inv.ID), zap.String("paymentId", p.ID), zap.Int("maxRetries", a.maxRetries))
	return nil, utils.NewInternalReconciliationError(inv.ID, ledgerRepo.ErrVersionConflict)
}

// Reconcile returns inv with p's amount merged in. It does not persist anything.
func Reconcile(inv models.Invoice, p *models.Payment) models.Invoice {
	inv.AppliedPaymentIDs = append([]string(nil), inv.AppliedPaymentIDs...)

	newPaid := inv.PaidAmount.Add(p.Amount)
	inv.PaidAmount = newPaid
	inv.RemainingAmount = utils.MaxZero(inv.TotalAmount.Sub(newPaid))
	inv.PaymentStatus = DerivePaymentStatus(newPaid, inv.TotalAmount)
	if inv.PaymentStatus == models.InvoicePaymentPaid {
		inv.Status = models.InvoicePaid
	}

	if inv.PaymentMethod == "" {
		inv.PaymentMethod = p.PaymentMethod
	}
	if inv.PaymentDate == nil {
		date := p.TransactionDate
		if date.IsZero() {
			date = time.Now()
		}
		inv.PaymentDate = &date
	}
	return inv
}

// DerivePaymentStatus is the only source of an invoice's paymentStatus.
func DerivePaymentStatus(paid, total decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total):
		return models.InvoicePaymentPaid
	case paid.IsPositive():
		return models.InvoicePaymentPartial
	default:
		return models.InvoicePaymentPending
	}
}

// CapToRemaining splits a captured amount into the part the invoice can still absorb and the excess.
func CapToRemaining(inv *models.Invoice, amount decimal.Decimal) (applied, excess decimal.Decimal) {
	if amount.LessThanOrEqual(inv.RemainingAmount) {
		return amount, decimal.Zero
	}
	applied = utils.MaxZero(inv.RemainingAmount)
	return applied, amount.Sub(applied)
}
