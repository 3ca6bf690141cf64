package payment

import (
	"context"
	"errors"
	"fmt"

	ledgerRepo "ledgerpay/database/repository/ledger"
	"ledgerpay/models"
	"ledgerpay/utils"

	"go.uber.org/zap"
)

func (s *DefaultPaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.loadPayment(ctx, paymentID)
}

// ListByInvoice returns the invoice's payment history, newest first.
func (s *DefaultPaymentService) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	if _, err := s.loadInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments for invoice %s: %w", invoiceID, err)
	}
	return payments, nil
}

// DeletePayment removes a payment record. It never reverses invoice totals: deleting a completed
// payment requires force and leaves a compensating entry to be booked separately.
func (s *DefaultPaymentService) DeletePayment(ctx context.Context, paymentID string, force bool, actor string) (*models.DeletePaymentResult, error) {
	ctx = context.WithoutCancel(ctx)
	p, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus == models.PaymentCompleted && !force {
		return nil, utils.NewValidationError("payment %s is completed; deleting it does not reverse the invoice, retry with force=true", paymentID)
	}

	res := &models.DeletePaymentResult{PaymentID: paymentID}
	_, _, err = s.applier.Settle(ctx, p.InvoiceID, func(ctx context.Context, _ *models.Invoice) (*models.Payment, error) {
		cur, err := s.loadPayment(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if cur.PaymentStatus == models.PaymentCompleted {
			if !force {
				return nil, utils.NewValidationError("payment %s completed concurrently, retry with force=true", paymentID)
			}
			res.CompensationRequired = true
			res.Warning = "invoice totals were not reversed; record a compensating entry"
		}
		if err := s.repo.DeletePayment(ctx, paymentID); err != nil {
			if errors.Is(err, ledgerRepo.ErrNotFound) {
				return nil, utils.NewNotFoundError("payment", paymentID)
			}
			return nil, fmt.Errorf("delete payment %s: %w", paymentID, err)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	res.Deleted = true

	log := s.logger.Info
	if res.CompensationRequired {
		log = s.logger.Warn
	}
	log("payment: deleted",
		zap.String("paymentId", paymentID), zap.String("invoiceId", p.InvoiceID),
		zap.String("status", p.PaymentStatus), zap.Bool("compensationRequired", res.CompensationRequired), zap.String("actor", actor))
	return res, nil
}

// Reconcile re-applies completed payments the invoice totals are missing.
func (s *DefaultPaymentService) Reconcile(ctx context.Context, invoiceID string) (*models.ReconcileResult, error) {
	inv, repaired, err := s.applier.Repair(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &models.ReconcileResult{Invoice: inv.Summary(), RepairedPayments: repaired}, nil
}
