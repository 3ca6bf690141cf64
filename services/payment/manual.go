package payment

import (
	"context"
	"fmt"

	"ledgerpay/models"
	"ledgerpay/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordManual records money received outside the gateway and merges it immediately.
func (s *DefaultPaymentService) RecordManual(ctx context.Context, req models.ManualPaymentRequest, actor string) (*models.PaymentResult, error) {
	return s.recordCompleted(ctx, req, actor, nil)
}

// recordCompleted creates a completed payment under the invoice lock. decorate may add fields before the write.
func (s *DefaultPaymentService) recordCompleted(ctx context.Context, req models.ManualPaymentRequest, actor string, decorate func(*models.Payment)) (*models.PaymentResult, error) {
	if !models.ManualMethods[req.PaymentMethod] {
		return nil, utils.NewValidationError("unsupported payment method %q", req.PaymentMethod)
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	date := s.now()
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		date = *req.PaymentDate
	}
	p := &models.Payment{
		ID:              uuid.New().String(),
		InvoiceID:       req.InvoiceID,
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentCompleted,
		TransactionDate: date,
		Notes:           req.Notes,
		CreatedBy:       actor,
	}
	if decorate != nil {
		decorate(p)
	}

	inv, _, err := s.applier.Settle(ctx, req.InvoiceID, func(ctx context.Context, inv *models.Invoice) (*models.Payment, error) {
		if err := checkPayable(inv, req.Amount, ""); err != nil {
			return nil, err
		}
		p.Currency = s.currencyFor(inv)
		if err := s.repo.CreatePayment(ctx, p); err != nil {
			return nil, fmt.Errorf("record payment for invoice %s: %w", inv.ID, err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment: recorded",
		zap.String("paymentId", p.ID), zap.String("invoiceId", p.InvoiceID), zap.String("method", p.PaymentMethod),
		zap.String("amount", p.Amount.String()), zap.String("actor", actor))
	s.notifier.PaymentReceived(ctx, p.InvoiceID, p.Amount, p.PaymentMethod)
	return result(p, inv), nil
}
