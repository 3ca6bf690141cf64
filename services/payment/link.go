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

// RecordLinkPayment settles a payment submitted through an emailed link. The caller has already
// consumed the link token.
func (s *DefaultPaymentService) RecordLinkPayment(ctx context.Context, invoiceID string, req models.LinkPaymentRequest) (*models.PaymentResult, error) {
	ctx = context.WithoutCancel(ctx)
	if !req.IsGateway() {
		return s.recordCompleted(ctx, models.ManualPaymentRequest{
			InvoiceID:     invoiceID,
			Amount:        req.Amount,
			PaymentMethod: req.PaymentMethod,
			Notes:         req.Notes,
		}, LinkActor, func(p *models.Payment) {
			p.SetMeta(models.MetaSource, LinkActor)
		})
	}
	return s.recordLinkGateway(ctx, invoiceID, req)
}

func (s *DefaultPaymentService) recordLinkGateway(ctx context.Context, invoiceID string, req models.LinkPaymentRequest) (*models.PaymentResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, utils.NewValidationError("orderId, paymentId and signature are all required for gateway payments")
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if !VerifySignature(OrderSignatureMessage(req.OrderID, req.PaymentID), req.Signature, s.opts.APISecret) {
		s.logger.Warn("payment: link signature mismatch",
			zap.String("invoiceId", invoiceID), zap.String("orderId", req.OrderID),
			zap.String("receivedSignatureSha256", utils.HashToken(req.Signature)))
		return nil, utils.NewSignatureMismatchError()
	}

	stamp := func(p *models.Payment) {
		p.ExternalPaymentID = req.PaymentID
		p.ExternalSignature = req.Signature
		p.SetMeta(models.MetaSource, LinkActor)
	}

	fresh := false
	inv, settled, err := s.applier.Settle(ctx, invoiceID, func(ctx context.Context, inv *models.Invoice) (*models.Payment, error) {
		existing, err := s.repo.FindByExternalOrderID(ctx, req.OrderID)
		if err != nil && !errors.Is(err, ledgerRepo.ErrNotFound) {
			return nil, fmt.Errorf("find payment by order id %s: %w", req.OrderID, err)
		}

		if existing != nil {
			if existing.InvoiceID != inv.ID {
				return nil, utils.NewValidationError("order %s does not belong to invoice %s", req.OrderID, inv.ID)
			}
			switch existing.PaymentStatus {
			case models.PaymentCompleted:
				if inv.HasApplied(existing.ID) {
					return nil, utils.NewValidationError("payment for order %s is already recorded", req.OrderID)
				}
				return existing, nil
			case models.PaymentFailed, models.PaymentRefunded:
				return nil, utils.NewValidationError("payment for order %s is already %s", req.OrderID, existing.PaymentStatus)
			}
			if !existing.Amount.Equal(req.Amount) {
				return nil, utils.NewValidationError("amount %s does not match order amount %s", req.Amount.StringFixed(2), existing.Amount.StringFixed(2))
			}
			fresh = true
			return s.settleCapture(ctx, inv, existing, stamp)
		}

		// The amount of an unrecorded order cannot be confirmed against the gateway.
		return nil, utils.NewValidationError("no gateway order %s is recorded for invoice %s", req.OrderID, inv.ID)
	})
	if errors.Is(err, errSettled) {
		return nil, utils.NewInvoiceClosedError("already paid")
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment: link payment settled",
		zap.String("paymentId", settled.ID), zap.String("invoiceId", invoiceID), zap.String("orderId", req.OrderID))
	if fresh {
		s.notifier.PaymentReceived(ctx, invoiceID, settled.Amount, settled.PaymentMethod)
	}
	return result(settled, inv), nil
}
