package payment

import (
	"context"
	"errors"

	ledgerRepo "ledgerpay/database/repository/ledger"
	"ledgerpay/models"
	"ledgerpay/utils"

	"go.uber.org/zap"
)

// Verify confirms a checkout the client reports as successful.
func (s *DefaultPaymentService) Verify(ctx context.Context, req models.VerifyPaymentRequest) (*models.PaymentResult, error) {
	// Verification runs to completion once started.
	ctx = context.WithoutCancel(ctx)

	p, err := s.loadPayment(ctx, req.InternalPaymentID)
	if err != nil {
		return nil, err
	}
	if p.ExternalOrderID == "" || p.ExternalOrderID != req.OrderID {
		return nil, utils.NewValidationError("order %s does not belong to payment %s", req.OrderID, p.ID)
	}
	if p.PaymentStatus == models.PaymentFailed || p.PaymentStatus == models.PaymentRefunded {
		return nil, utils.NewValidationError("payment %s is already %s", p.ID, p.PaymentStatus)
	}

	message := OrderSignatureMessage(req.OrderID, req.PaymentID)
	if !VerifySignature(message, req.Signature, s.opts.APISecret) {
		return nil, s.rejectSignature(ctx, p, req)
	}

	inv, settled, err := s.applier.Settle(ctx, p.InvoiceID, func(ctx context.Context, inv *models.Invoice) (*models.Payment, error) {
		cur, err := s.loadPayment(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		switch cur.PaymentStatus {
		case models.PaymentCompleted:
			if inv.HasApplied(cur.ID) {
				return nil, nil
			}
			return cur, nil
		case models.PaymentFailed, models.PaymentRefunded:
			return nil, utils.NewValidationError("payment %s is already %s", cur.ID, cur.PaymentStatus)
		}

		return s.settleCapture(ctx, inv, cur, func(p *models.Payment) {
			p.ExternalPaymentID = req.PaymentID
			p.ExternalSignature = req.Signature
		})
	})
	if errors.Is(err, errSettled) {
		return nil, utils.NewInvoiceClosedError("already paid")
	}
	if err != nil {
		return nil, err
	}

	if settled == nil {
		// Already completed by an earlier verify or the webhook.
		cur, err := s.loadPayment(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return result(cur, inv), nil
	}

	s.logger.Info("payment: verified", zap.String("paymentId", settled.ID), zap.String("invoiceId", settled.InvoiceID))
	s.notifier.PaymentReceived(ctx, settled.InvoiceID, settled.Amount, settled.PaymentMethod)
	return result(settled, inv), nil
}

// rejectSignature fails a still-pending payment and records both signatures for audit.
func (s *DefaultPaymentService) rejectSignature(ctx context.Context, p *models.Payment, req models.VerifyPaymentRequest) error {
	expected := ComputeSignature(OrderSignatureMessage(req.OrderID, req.PaymentID), s.opts.APISecret)
	s.logger.Warn("payment: signature mismatch",
		zap.String("paymentId", p.ID),
		zap.String("orderId", req.OrderID),
		zap.String("receivedSignatureSha256", utils.HashToken(req.Signature)),
		zap.String("expectedSignatureSha256", utils.HashToken(expected)))

	if p.PaymentStatus == models.PaymentCompleted {
		return utils.NewSignatureMismatchError()
	}

	p.PaymentStatus = models.PaymentFailed
	p.SetMeta(models.MetaVerificationError, "signature mismatch")
	p.SetMeta(models.MetaReceivedSignature, req.Signature)
	p.SetMeta(models.MetaExpectedSignature, expected)
	err := s.repo.TransitionPayment(ctx, p, models.PaymentPending, models.PaymentProcessing)
	if err != nil && !errors.Is(err, ledgerRepo.ErrStatusConflict) {
		s.logger.Error("payment: could not mark payment failed", zap.String("paymentId", p.ID), zap.Error(err))
	}
	return utils.NewSignatureMismatchError()
}
