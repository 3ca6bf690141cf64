package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ledgerRepo "ledgerpay/database/repository/ledger"
	"ledgerpay/models"
	"ledgerpay/utils"

	"go.uber.org/zap"
)

// Gateway webhook events.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// Audit actions recorded on metadata.webhookEvents.
const (
	actionApplied       = "applied"
	actionDuplicate     = "duplicate"
	actionIgnored       = "ignored_terminal"
	actionFailed        = "failed"
	actionAttemptFailed = "attempt_failed"
	actionSettled       = "rejected_settled"
	actionUnhandled     = "unhandled"
	actionRecovered     = "applied_after_verify_failure"
	actionAmountChanged = "amount_mismatch"
)

type webhookEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type entityEnvelope struct {
	Entity webhookEntity `json:"entity"`
}

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *entityEnvelope `json:"payment"`
		Order   *entityEnvelope `json:"order"`
		// Flat form: {"payload": {"entity": {...}}}.
		Entity *webhookEntity `json:"entity"`
	} `json:"payload"`
}

func (w *webhookPayload) payment() webhookEntity {
	switch {
	case w.Payload.Payment != nil:
		return w.Payload.Payment.Entity
	case w.Payload.Entity != nil:
		return *w.Payload.Entity
	}
	return webhookEntity{}
}

func (w *webhookPayload) order() webhookEntity {
	if w.Payload.Order != nil {
		return w.Payload.Order.Entity
	}
	return webhookEntity{}
}

// ProcessWebhook authenticates rawBody and applies the event. Only a WebhookAuth error means
// the delivery was rejected; any other error is an internal failure after acceptance.
func (s *DefaultPaymentService) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) error {
	ctx = context.WithoutCancel(ctx)

	if signature == "" {
		s.logger.Warn("webhook: missing signature header", zap.String("bodySha256", bodyDigest(rawBody)))
		return utils.NewWebhookAuthError(errors.New("missing signature"))
	}
	if !VerifySignature(string(rawBody), signature, s.opts.WebhookSecret) {
		s.logger.Warn("webhook: signature mismatch",
			zap.String("bodySha256", bodyDigest(rawBody)),
			zap.String("signatureSha256", utils.HashToken(signature)))
		return utils.NewWebhookAuthError(errors.New("signature mismatch"))
	}

	var evt webhookPayload
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return utils.NewValidationError("malformed webhook body: %v", err)
	}

	log := s.logger.With(zap.String("event", evt.Event))
	switch evt.Event {
	case EventPaymentCaptured:
		ent := evt.payment()
		p, err := s.lookupPayment(ctx, ent.ID, ent.OrderID)
		if err != nil || p == nil {
			return s.unknownPayment(log, err, ent.ID, ent.OrderID)
		}
		return s.applyCapture(ctx, p, evt.Event, ent)

	case EventOrderPaid:
		order, ent := evt.order(), evt.payment()
		orderID := order.ID
		if orderID == "" {
			orderID = ent.OrderID
		}
		p, err := s.lookupPayment(ctx, "", orderID)
		if err != nil || p == nil {
			return s.unknownPayment(log, err, ent.ID, orderID)
		}
		return s.applyCapture(ctx, p, evt.Event, ent)

	case EventPaymentFailed:
		ent := evt.payment()
		reason := ent.ErrorDescription
		if reason == "" {
			reason = ent.ErrorCode
		}
		if reason == "" {
			reason = "payment_failed"
		}

		p, err := s.lookupPayment(ctx, ent.ID, "")
		if err != nil {
			return err
		}
		if p == nil {
			// A failed attempt on an order the customer may still retry: the order stays open.
			if p, err = s.lookupPayment(ctx, "", ent.OrderID); err != nil || p == nil {
				return s.unknownPayment(log, err, ent.ID, ent.OrderID)
			}
			s.audit(ctx, p.ID, evt.Event, actionAttemptFailed, ent.ID+": "+reason)
			log.Info("webhook: attempt failed, order left open", zap.String("paymentId", p.ID), zap.String("externalPaymentId", ent.ID))
			return nil
		}
		return s.applyFailure(ctx, p, evt.Event, reason)

	default:
		log.Info("webhook: unhandled event accepted")
		ent := evt.payment()
		p, err := s.lookupPayment(ctx, ent.ID, ent.OrderID)
		if err != nil {
			log.Error("webhook: payment lookup failed for unhandled event",
				zap.String("externalPaymentId", ent.ID), zap.String("externalOrderId", ent.OrderID), zap.Error(err))
			return nil
		}
		if p != nil {
			s.audit(ctx, p.ID, evt.Event, actionUnhandled, "")
		}
		return nil
	}
}

// lookupPayment resolves the internal payment by gateway payment id, falling back to the order id.
func (s *DefaultPaymentService) lookupPayment(ctx context.Context, externalPaymentID, externalOrderID string) (*models.Payment, error) {
	if externalPaymentID != "" {
		p, err := s.repo.FindByExternalPaymentID(ctx, externalPaymentID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ledgerRepo.ErrNotFound) {
			return nil, fmt.Errorf("find payment by external id %s: %w", externalPaymentID, err)
		}
	}
	if externalOrderID != "" {
		p, err := s.repo.FindByExternalOrderID(ctx, externalOrderID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ledgerRepo.ErrNotFound) {
			return nil, fmt.Errorf("find payment by order id %s: %w", externalOrderID, err)
		}
	}
	return nil, nil
}

func (s *DefaultPaymentService) unknownPayment(log *zap.Logger, err error, externalPaymentID, externalOrderID string) error {
	if err != nil {
		return err
	}
	log.Info("webhook: no matching payment, ignoring",
		zap.String("externalPaymentId", externalPaymentID), zap.String("externalOrderId", externalOrderID))
	return nil
}

// applyCapture completes p and merges it, with the idempotency check inside the invoice critical section.
// ent.Amount, when present, is what the gateway actually captured and takes precedence over the ordered amount.
func (s *DefaultPaymentService) applyCapture(ctx context.Context, p *models.Payment, event string, ent webhookEntity) error {
	action := actionApplied
	var mismatch string
	inv, settled, err := s.applier.Settle(ctx, p.InvoiceID, func(ctx context.Context, inv *models.Invoice) (*models.Payment, error) {
		cur, err := s.loadPayment(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		switch cur.PaymentStatus {
		case models.PaymentCompleted:
			action = actionDuplicate
			if !inv.HasApplied(cur.ID) {
				return cur, nil
			}
			return nil, nil
		case models.PaymentRefunded:
			action = actionIgnored
			return nil, nil
		case models.PaymentFailed:
			if !failedByClientVerify(cur) {
				action = actionIgnored
				return nil, nil
			}
			action = actionRecovered
		}

		if ent.Amount > 0 && ent.Amount != utils.ToMinorUnits(cur.Amount) {
			captured := utils.FromMinorUnits(ent.Amount)
			mismatch = fmt.Sprintf("ordered %s, captured %s", cur.Amount.StringFixed(2), captured.StringFixed(2))
			cur.Amount = captured
		}

		return s.settleCapture(ctx, inv, cur, func(p *models.Payment) {
			if p.ExternalPaymentID == "" {
				p.ExternalPaymentID = ent.ID
			}
			p.SetMeta(models.MetaWebhookProcessed, true)
			p.SetMeta(models.MetaWebhookEvent, event)
			p.SetMeta(models.MetaProcessedAt, s.now().UTC())
		})
	})
	if mismatch != "" {
		s.audit(ctx, p.ID, event, actionAmountChanged, mismatch)
		s.logger.Warn("webhook: captured amount differs from order",
			zap.String("paymentId", p.ID), zap.String("detail", mismatch))
	}
	if errors.Is(err, errSettled) {
		s.audit(ctx, p.ID, event, actionSettled, "")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply %s for payment %s: %w", event, p.ID, err)
	}

	s.audit(ctx, p.ID, event, action, "")
	if settled == nil {
		s.logger.Info("webhook: event already reflected, no-op",
			zap.String("event", event), zap.String("paymentId", p.ID), zap.String("action", action))
		return nil
	}

	s.logger.Info("webhook: payment captured",
		zap.String("paymentId", settled.ID), zap.String("invoiceId", settled.InvoiceID), zap.String("paidAmount", inv.PaidAmount.String()))
	if action == actionApplied || action == actionRecovered {
		s.notifier.PaymentReceived(ctx, settled.InvoiceID, settled.Amount, settled.PaymentMethod)
	}
	return nil
}

// failedByClientVerify reports whether p was failed only by a rejected client signature.
// Gateway failures and settled-invoice rejections record a failure reason and stay failed.
func failedByClientVerify(p *models.Payment) bool {
	_, verifyErr := p.Metadata[models.MetaVerificationError]
	_, failure := p.Metadata[models.MetaFailureReason]
	return verifyErr && !failure
}

// applyFailure fails a non-terminal payment. A failure for a terminal payment is only audited.
func (s *DefaultPaymentService) applyFailure(ctx context.Context, p *models.Payment, event, reason string) error {
	action := actionFailed
	_, _, err := s.applier.Settle(ctx, p.InvoiceID, func(ctx context.Context, _ *models.Invoice) (*models.Payment, error) {
		cur, err := s.loadPayment(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if cur.IsTerminal() {
			action = actionIgnored
			return nil, nil
		}

		cur.PaymentStatus = models.PaymentFailed
		cur.SetMeta(models.MetaFailureReason, reason)
		cur.SetMeta(models.MetaWebhookEvent, event)
		cur.SetMeta(models.MetaProcessedAt, s.now().UTC())
		if err := s.repo.TransitionPayment(ctx, cur, models.PaymentPending, models.PaymentProcessing); err != nil {
			return nil, fmt.Errorf("mark payment %s failed: %w", cur.ID, err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("apply %s for payment %s: %w", event, p.ID, err)
	}

	s.audit(ctx, p.ID, event, action, reason)
	s.logger.Info("webhook: payment failure processed",
		zap.String("paymentId", p.ID), zap.String("action", action), zap.String("reason", reason))
	return nil
}
