package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ledgerRepo "ledgerpay/database/repository/ledger"
	"ledgerpay/models"
	"ledgerpay/services/gateway"
	"ledgerpay/services/notification"
	"ledgerpay/services/reconcile"
	"ledgerpay/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentService interface {
	// Gateway flow
	CreateOrder(ctx context.Context, req models.CreateOrderRequest, actor string) (*models.CreateOrderResponse, error)
	Verify(ctx context.Context, req models.VerifyPaymentRequest) (*models.PaymentResult, error)
	ProcessWebhook(ctx context.Context, rawBody []byte, signature string) error

	// Out-of-band money
	RecordManual(ctx context.Context, req models.ManualPaymentRequest, actor string) (*models.PaymentResult, error)
	RecordLinkPayment(ctx context.Context, invoiceID string, req models.LinkPaymentRequest) (*models.PaymentResult, error)

	// Lookup / admin
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error)
	DeletePayment(ctx context.Context, paymentID string, force bool, actor string) (*models.DeletePaymentResult, error)
	Reconcile(ctx context.Context, invoiceID string) (*models.ReconcileResult, error)
}

// LinkActor is recorded as createdBy for payments made through an emailed link.
const LinkActor = "payment-link"

// Options carries the secrets and limits the service is configured with.
type Options struct {
	APISecret       string
	WebhookSecret   string
	GatewayTimeout  time.Duration
	DefaultCurrency string
}

// DefaultPaymentService is the production implementation.
type DefaultPaymentService struct {
	repo     ledgerRepo.LedgerRepository
	applier  *reconcile.Applier
	gateway  gateway.Client
	notifier *notification.Notifier
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewPaymentService(
	repo ledgerRepo.LedgerRepository,
	applier *reconcile.Applier,
	gw gateway.Client,
	notifier *notification.Notifier,
	logger *zap.Logger,
	opts Options,
) *DefaultPaymentService {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 10 * time.Second
	}
	return &DefaultPaymentService{
		repo:     repo,
		applier:  applier,
		gateway:  gw,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// errSettled marks a capture that arrived after the invoice no longer had a balance.
var errSettled = errors.New("payment: invoice already settled")

func (s *DefaultPaymentService) loadInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, utils.NewNotFoundError("invoice", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}
	return inv, nil
}

func (s *DefaultPaymentService) loadPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, utils.NewNotFoundError("payment", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", paymentID, err)
	}
	return p, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return utils.NewValidationError("amount must be greater than zero")
	}
	if !utils.IsMoneyPrecise(amount) {
		return utils.NewValidationError("amount must have at most %d decimal places", utils.MoneyPlaces)
	}
	return nil
}

// checkPayable enforces the shared preconditions for taking new money against inv.
func checkPayable(inv *models.Invoice, amount decimal.Decimal, currency string) error {
	switch {
	case inv.Status == models.InvoiceCancelled:
		return utils.NewInvoiceClosedError("cancelled")
	case inv.PaymentStatus == models.InvoicePaymentPaid:
		return utils.NewInvoiceClosedError("already paid")
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount.GreaterThan(inv.RemainingAmount) {
		return utils.NewValidationError("amount %s exceeds remaining balance %s", amount.StringFixed(2), inv.RemainingAmount.StringFixed(2))
	}
	if currency != "" && inv.Currency != "" && !strings.EqualFold(currency, inv.Currency) {
		return utils.NewValidationError("currency %s does not match invoice currency %s", currency, inv.Currency)
	}
	return nil
}

func (s *DefaultPaymentService) currencyFor(inv *models.Invoice) string {
	if inv.Currency != "" {
		return inv.Currency
	}
	return s.opts.DefaultCurrency
}

// settleCapture completes a pending gateway payment against the fresh invoice read under the lock.
// Captured funds beyond the remaining balance are recorded but not applied.
// stamp adds path-specific fields before the write.
func (s *DefaultPaymentService) settleCapture(ctx context.Context, inv *models.Invoice, p *models.Payment, stamp func(*models.Payment)) (*models.Payment, error) {
	from := []string{models.PaymentPending, models.PaymentProcessing}
	if p.PaymentStatus == models.PaymentFailed {
		// Only reached for a capture overriding a rejected client verify.
		from = append(from, models.PaymentFailed)
	}
	p.TransactionDate = s.now()

	if inv.IsClosed() || !inv.RemainingAmount.IsPositive() {
		reason := "invoice_already_settled"
		if inv.Status == models.InvoiceCancelled {
			reason = "invoice_cancelled"
		}
		p.PaymentStatus = models.PaymentFailed
		p.SetMeta(models.MetaFailureReason, reason)
		p.SetMeta(models.MetaReceivedAmount, p.Amount.StringFixed(2))
		stamp(p)
		if err := s.repo.TransitionPayment(ctx, p, from...); err != nil {
			return nil, fmt.Errorf("mark payment %s failed: %w", p.ID, err)
		}
		s.logger.Warn("payment: capture against settled invoice, needs refund",
			zap.String("paymentId", p.ID), zap.String("invoiceId", inv.ID), zap.String("amount", p.Amount.String()))
		return nil, errSettled
	}

	applied, excess := reconcile.CapToRemaining(inv, p.Amount)
	if excess.IsPositive() {
		p.SetMeta(models.MetaReceivedAmount, p.Amount.StringFixed(2))
		p.SetMeta(models.MetaOverpayment, excess.StringFixed(2))
		p.Amount = applied
		s.logger.Warn("payment: capture exceeds remaining balance, excess not applied",
			zap.String("paymentId", p.ID), zap.String("invoiceId", inv.ID), zap.String("overpayment", excess.String()))
	}

	p.PaymentStatus = models.PaymentCompleted
	stamp(p)
	if err := s.repo.TransitionPayment(ctx, p, from...); err != nil {
		if errors.Is(err, ledgerRepo.ErrStatusConflict) {
			return nil, utils.NewValidationError("payment %s is no longer pending", p.ID)
		}
		if errors.Is(err, ledgerRepo.ErrDuplicate) {
			return nil, utils.NewValidationError("gateway payment %s is already recorded", p.ExternalPaymentID)
		}
		return nil, fmt.Errorf("complete payment %s: %w", p.ID, err)
	}
	return p, nil
}

func (s *DefaultPaymentService) audit(ctx context.Context, paymentID, event, action, detail string) {
	entry := models.AuditEntry{Event: event, Action: action, Detail: detail, At: s.now().UTC()}
	if err := s.repo.AppendAudit(ctx, paymentID, entry); err != nil {
		s.logger.Error("payment: audit append failed", zap.String("paymentId", paymentID), zap.String("event", event), zap.Error(err))
	}
}

func result(p *models.Payment, inv *models.Invoice) *models.PaymentResult {
	res := &models.PaymentResult{
		PaymentID: p.ID,
		InvoiceID: p.InvoiceID,
		Amount:    p.Amount,
		Status:    p.PaymentStatus,
	}
	if inv != nil {
		res.UpdatedInvoice = &models.InvoiceSettlement{
			PaidAmount:      inv.PaidAmount,
			RemainingAmount: inv.RemainingAmount,
			PaymentStatus:   inv.PaymentStatus,
		}
	}
	return res
}
