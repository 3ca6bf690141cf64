package notification

import (
	"context"
	"time"

	"ledgerpay/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sender delivers "payment received" notices. Delivery is fire-and-forget for callers.
type Sender interface {
	PaymentReceived(ctx context.Context, n models.PaymentNotification) error
}

// NoopSender only logs. Used when no queue or push backend is configured.
type NoopSender struct {
	Logger *zap.Logger
}

func (s NoopSender) PaymentReceived(_ context.Context, n models.PaymentNotification) error {
	if s.Logger != nil {
		s.Logger.Debug("notification: payment received",
			zap.String("invoiceId", n.InvoiceID), zap.String("amount", n.Amount), zap.String("method", n.Method))
	}
	return nil
}

// Notifier wraps a Sender so that delivery never fails the caller.
type Notifier struct {
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
}

func NewNotifier(sender Sender, logger *zap.Logger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{sender: sender, logger: logger, timeout: timeout}
}

// PaymentReceived sends the notice with a bounded timeout. Errors are logged and swallowed.
func (n *Notifier) PaymentReceived(ctx context.Context, invoiceID string, amount decimal.Decimal, method string) {
	if n == nil || n.sender == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	msg := models.PaymentNotification{
		InvoiceID: invoiceID,
		Amount:    amount.StringFixed(2),
		Method:    method,
		SentAt:    time.Now().UTC(),
	}
	if err := n.sender.PaymentReceived(ctx, msg); err != nil {
		n.logger.Warn("notification: delivery failed",
			zap.String("invoiceId", invoiceID), zap.String("method", method), zap.Error(err))
	}
}
