package ledgerRepo

import (
	"context"
	"errors"

	"ledgerpay/models"
)

var (
	// ErrNotFound is returned when the invoice or payment does not exist.
	ErrNotFound = errors.New("ledger: record not found")
	// ErrVersionConflict is returned when an invoice was written by someone else since it was read.
	ErrVersionConflict = errors.New("ledger: invoice version conflict")
	// ErrStatusConflict is returned when a payment is no longer in one of the expected statuses.
	ErrStatusConflict = errors.New("ledger: payment status changed concurrently")
	// ErrDuplicate is returned when a record with the same id already exists.
	ErrDuplicate = errors.New("ledger: duplicate record")
)

// InvoiceRepository reads invoices and writes their settlement fields.
type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	// UpdateSettlement persists paid/remaining/status/method/date and appends appliedPaymentID,
	// only if the stored version still equals inv.Version. On success inv.Version is incremented.
	UpdateSettlement(ctx context.Context, inv *models.Invoice, appliedPaymentID string) error
}

// PaymentRepository stores payment attempts.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.Payment, error)
	FindByExternalOrderID(ctx context.Context, externalOrderID string) (*models.Payment, error)
	// ListByInvoice returns the invoice's payments, newest first.
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error)
	// TransitionPayment writes p only if the stored status is one of from.
	TransitionPayment(ctx context.Context, p *models.Payment, from ...string) error
	// AppendAudit pushes an entry onto metadata.webhookEvents without touching status.
	AppendAudit(ctx context.Context, paymentID string, entry models.AuditEntry) error
	DeletePayment(ctx context.Context, id string) error
}

// LedgerRepository is the whole ledger store.
type LedgerRepository interface {
	InvoiceRepository
	PaymentRepository
}
