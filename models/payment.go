package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods.
const (
	MethodCash         = "cash"
	MethodCheque       = "cheque"
	MethodBankTransfer = "bank_transfer"
	MethodUPI          = "upi"
	MethodCard         = "card"
	MethodGateway      = "gateway"
	MethodOther        = "other"
)

// Payment statuses.
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
)

// Metadata keys used for the payment audit trail.
const (
	MetaReceipt           = "receipt"
	MetaGateway           = "gateway"
	MetaVerificationError = "verificationError"
	MetaReceivedSignature = "receivedSignature"
	MetaExpectedSignature = "expectedSignature"
	MetaWebhookProcessed  = "webhookProcessed"
	MetaWebhookEvent      = "webhookEvent"
	MetaProcessedAt       = "processedAt"
	MetaWebhookEvents     = "webhookEvents"
	MetaFailureReason     = "failureReason"
	MetaReceivedAmount    = "receivedAmount"
	MetaOverpayment       = "overpayment"
	MetaSource            = "source"
)

// Payment is a single attempt or transaction against an invoice.
type Payment struct {
	ID                string          `bson:"id" json:"id"`
	InvoiceID         string          `bson:"invoiceId" json:"invoiceId"`
	ExternalOrderID   string          `bson:"externalOrderId,omitempty" json:"externalOrderId,omitempty"`
	ExternalPaymentID string          `bson:"externalPaymentId,omitempty" json:"externalPaymentId,omitempty"`
	ExternalSignature string          `bson:"externalSignature,omitempty" json:"-"`
	Amount            decimal.Decimal `bson:"amount" json:"amount"`
	Currency          string          `bson:"currency" json:"currency"`
	PaymentMethod     string          `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus     string          `bson:"paymentStatus" json:"paymentStatus"`
	TransactionDate   time.Time       `bson:"transactionDate" json:"transactionDate"`
	Notes             string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Metadata          map[string]any  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedBy         string          `bson:"createdBy" json:"createdBy"`
	CreatedAt         time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// IsTerminal reports whether the payment already left the pending/processing states.
func (p *Payment) IsTerminal() bool {
	switch p.PaymentStatus {
	case PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// SetMeta writes a metadata entry, allocating the map on first use.
func (p *Payment) SetMeta(key string, value any) {
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	p.Metadata[key] = value
}

// ManualMethods lists the methods an operator may record without a gateway.
var ManualMethods = map[string]bool{
	MethodCash:         true,
	MethodCheque:       true,
	MethodBankTransfer: true,
	MethodUPI:          true,
	MethodCard:         true,
	MethodOther:        true,
}

// AuditEntry is one line of a payment's audit trail.
type AuditEntry struct {
	Event  string    `bson:"event" json:"event"`
	Action string    `bson:"action" json:"action"`
	Detail string    `bson:"detail,omitempty" json:"detail,omitempty"`
	At     time.Time `bson:"at" json:"at"`
}
