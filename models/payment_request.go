package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest opens a gateway order for part or all of an invoice's balance.
type CreateOrderRequest struct {
	InvoiceID string          `json:"invoiceId" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type CreateOrderResponse struct {
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Receipt   string          `json:"receipt"`
	PaymentID string          `json:"paymentId"`
}

// VerifyPaymentRequest is the client-side gateway confirmation. PaymentID is the gateway's id.
type VerifyPaymentRequest struct {
	OrderID           string `json:"orderId" binding:"required"`
	PaymentID         string `json:"paymentId" binding:"required"`
	Signature         string `json:"signature" binding:"required"`
	InternalPaymentID string `json:"internalPaymentId" binding:"required"`
}

type ManualPaymentRequest struct {
	InvoiceID     string          `json:"invoiceId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod" binding:"required"`
	PaymentDate   *time.Time      `json:"paymentDate,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// LinkPaymentRequest is either gateway-shaped (orderId, paymentId, signature) or manual-shaped (paymentMethod).
type LinkPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	OrderID       string          `json:"orderId,omitempty"`
	PaymentID     string          `json:"paymentId,omitempty"`
	Signature     string          `json:"signature,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

func (r LinkPaymentRequest) IsGateway() bool {
	return r.OrderID != "" || r.PaymentID != "" || r.Signature != ""
}

// InvoiceSettlement is the invoice state after a payment was merged.
type InvoiceSettlement struct {
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	PaymentStatus   string          `json:"paymentStatus"`
}

// PaymentResult is returned by every path that completes a payment.
type PaymentResult struct {
	PaymentID      string             `json:"paymentId"`
	InvoiceID      string             `json:"invoiceId"`
	Amount         decimal.Decimal    `json:"amount"`
	Status         string             `json:"status"`
	UpdatedInvoice *InvoiceSettlement `json:"updatedInvoice,omitempty"`
}

type DeletePaymentResult struct {
	PaymentID string `json:"paymentId"`
	Deleted   bool   `json:"deleted"`
	// CompensationRequired is set when a completed payment was removed; the invoice totals still include it.
	CompensationRequired bool   `json:"compensationRequired"`
	Warning              string `json:"warning,omitempty"`
}

type ReconcileResult struct {
	Invoice          InvoiceSummary `json:"invoice"`
	RepairedPayments int            `json:"repairedPayments"`
}
