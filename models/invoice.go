package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice lifecycle status, owned by the billing subsystem. Reconciliation only ever writes InvoicePaid.
const (
	InvoiceDraft     = "draft"
	InvoiceSent      = "sent"
	InvoiceOverdue   = "overdue"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
)

// Invoice payment status, derived from PaidAmount vs TotalAmount.
const (
	InvoicePaymentPending = "pending"
	InvoicePaymentPartial = "partial"
	InvoicePaymentPaid    = "paid"
)

// Invoice is the billing aggregate that payments settle against.
type Invoice struct {
	ID            string          `bson:"id" json:"id"`
	InvoiceNumber string          `bson:"invoiceNumber" json:"invoiceNumber"`
	CustomerID    string          `bson:"customerId,omitempty" json:"customerId,omitempty"`
	Currency      string          `bson:"currency" json:"currency"`
	TotalAmount   decimal.Decimal `bson:"totalAmount" json:"totalAmount"`

	PaidAmount      decimal.Decimal `bson:"paidAmount" json:"paidAmount"`
	RemainingAmount decimal.Decimal `bson:"remainingAmount" json:"remainingAmount"`
	PaymentStatus   string          `bson:"paymentStatus" json:"paymentStatus"`
	Status          string          `bson:"status" json:"status"`
	PaymentMethod   string          `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	PaymentDate     *time.Time      `bson:"paymentDate,omitempty" json:"paymentDate,omitempty"`

	// Version is bumped on every settlement write and guards compare-and-set updates.
	Version           int64    `bson:"version" json:"version"`
	AppliedPaymentIDs []string `bson:"appliedPaymentIds" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsClosed reports whether the invoice can no longer accept money.
func (inv *Invoice) IsClosed() bool {
	return inv.Status == InvoiceCancelled || inv.PaymentStatus == InvoicePaymentPaid
}

// HasApplied reports whether the payment has already been merged into the totals.
func (inv *Invoice) HasApplied(paymentID string) bool {
	for _, id := range inv.AppliedPaymentIDs {
		if id == paymentID {
			return true
		}
	}
	return false
}

// InvoiceSummary is the slice of invoice state returned after a payment.
type InvoiceSummary struct {
	ID              string          `json:"id"`
	InvoiceNumber   string          `json:"invoiceNumber"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	PaymentStatus   string          `json:"paymentStatus"`
	Status          string          `json:"status"`
}

func (inv *Invoice) Summary() InvoiceSummary {
	return InvoiceSummary{
		ID:              inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      inv.PaidAmount,
		RemainingAmount: inv.RemainingAmount,
		PaymentStatus:   inv.PaymentStatus,
		Status:          inv.Status,
	}
}
