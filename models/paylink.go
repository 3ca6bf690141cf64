package models

import "time"

// PaymentLink binds an invoice to an unauthenticated, single-use payment flow.
type PaymentLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url,omitempty"`
	InvoiceID string    `json:"invoiceId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Consumed  bool      `json:"consumed"`
}
