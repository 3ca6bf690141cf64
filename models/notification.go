package models

import "time"

// PaymentNotification is the payload handed to the notification queue after money lands.
type PaymentNotification struct {
	InvoiceID string    `json:"invoiceId"`
	Amount    string    `json:"amount"`
	Method    string    `json:"method"`
	SentAt    time.Time `json:"sentAt"`
}
