package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct for route registration.
type HandlerBundle struct {
	JWTSecret         []byte
	MaxRequestsPerMin int

	// Payment endpoints
	CreateOrderHandler      gin.HandlerFunc
	VerifyPaymentHandler    gin.HandlerFunc
	ManualPaymentHandler    gin.HandlerFunc
	PaymentHistoryHandler   gin.HandlerFunc
	GetPaymentHandler       gin.HandlerFunc
	WebhookHandler          gin.HandlerFunc
	DeletePaymentHandler    gin.HandlerFunc
	ReconcileInvoiceHandler gin.HandlerFunc

	// Payment-link endpoints
	IssueLinkHandler   gin.HandlerFunc
	PreviewLinkHandler gin.HandlerFunc
	ProcessLinkHandler gin.HandlerFunc
}

// NewHandlerBundle wires the payment and payment-link handlers into a bundle.
func NewHandlerBundle(ph *PaymentHandler, lh *PaylinkHandler, jwtSecret []byte, maxRequestsPerMin int) *HandlerBundle {
	return &HandlerBundle{
		JWTSecret:         jwtSecret,
		MaxRequestsPerMin: maxRequestsPerMin,

		CreateOrderHandler:      ph.CreateOrderHandler,
		VerifyPaymentHandler:    ph.VerifyPaymentHandler,
		ManualPaymentHandler:    ph.ManualPaymentHandler,
		PaymentHistoryHandler:   ph.PaymentHistoryHandler,
		GetPaymentHandler:       ph.GetPaymentHandler,
		WebhookHandler:          ph.WebhookHandler,
		DeletePaymentHandler:    ph.DeletePaymentHandler,
		ReconcileInvoiceHandler: ph.ReconcileInvoiceHandler,

		IssueLinkHandler:   lh.IssueLinkHandler,
		PreviewLinkHandler: lh.PreviewLinkHandler,
		ProcessLinkHandler: lh.ProcessLinkHandler,
	}
}
