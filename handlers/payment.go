package handlers

import (
	"io"
	"net/http"
	"strconv"

	"ledgerpay/models"
	"ledgerpay/services/payment"
	"ledgerpay/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler exposes the payment service over HTTP.
type PaymentHandler struct {
	Service         payment.PaymentService
	SignatureHeader string
}

func NewPaymentHandler(service payment.PaymentService, signatureHeader string) *PaymentHandler {
	if signatureHeader == "" {
		signatureHeader = "X-Razorpay-Signature"
	}
	return &PaymentHandler{Service: service, SignatureHeader: signatureHeader}
}

// CreateOrderHandler handles POST /api/payments/create-order.
func (h *PaymentHandler) CreateOrderHandler(c *gin.Context) {
	logger := getLogger(c)
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.Service.CreateOrder(c.Request.Context(), req, actorID(c))
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	respondOK(c, http.StatusCreated, res)
}

// VerifyPaymentHandler handles POST /api/payments/verify.
func (h *PaymentHandler) VerifyPaymentHandler(c *gin.Context) {
	logger := getLogger(c)
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.Service.Verify(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}

// ManualPaymentHandler handles POST /api/payments/manual.
func (h *PaymentHandler) ManualPaymentHandler(c *gin.Context) {
	logger := getLogger(c)
	var req models.ManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.Service.RecordManual(c.Request.Context(), req, actorID(c))
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	respondOK(c, http.StatusCreated, res)
}

// PaymentHistoryHandler handles GET /api/payments/invoice/:invoiceId.
func (h *PaymentHandler) PaymentHistoryHandler(c *gin.Context) {
	logger := getLogger(c)
	payments, err := h.Service.ListByInvoice(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	respondOK(c, http.StatusOK, payments)
}

// GetPaymentHandler handles GET /api/payments/:paymentId.
func (h *PaymentHandler) GetPaymentHandler(c *gin.Context) {
	logger := getLogger(c)
	p, err := h.Service.GetPayment(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	respondOK(c, http.StatusOK, p)
}

// WebhookHandler handles POST /api/payments/webhook. Anything past signature verification is acknowledged.
func (h *PaymentHandler) WebhookHandler(c *gin.Context) {
	logger := getLogger(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Unable to read request body")
		return
	}

	err = h.Service.ProcessWebhook(c.Request.Context(), body, c.GetHeader(h.SignatureHeader))
	if utils.HasCode(err, utils.CodeWebhookAuth) {
		utils.RespondError(c, logger, err)
		return
	}
	if err != nil {
		logger.Error("Webhook processing failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// DeletePaymentHandler handles DELETE /api/payments/:paymentId.
func (h *PaymentHandler) DeletePaymentHandler(c *gin.Context) {
	logger := getLogger(c)
	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}

	res, err := h.Service.DeletePayment(c.Request.Context(), c.Param("paymentId"), force, actorID(c))
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}

// ReconcileInvoiceHandler handles POST /api/payments/invoice/:invoiceId/reconcile.
func (h *PaymentHandler) ReconcileInvoiceHandler(c *gin.Context) {
	logger := getLogger(c)
	res, err := h.Service.Reconcile(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}
