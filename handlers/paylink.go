package handlers

import (
	"net/http"

	"ledgerpay/models"
	"ledgerpay/services/paylink"
	"ledgerpay/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaylinkHandler exposes payment-link issuing and the public pay-by-link flow.
type PaylinkHandler struct {
	Service paylink.PaylinkService
}

func NewPaylinkHandler(service paylink.PaylinkService) *PaylinkHandler {
	return &PaylinkHandler{Service: service}
}

type issueLinkRequest struct {
	InvoiceID string `json:"invoiceId" binding:"required"`
}

// linkPreview is what an unauthenticated payer is shown about the invoice.
type linkPreview struct {
	models.InvoiceSummary
	Currency string `json:"currency"`
}

// IssueLinkHandler handles POST /api/payment-links.
func (h *PaylinkHandler) IssueLinkHandler(c *gin.Context) {
	logger := getLogger(c)
	var req issueLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	link, err := h.Service.Issue(c.Request.Context(), req.InvoiceID)
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	logger.Info("Payment link issued", zap.String("invoiceId", link.InvoiceID), zap.String("actor", actorID(c)))
	respondOK(c, http.StatusCreated, link)
}

// PreviewLinkHandler handles GET /api/payment-links/verify/:token.
func (h *PaylinkHandler) PreviewLinkHandler(c *gin.Context) {
	logger := getLogger(c)
	inv, err := h.Service.Preview(c.Request.Context(), c.Param("token"))
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	respondOK(c, http.StatusOK, linkPreview{InvoiceSummary: inv.Summary(), Currency: inv.Currency})
}

// ProcessLinkHandler handles POST /api/payment-links/process/:token.
func (h *PaylinkHandler) ProcessLinkHandler(c *gin.Context) {
	logger := getLogger(c)
	var req models.LinkPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.Service.ProcessPayment(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}
