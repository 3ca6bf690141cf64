package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledgerpay/models"
	"ledgerpay/services/gateway"
	"ledgerpay/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxReceiptLen is the gateway's receipt field limit.
const maxReceiptLen = 40

func buildReceipt(invoiceNumber string, at time.Time) string {
	receipt := invoiceNumber + "_" + strconv.FormatInt(at.UnixMilli(), 10)
	if len(receipt) > maxReceiptLen {
		// Keep the timestamp suffix, trim the invoice number.
		suffix := receipt[strings.LastIndex(receipt, "_"):]
		receipt = invoiceNumber[:maxReceiptLen-len(suffix)] + suffix
	}
	return receipt
}

// CreateOrder opens a gateway order and records a pending payment for it.
// Nothing is persisted when the gateway call fails.
func (s *DefaultPaymentService) CreateOrder(ctx context.Context, req models.CreateOrderRequest, actor string) (*models.CreateOrderResponse, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	inv, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(inv, req.Amount, req.Currency); err != nil {
		return nil, err
	}

	currency := s.currencyFor(inv)
	now := s.now()
	receipt := buildReceipt(inv.InvoiceNumber, now)

	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()
	order, err := s.gateway.CreateOrder(gctx, gateway.OrderRequest{
		AmountMinor: utils.ToMinorUnits(req.Amount),
		Currency:    currency,
		Receipt:     receipt,
		Notes: map[string]string{
			"invoiceId":     inv.ID,
			"invoiceNumber": inv.InvoiceNumber,
		},
	})
	if err != nil {
		s.logger.Error("payment: gateway order creation failed",
			zap.String("invoiceId", inv.ID), zap.String("gateway", s.gateway.Name()), zap.Error(err))
		return nil, utils.NewGatewayError(err)
	}

	p := &models.Payment{
		ID:              uuid.New().String(),
		InvoiceID:       inv.ID,
		ExternalOrderID: order.ID,
		Amount:          req.Amount,
		Currency:        currency,
		PaymentMethod:   models.MethodGateway,
		PaymentStatus:   models.PaymentPending,
		TransactionDate: now,
		CreatedBy:       actor,
		Metadata: map[string]any{
			models.MetaReceipt: receipt,
			models.MetaGateway: s.gateway.Name(),
		},
	}
	if err := s.repo.CreatePayment(context.WithoutCancel(ctx), p); err != nil {
		s.logger.Error("payment: order created but payment not recorded",
			zap.String("invoiceId", inv.ID), zap.String("orderId", order.ID), zap.Error(err))
		return nil, fmt.Errorf("record pending payment for order %s: %w", order.ID, err)
	}

	s.logger.Info("payment: order created",
		zap.String("invoiceId", inv.ID), zap.String("paymentId", p.ID), zap.String("orderId", order.ID), zap.String("amount", p.Amount.String()))

	return &models.CreateOrderResponse{
		OrderID:   order.ID,
		Amount:    p.Amount,
		Currency:  currency,
		Receipt:   receipt,
		PaymentID: p.ID,
	}, nil
}
