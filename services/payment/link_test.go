package payment

import (
	"context"
	"testing"

	"ledgerpay/models"
	"ledgerpay/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLinkPaymentManualShape(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "inv-1", "1000")

	res, err := f.svc.RecordLinkPayment(context.Background(), "inv-1", models.LinkPaymentRequest{Amount: dec("400"), PaymentMethod: models.MethodUPI})
	require.NoError(t, err)
	assert.True(t, res.UpdatedInvoice.PaidAmount.Equal(dec("400")))

	p := f.getPayment(t, res.PaymentID)
	assert.Equal(t, LinkActor, p.CreatedBy)
	assert.Equal(t, LinkActor, p.Metadata[models.MetaSource])
	assert.Equal(t, models.PaymentCompleted, p.PaymentStatus)

	_, err = f.svc.RecordLinkPayment(context.Background(), "inv-1", models.LinkPaymentRequest{Amount: dec("601"), PaymentMethod: models.MethodUPI})
	assert.True(t, utils.HasCode(err, utils.CodeValidation))
	f.assertLedgerInvariant(t, "inv-1")
}

func TestRecordLinkPaymentCompletesPendingOrder(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "inv-1", "1000")
	order := f.order(t, "inv-1", "1000")

	req := models.LinkPaymentRequest{
		Amount:    dec("1000"),
		OrderID:   order.OrderID,
		PaymentID: "pay_link",
		Signature: ComputeSignature(OrderSignatureMessage(order.OrderID, "pay_link"), testAPISecret),
	}
	res, err := f.svc.RecordLinkPayment(context.Background(), "inv-1", req)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentID, res.PaymentID, "existing pending payment is completed")
	assert.Equal(t, models.InvoicePaymentPaid, res.UpdatedInvoice.PaymentStatus)

	payments, err := f.repo.ListByInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	// The webhook for the same capture is then a no-op.
	f.deliver(t, paymentEvent(EventPaymentCaptured, "pay_link", order.OrderID, 100000))
	inv := f.assertLedgerInvariant(t, "inv-1")
	assert.True(t, inv.PaidAmount.Equal(dec("1000")))
}

func TestRecordLinkPaymentRejectsUnrecordedOrder(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "inv-1", "1000")

	req := models.LinkPaymentRequest{
		Amount:    dec("250.75"),
		OrderID:   "order_hosted",
		PaymentID: "pay_hosted",
		Signature: ComputeSignature(OrderSignatureMessage("order_hosted", "pay_hosted"), testAPISecret),
	}
	_, err := f.svc.RecordLinkPayment(context.Background(), "inv-1", req)
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "a valid signature alone does not vouch for the amount")

	payments, err := f.repo.ListByInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Empty(t, payments)
	assert.True(t, f.getInvoice(t, "inv-1").PaidAmount.IsZero())
	assert.Equal(t, 0, f.sender.count())
}

func TestRecordLinkPaymentGatewayRejections(t *testing.T) {
	f := newFixture(t)
	f.invoice(t, "inv-1", "1000")
	f.invoice(t, "inv-2", "1000")
	order := f.order(t, "inv-2", "500")
	ctx := context.Background()

	_, err := f.svc.RecordLinkPayment(ctx, "inv-1", models.LinkPaymentRequest{Amount: dec("10"), OrderID: "order_1"})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "incomplete gateway fields")

	_, err = f.svc.RecordLinkPayment(ctx, "inv-1", models.LinkPaymentRequest{Amount: dec("10"), OrderID: "o", PaymentID: "p", Signature: "bad"})
	assert.True(t, utils.HasCode(err, utils.CodeSignatureMismatch))

	sig := ComputeSignature(OrderSignatureMessage(order.OrderID, "pay_x"), testAPISecret)
	_, err = f.svc.RecordLinkPayment(ctx, "inv-1", models.LinkPaymentRequest{Amount: dec("500"), OrderID: order.OrderID, PaymentID: "pay_x", Signature: sig})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "order belongs to another invoice")

	_, err = f.svc.RecordLinkPayment(ctx, "inv-2", models.LinkPaymentRequest{Amount: dec("499"), OrderID: order.OrderID, PaymentID: "pay_x", Signature: sig})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "amount differs from order")

	assert.True(t, f.getInvoice(t, "inv-1").PaidAmount.IsZero())
	assert.True(t, f.getInvoice(t, "inv-2").PaidAmount.IsZero())
}
