package ledgerRepo

import (
	"context"
	"testing"
	"time"

	"ledgerpay/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInvoice(t *testing.T, repo *MemoryLedgerRepo) *models.Invoice {
	t.Helper()
	inv := &models.Invoice{
		ID:              "inv-1",
		InvoiceNumber:   "INV-0001",
		Currency:        "INR",
		TotalAmount:     decimal.NewFromInt(1000),
		RemainingAmount: decimal.NewFromInt(1000),
		PaymentStatus:   models.InvoicePaymentPending,
		Status:          models.InvoiceSent,
	}
	require.NoError(t, repo.CreateInvoice(context.Background(), inv))
	return inv
}

func TestMemoryUpdateSettlementCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepo()
	seedInvoice(t, repo)

	first, err := repo.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	stale, err := repo.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)

	first.PaidAmount = decimal.NewFromInt(400)
	first.RemainingAmount = decimal.NewFromInt(600)
	first.PaymentStatus = models.InvoicePaymentPartial
	require.NoError(t, repo.UpdateSettlement(ctx, first, "pay-1"))
	assert.Equal(t, int64(1), first.Version)

	stale.PaidAmount = decimal.NewFromInt(400)
	assert.ErrorIs(t, repo.UpdateSettlement(ctx, stale, "pay-2"), ErrVersionConflict)

	// Same payment twice is refused even with a fresh version.
	fresh, err := repo.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.UpdateSettlement(ctx, fresh, "pay-1"), ErrVersionConflict)

	stored, err := repo.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, []string{"pay-1"}, stored.AppliedPaymentIDs)
}

func TestMemoryUpdateSettlementMissingInvoice(t *testing.T) {
	repo := NewMemoryLedgerRepo()
	err := repo.UpdateSettlement(context.Background(), &models.Invoice{ID: "nope"}, "pay-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTransitionPaymentGuardsStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepo()
	p := &models.Payment{ID: "pay-1", InvoiceID: "inv-1", Amount: decimal.NewFromInt(10), PaymentStatus: models.PaymentPending}
	require.NoError(t, repo.CreatePayment(ctx, p))

	done := *p
	done.PaymentStatus = models.PaymentCompleted
	done.ExternalPaymentID = "pay_ext_1"
	require.NoError(t, repo.TransitionPayment(ctx, &done, models.PaymentPending, models.PaymentProcessing))

	failed := *p
	failed.PaymentStatus = models.PaymentFailed
	assert.ErrorIs(t, repo.TransitionPayment(ctx, &failed, models.PaymentPending, models.PaymentProcessing), ErrStatusConflict)

	stored, err := repo.FindByExternalPaymentID(ctx, "pay_ext_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, stored.PaymentStatus)
}

func TestMemoryTransitionPaymentKeepsConcurrentAudit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepo()
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{
		ID: "pay-1", InvoiceID: "inv-1", PaymentStatus: models.PaymentPending,
		Metadata: map[string]any{models.MetaReceipt: "INV-0001"},
	}))

	// Snapshot taken before another writer appends to the audit trail.
	snapshot, err := repo.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.NoError(t, repo.AppendAudit(ctx, "pay-1", models.AuditEntry{Event: "payment.failed", Action: "attempt_failed"}))

	snapshot.PaymentStatus = models.PaymentCompleted
	snapshot.SetMeta(models.MetaWebhookProcessed, true)
	snapshot.SetMeta(models.MetaWebhookEvents, []models.AuditEntry{})
	require.NoError(t, repo.TransitionPayment(ctx, snapshot, models.PaymentPending))

	stored, err := repo.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	events, _ := stored.Metadata[models.MetaWebhookEvents].([]models.AuditEntry)
	require.Len(t, events, 1)
	assert.Equal(t, "attempt_failed", events[0].Action)
	assert.Equal(t, true, stored.Metadata[models.MetaWebhookProcessed])
	assert.Equal(t, "INV-0001", stored.Metadata[models.MetaReceipt])
}

func TestMemoryExternalPaymentIDIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepo()
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{ID: "a", ExternalPaymentID: "pay_x"}))
	assert.ErrorIs(t, repo.CreatePayment(ctx, &models.Payment{ID: "b", ExternalPaymentID: "pay_x"}), ErrDuplicate)
	assert.ErrorIs(t, repo.CreatePayment(ctx, &models.Payment{ID: "a"}), ErrDuplicate)
}

func TestMemoryListByInvoiceNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepo()
	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, repo.CreatePayment(ctx, &models.Payment{ID: id, InvoiceID: "inv-1", TransactionDate: time.Now()}))
	}
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{ID: "other", InvoiceID: "inv-2"}))

	payments, err := repo.ListByInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, "p3", payments[0].ID)
	assert.Equal(t, "p1", payments[2].ID)
}

func TestMemoryAppendAuditAndCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepo()
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{ID: "p1"}))

	require.NoError(t, repo.AppendAudit(ctx, "p1", models.AuditEntry{Event: "payment.failed", Action: "ignored"}))
	require.NoError(t, repo.AppendAudit(ctx, "p1", models.AuditEntry{Event: "payment.captured", Action: "ignored"}))

	got, err := repo.GetPayment(ctx, "p1")
	require.NoError(t, err)
	events := got.Metadata[models.MetaWebhookEvents].([]models.AuditEntry)
	assert.Len(t, events, 2)

	// Mutating the returned copy must not leak into the store.
	got.SetMeta("tampered", true)
	again, err := repo.GetPayment(ctx, "p1")
	require.NoError(t, err)
	_, tampered := again.Metadata["tampered"]
	assert.False(t, tampered)

	assert.ErrorIs(t, repo.AppendAudit(ctx, "missing", models.AuditEntry{}), ErrNotFound)
}

func TestMemoryDeletePayment(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepo()
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{ID: "p1"}))
	require.NoError(t, repo.DeletePayment(ctx, "p1"))
	assert.ErrorIs(t, repo.DeletePayment(ctx, "p1"), ErrNotFound)
	_, err := repo.GetPayment(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}
