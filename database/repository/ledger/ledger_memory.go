package ledgerRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"ledgerpay/models"
)

// MemoryLedgerRepo is an in-process LedgerRepository with the same compare-and-set
// semantics as the Mongo implementation. Records are copied in and out.
type MemoryLedgerRepo struct {
	mu       sync.Mutex
	invoices map[string]models.Invoice
	payments map[string]models.Payment
	// seq orders payments created within the same clock tick.
	seq     map[string]int64
	nextSeq int64
}

func NewMemoryLedgerRepo() *MemoryLedgerRepo {
	return &MemoryLedgerRepo{
		invoices: make(map[string]models.Invoice),
		payments: make(map[string]models.Payment),
		seq:      make(map[string]int64),
	}
}

func copyInvoice(inv models.Invoice) models.Invoice {
	inv.AppliedPaymentIDs = append([]string(nil), inv.AppliedPaymentIDs...)
	if inv.PaymentDate != nil {
		d := *inv.PaymentDate
		inv.PaymentDate = &d
	}
	return inv
}

func copyPayment(p models.Payment) models.Payment {
	if p.Metadata != nil {
		meta := make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			if events, ok := v.([]models.AuditEntry); ok {
				v = append([]models.AuditEntry(nil), events...)
			}
			meta[k] = v
		}
		p.Metadata = meta
	}
	return p
}

func (r *MemoryLedgerRepo) CreateInvoice(_ context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invoices[inv.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	r.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (r *MemoryLedgerRepo) GetInvoice(_ context.Context, id string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyInvoice(inv)
	return &out, nil
}

func (r *MemoryLedgerRepo) UpdateSettlement(_ context.Context, inv *models.Invoice, appliedPaymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.invoices[inv.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != inv.Version || stored.HasApplied(appliedPaymentID) {
		return ErrVersionConflict
	}

	stored.PaidAmount = inv.PaidAmount
	stored.RemainingAmount = inv.RemainingAmount
	stored.PaymentStatus = inv.PaymentStatus
	stored.Status = inv.Status
	if inv.PaymentMethod != "" {
		stored.PaymentMethod = inv.PaymentMethod
	}
	if inv.PaymentDate != nil {
		stored.PaymentDate = inv.PaymentDate
	}
	stored.Version++
	stored.UpdatedAt = time.Now()
	stored.AppliedPaymentIDs = append(append([]string(nil), stored.AppliedPaymentIDs...), appliedPaymentID)
	r.invoices[inv.ID] = copyInvoice(stored)

	*inv = copyInvoice(stored)
	return nil
}

func (r *MemoryLedgerRepo) CreatePayment(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[p.ID]; exists {
		return ErrDuplicate
	}
	if p.ExternalPaymentID != "" {
		for _, other := range r.payments {
			if other.ExternalPaymentID == p.ExternalPaymentID {
				return ErrDuplicate
			}
		}
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.payments[p.ID] = copyPayment(*p)
	r.nextSeq++
	r.seq[p.ID] = r.nextSeq
	return nil
}

func (r *MemoryLedgerRepo) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyPayment(p)
	return &out, nil
}

func (r *MemoryLedgerRepo) findLatest(match func(models.Payment) bool) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *models.Payment
	for _, p := range r.payments {
		if !match(p) {
			continue
		}
		if found == nil || r.seq[p.ID] > r.seq[found.ID] {
			cp := copyPayment(p)
			found = &cp
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *MemoryLedgerRepo) FindByExternalPaymentID(_ context.Context, externalPaymentID string) (*models.Payment, error) {
	if externalPaymentID == "" {
		return nil, ErrNotFound
	}
	return r.findLatest(func(p models.Payment) bool { return p.ExternalPaymentID == externalPaymentID })
}

func (r *MemoryLedgerRepo) FindByExternalOrderID(_ context.Context, externalOrderID string) (*models.Payment, error) {
	if externalOrderID == "" {
		return nil, ErrNotFound
	}
	return r.findLatest(func(p models.Payment) bool { return p.ExternalOrderID == externalOrderID })
}

func (r *MemoryLedgerRepo) ListByInvoice(_ context.Context, invoiceID string) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payments := []models.Payment{}
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			payments = append(payments, copyPayment(p))
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return r.seq[payments[i].ID] > r.seq[payments[j].ID]
	})
	return payments, nil
}

func (r *MemoryLedgerRepo) TransitionPayment(_ context.Context, p *models.Payment, from ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.payments[p.ID]
	if !ok {
		return ErrNotFound
	}
	allowed := false
	for _, status := range from {
		if stored.PaymentStatus == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrStatusConflict
	}
	if p.ExternalPaymentID != "" && p.ExternalPaymentID != stored.ExternalPaymentID {
		for id, other := range r.payments {
			if id != p.ID && other.ExternalPaymentID == p.ExternalPaymentID {
				return ErrDuplicate
			}
		}
	}

	stored = copyPayment(stored)
	stored.PaymentStatus = p.PaymentStatus
	stored.Amount = p.Amount
	stored.TransactionDate = p.TransactionDate
	if p.ExternalPaymentID != "" {
		stored.ExternalPaymentID = p.ExternalPaymentID
	}
	if p.ExternalSignature != "" {
		stored.ExternalSignature = p.ExternalSignature
	}
	for k, v := range p.Metadata {
		if k == models.MetaWebhookEvents {
			continue
		}
		stored.SetMeta(k, v)
	}
	stored.UpdatedAt = time.Now()
	r.payments[p.ID] = stored
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryLedgerRepo) AppendAudit(_ context.Context, paymentID string, entry models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.payments[paymentID]
	if !ok {
		return ErrNotFound
	}
	stored = copyPayment(stored)
	events, _ := stored.Metadata[models.MetaWebhookEvents].([]models.AuditEntry)
	stored.SetMeta(models.MetaWebhookEvents, append(events, entry))
	r.payments[paymentID] = stored
	return nil
}

func (r *MemoryLedgerRepo) DeletePayment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[id]; !ok {
		return ErrNotFound
	}
	delete(r.payments, id)
	delete(r.seq, id)
	return nil
}
