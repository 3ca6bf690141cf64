package ledgerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerpay/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLedgerRepo implements LedgerRepository using MongoDB.
type MongoLedgerRepo struct {
	invoiceColl *mongo.Collection
	paymentColl *mongo.Collection
}

// NewMongoLedgerRepo creates the invoice/payment repository on the given database.
func NewMongoLedgerRepo(db *mongo.Database) LedgerRepository {
	repo := &MongoLedgerRepo{
		invoiceColl: db.Collection("invoices"),
		paymentColl: db.Collection("payments"),
	}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create indexes: %v\n", err)
	}
	return repo
}

// --- Invoices ---

// CreateInvoice inserts a new invoice document.
func (r *MongoLedgerRepo) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.AppliedPaymentIDs == nil {
		inv.AppliedPaymentIDs = []string{}
	}

	if _, err := r.invoiceColl.InsertOne(ctx, inv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by its ID.
func (r *MongoLedgerRepo) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var inv models.Invoice
	if err := r.invoiceColl.FindOne(ctx, bson.M{"id": id}).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch invoice with id %s: %w", id, err)
	}
	return &inv, nil
}

// UpdateSettlement is a compare-and-set on the invoice version.
func (r *MongoLedgerRepo) UpdateSettlement(ctx context.Context, inv *models.Invoice, appliedPaymentID string) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	filter := bson.M{
		"id":                inv.ID,
		"version":           inv.Version,
		"appliedPaymentIds": bson.M{"$ne": appliedPaymentID},
	}
	set := bson.M{
		"paidAmount":      inv.PaidAmount,
		"remainingAmount": inv.RemainingAmount,
		"paymentStatus":   inv.PaymentStatus,
		"status":          inv.Status,
		"updatedAt":       now,
	}
	if inv.PaymentMethod != "" {
		set["paymentMethod"] = inv.PaymentMethod
	}
	if inv.PaymentDate != nil {
		set["paymentDate"] = inv.PaymentDate
	}
	update := bson.M{
		"$set":  set,
		"$inc":  bson.M{"version": 1},
		"$push": bson.M{"appliedPaymentIds": appliedPaymentID},
	}

	res, err := r.invoiceColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update invoice %s: %w", inv.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := r.invoiceColl.CountDocuments(ctx, bson.M{"id": inv.ID})
		if err != nil {
			return fmt.Errorf("failed to check invoice %s: %w", inv.ID, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	inv.Version++
	inv.UpdatedAt = now
	inv.AppliedPaymentIDs = append(inv.AppliedPaymentIDs, appliedPaymentID)
	return nil
}

// --- Payments ---

// CreatePayment inserts a new payment document.
func (r *MongoLedgerRepo) CreatePayment(ctx context.Context, p *models.Payment) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := r.paymentColl.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *MongoLedgerRepo) findOnePayment(ctx context.Context, filter bson.M) (*models.Payment, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var p models.Payment
	if err := r.paymentColl.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &p, nil
}

// GetPayment retrieves a payment by its internal ID.
func (r *MongoLedgerRepo) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return r.findOnePayment(ctx, bson.M{"id": id})
}

// FindByExternalPaymentID retrieves a payment by the gateway's payment id.
func (r *MongoLedgerRepo) FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.Payment, error) {
	if externalPaymentID == "" {
		return nil, ErrNotFound
	}
	return r.findOnePayment(ctx, bson.M{"externalPaymentId": externalPaymentID})
}

// FindByExternalOrderID retrieves the most recent payment opened for a gateway order.
func (r *MongoLedgerRepo) FindByExternalOrderID(ctx context.Context, externalOrderID string) (*models.Payment, error) {
	if externalOrderID == "" {
		return nil, ErrNotFound
	}
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var p models.Payment
	if err := r.paymentColl.FindOne(ctx, bson.M{"externalOrderId": externalOrderID}, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment for order %s: %w", externalOrderID, err)
	}
	return &p, nil
}

// ListByInvoice returns an invoice's payments, newest first.
func (r *MongoLedgerRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.paymentColl.Find(ctx, bson.M{"invoiceId": invoiceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for invoice %s: %w", invoiceID, err)
	}
	defer cursor.Close(ctx)

	payments := []models.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}

// TransitionPayment writes the mutable payment fields guarded by the current status.
func (r *MongoLedgerRepo) TransitionPayment(ctx context.Context, p *models.Payment, from ...string) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	filter := bson.M{"id": p.ID, "paymentStatus": bson.M{"$in": from}}
	set := bson.M{
		"paymentStatus":   p.PaymentStatus,
		"amount":          p.Amount,
		"transactionDate": p.TransactionDate,
		"updatedAt":       now,
	}
	// Empty external ids must stay absent so the sparse unique index ignores them.
	if p.ExternalPaymentID != "" {
		set["externalPaymentId"] = p.ExternalPaymentID
	}
	if p.ExternalSignature != "" {
		set["externalSignature"] = p.ExternalSignature
	}
	// Per-key writes so a concurrent AppendAudit is never overwritten by this snapshot.
	for k, v := range p.Metadata {
		if k == models.MetaWebhookEvents {
			continue
		}
		set["metadata."+k] = v
	}
	update := bson.M{"$set": set}

	res, err := r.paymentColl.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update payment %s: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := r.paymentColl.CountDocuments(ctx, bson.M{"id": p.ID})
		if err != nil {
			return fmt.Errorf("failed to check payment %s: %w", p.ID, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	p.UpdatedAt = now
	return nil
}

// AppendAudit pushes an audit entry onto the payment's trail.
func (r *MongoLedgerRepo) AppendAudit(ctx context.Context, paymentID string, entry models.AuditEntry) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$push": bson.M{"metadata." + models.MetaWebhookEvents: entry}}
	res, err := r.paymentColl.UpdateOne(ctx, bson.M{"id": paymentID}, update)
	if err != nil {
		return fmt.Errorf("failed to append audit to payment %s: %w", paymentID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePayment removes a payment document by its ID.
func (r *MongoLedgerRepo) DeletePayment(ctx context.Context, id string) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	res, err := r.paymentColl.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete payment %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
