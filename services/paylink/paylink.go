package paylink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ledgerRepo "ledgerpay/database/repository/ledger"
	"ledgerpay/models"
	"ledgerpay/utils"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentRecorder settles a payment once the link has been consumed.
type PaymentRecorder interface {
	RecordLinkPayment(ctx context.Context, invoiceID string, req models.LinkPaymentRequest) (*models.PaymentResult, error)
}

type PaylinkService interface {
	Issue(ctx context.Context, invoiceID string) (*models.PaymentLink, error)
	Preview(ctx context.Context, token string) (*models.Invoice, error)
	VerifyAndConsume(ctx context.Context, token string) (*models.Invoice, error)
	ProcessPayment(ctx context.Context, token string, req models.LinkPaymentRequest) (*models.PaymentResult, error)
}

// DefaultPaylinkService signs links as HS256 JWTs and tracks consumption in a TokenStore.
type DefaultPaylinkService struct {
	secret   []byte
	ttl      time.Duration
	baseURL  string
	store    TokenStore
	invoices ledgerRepo.InvoiceRepository
	payments PaymentRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewPaylinkService(
	secret string,
	ttl time.Duration,
	baseURL string,
	store TokenStore,
	invoices ledgerRepo.InvoiceRepository,
	payments PaymentRecorder,
	logger *zap.Logger,
) *DefaultPaylinkService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &DefaultPaylinkService{
		secret:   []byte(secret),
		ttl:      ttl,
		baseURL:  strings.TrimRight(baseURL, "/"),
		store:    store,
		invoices: invoices,
		payments: payments,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *DefaultPaylinkService) loadInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	inv, err := s.invoices.GetInvoice(ctx, invoiceID)
	if errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, utils.NewNotFoundError("invoice", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}
	return inv, nil
}

// Issue creates a link for an open invoice.
func (s *DefaultPaylinkService) Issue(ctx context.Context, invoiceID string) (*models.PaymentLink, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("paylink: signing secret is not configured")
	}
	inv, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceCancelled {
		return nil, utils.NewInvoiceClosedError("cancelled")
	}
	if inv.PaymentStatus == models.InvoicePaymentPaid {
		return nil, utils.NewInvoiceClosedError("already paid")
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := jwt.StandardClaims{
		Id:        uuid.New().String(),
		Subject:   inv.ID,
		IssuedAt:  issuedAt.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign payment link: %w", err)
	}

	s.logger.Info("paylink: issued", zap.String("invoiceId", inv.ID), zap.String("jti", claims.Id), zap.Time("expiresAt", expiresAt))
	link := &models.PaymentLink{
		Token:     token,
		InvoiceID: inv.ID,
		IssuedAt:  time.Unix(claims.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}
	if s.baseURL != "" {
		link.URL = s.baseURL + "/" + token
	}
	return link, nil
}

// parse validates signature and expiry. Every failure is reported as InvalidOrExpiredToken.
func (s *DefaultPaylinkService) parse(token string) (*jwt.StandardClaims, error) {
	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, utils.NewInvalidOrExpiredTokenError(err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.Id == "" || claims.ExpiresAt == 0 {
		return nil, utils.NewInvalidOrExpiredTokenError(errors.New("incomplete claims"))
	}
	return claims, nil
}

// Preview returns the invoice behind a still-usable link without consuming it.
func (s *DefaultPaylinkService) Preview(ctx context.Context, token string) (*models.Invoice, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	used, err := s.store.IsConsumed(ctx, claims.Id)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, utils.NewInvalidOrExpiredTokenError(errors.New("already used"))
	}
	return s.loadInvoice(ctx, claims.Subject)
}

// VerifyAndConsume burns the link and returns a fresh copy of its invoice.
func (s *DefaultPaylinkService) VerifyAndConsume(ctx context.Context, token string) (*models.Invoice, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 {
		return nil, utils.NewInvalidOrExpiredTokenError(errors.New("expired"))
	}

	ok, err := s.store.Consume(ctx, claims.Id, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("paylink: reuse attempt", zap.String("jti", claims.Id), zap.String("invoiceId", claims.Subject))
		return nil, utils.NewInvalidOrExpiredTokenError(errors.New("already used"))
	}
	return s.loadInvoice(ctx, claims.Subject)
}

// ProcessPayment consumes the link and settles one payment against its invoice.
func (s *DefaultPaylinkService) ProcessPayment(ctx context.Context, token string, req models.LinkPaymentRequest) (*models.PaymentResult, error) {
	inv, err := s.VerifyAndConsume(ctx, token)
	if err != nil {
		return nil, err
	}

	switch {
	case inv.Status == models.InvoiceCancelled:
		return nil, utils.NewInvoiceClosedError("cancelled")
	case inv.PaymentStatus == models.InvoicePaymentPaid:
		return nil, utils.NewInvoiceClosedError("already paid")
	case !req.Amount.IsPositive():
		return nil, utils.NewValidationError("amount must be greater than zero")
	case req.Amount.GreaterThan(inv.RemainingAmount):
		return nil, utils.NewValidationError("amount %s exceeds remaining balance %s", req.Amount.StringFixed(2), inv.RemainingAmount.StringFixed(2))
	}

	res, err := s.payments.RecordLinkPayment(ctx, inv.ID, req)
	if err != nil {
		s.logger.Warn("paylink: payment failed after link was consumed", zap.String("invoiceId", inv.ID), zap.Error(err))
		return nil, err
	}
	return res, nil
}
