package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledgerpay/middleware"
	"ledgerpay/models"
	"ledgerpay/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockPaymentService struct {
	CreateOrderFunc       func(ctx context.Context, req models.CreateOrderRequest, actor string) (*models.CreateOrderResponse, error)
	VerifyFunc            func(ctx context.Context, req models.VerifyPaymentRequest) (*models.PaymentResult, error)
	ProcessWebhookFunc    func(ctx context.Context, rawBody []byte, signature string) error
	RecordManualFunc      func(ctx context.Context, req models.ManualPaymentRequest, actor string) (*models.PaymentResult, error)
	RecordLinkPaymentFunc func(ctx context.Context, invoiceID string, req models.LinkPaymentRequest) (*models.PaymentResult, error)
	GetPaymentFunc        func(ctx context.Context, paymentID string) (*models.Payment, error)
	ListByInvoiceFunc     func(ctx context.Context, invoiceID string) ([]models.Payment, error)
	DeletePaymentFunc     func(ctx context.Context, paymentID string, force bool, actor string) (*models.DeletePaymentResult, error)
	ReconcileFunc         func(ctx context.Context, invoiceID string) (*models.ReconcileResult, error)
}

func (m *MockPaymentService) CreateOrder(ctx context.Context, req models.CreateOrderRequest, actor string) (*models.CreateOrderResponse, error) {
	return m.CreateOrderFunc(ctx, req, actor)
}

func (m *MockPaymentService) Verify(ctx context.Context, req models.VerifyPaymentRequest) (*models.PaymentResult, error) {
	return m.VerifyFunc(ctx, req)
}

func (m *MockPaymentService) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) error {
	return m.ProcessWebhookFunc(ctx, rawBody, signature)
}

func (m *MockPaymentService) RecordManual(ctx context.Context, req models.ManualPaymentRequest, actor string) (*models.PaymentResult, error) {
	return m.RecordManualFunc(ctx, req, actor)
}

func (m *MockPaymentService) RecordLinkPayment(ctx context.Context, invoiceID string, req models.LinkPaymentRequest) (*models.PaymentResult, error) {
	return m.RecordLinkPaymentFunc(ctx, invoiceID, req)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return m.GetPaymentFunc(ctx, paymentID)
}

func (m *MockPaymentService) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	return m.ListByInvoiceFunc(ctx, invoiceID)
}

func (m *MockPaymentService) DeletePayment(ctx context.Context, paymentID string, force bool, actor string) (*models.DeletePaymentResult, error) {
	return m.DeletePaymentFunc(ctx, paymentID, force, actor)
}

func (m *MockPaymentService) Reconcile(ctx context.Context, invoiceID string) (*models.ReconcileResult, error) {
	return m.ReconcileFunc(ctx, invoiceID)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// withActor stands in for JWTAuthMiddleware.
func withActor(id, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ActorKey, &utils.Actor{ID: id, Role: role})
		c.Next()
	}
}

func paymentRouter(svc *MockPaymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPaymentHandler(svc, "")
	r := gin.New()
	r.POST("/webhook", h.WebhookHandler)
	api := r.Group("", withActor("clerk-1", "staff"))
	api.POST("/create-order", h.CreateOrderHandler)
	api.POST("/verify", h.VerifyPaymentHandler)
	api.POST("/manual", h.ManualPaymentHandler)
	api.GET("/invoice/:invoiceId", h.PaymentHistoryHandler)
	api.GET("/payments/:paymentId", h.GetPaymentHandler)
	api.DELETE("/payments/:paymentId", h.DeletePaymentHandler)
	api.POST("/invoice/:invoiceId/reconcile", h.ReconcileInvoiceHandler)
	return r
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrderHandler(t *testing.T) {
	var gotActor string
	var gotReq models.CreateOrderRequest
	svc := &MockPaymentService{
		CreateOrderFunc: func(ctx context.Context, req models.CreateOrderRequest, actor string) (*models.CreateOrderResponse, error) {
			gotActor, gotReq = actor, req
			return &models.CreateOrderResponse{OrderID: "order_1", Amount: req.Amount, Currency: "INR", Receipt: "INV-1", PaymentID: "pay-1"}, nil
		},
	}
	r := paymentRouter(svc)

	w := do(r, http.MethodPost, "/create-order", `{"invoiceId":"inv-1","amount":"250.50","currency":"INR"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)

	var res models.CreateOrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "order_1", res.OrderID)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("250.50")))
	assert.Equal(t, "clerk-1", gotActor)
	assert.Equal(t, "inv-1", gotReq.InvoiceID)
}

func TestCreateOrderHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, ""},
		{"missing invoice", `{"amount":"1"}`, nil, http.StatusBadRequest, ""},
		{"not found", `{"invoiceId":"x","amount":"1"}`, utils.NewNotFoundError("invoice", "x"), http.StatusNotFound, "invoice x not found"},
		{"closed", `{"invoiceId":"x","amount":"1"}`, utils.NewInvoiceClosedError("already paid"), http.StatusBadRequest, "invoice is already paid"},
		{"gateway", `{"invoiceId":"x","amount":"1"}`, utils.NewGatewayError(errors.New("upstream said key_secret=abc")), http.StatusBadGateway, "payment gateway is unavailable, please retry"},
		{"unknown", `{"invoiceId":"x","amount":"1"}`, errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &MockPaymentService{
				CreateOrderFunc: func(ctx context.Context, req models.CreateOrderRequest, actor string) (*models.CreateOrderResponse, error) {
					return nil, tc.err
				},
			}
			w := do(paymentRouter(svc), http.MethodPost, "/create-order", tc.body, nil)
			assert.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, env.Message)
			}
			assert.NotContains(t, w.Body.String(), "key_secret")
		})
	}
}

func TestVerifyPaymentHandler(t *testing.T) {
	svc := &MockPaymentService{
		VerifyFunc: func(ctx context.Context, req models.VerifyPaymentRequest) (*models.PaymentResult, error) {
			if req.Signature != "good" {
				return nil, utils.NewSignatureMismatchError()
			}
			return &models.PaymentResult{PaymentID: req.InternalPaymentID, InvoiceID: "inv-1", Amount: decimal.NewFromInt(100), Status: models.PaymentCompleted}, nil
		},
	}
	r := paymentRouter(svc)

	w := do(r, http.MethodPost, "/verify", `{"orderId":"o","paymentId":"p","signature":"good","internalPaymentId":"pay-1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.PaymentResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, "pay-1", res.PaymentID)
	assert.Equal(t, models.PaymentCompleted, res.Status)

	w = do(r, http.MethodPost, "/verify", `{"orderId":"o","paymentId":"p","signature":"bad","internalPaymentId":"pay-1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payment verification failed", decode(t, w).Message)

	w = do(r, http.MethodPost, "/verify", `{"orderId":"o","paymentId":"p"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestManualPaymentHandler(t *testing.T) {
	svc := &MockPaymentService{
		RecordManualFunc: func(ctx context.Context, req models.ManualPaymentRequest, actor string) (*models.PaymentResult, error) {
			assert.Equal(t, "clerk-1", actor)
			assert.Equal(t, models.MethodCash, req.PaymentMethod)
			return &models.PaymentResult{
				PaymentID: "pay-9", InvoiceID: req.InvoiceID, Amount: req.Amount, Status: models.PaymentCompleted,
				UpdatedInvoice: &models.InvoiceSettlement{
					PaidAmount:      req.Amount,
					RemainingAmount: decimal.NewFromInt(7000),
					PaymentStatus:   models.InvoicePaymentPartial,
				},
			}, nil
		},
	}
	w := do(paymentRouter(svc), http.MethodPost, "/manual", `{"invoiceId":"inv-1","amount":3000,"paymentMethod":"cash"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var res models.PaymentResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	require.NotNil(t, res.UpdatedInvoice)
	assert.Equal(t, models.InvoicePaymentPartial, res.UpdatedInvoice.PaymentStatus)
	assert.True(t, res.UpdatedInvoice.RemainingAmount.Equal(decimal.NewFromInt(7000)))
}

func TestWebhookHandler(t *testing.T) {
	var gotBody []byte
	var gotSig string
	svc := &MockPaymentService{
		ProcessWebhookFunc: func(ctx context.Context, rawBody []byte, signature string) error {
			gotBody, gotSig = rawBody, signature
			switch signature {
			case "bad":
				return utils.NewWebhookAuthError(errors.New("signature mismatch"))
			case "late":
				return errors.New("store unavailable")
			}
			return nil
		},
	}
	r := paymentRouter(svc)
	raw := `{"event":"payment.captured",  "payload":{}}`

	w := do(r, http.MethodPost, "/webhook", raw, map[string]string{"X-Razorpay-Signature": "ok"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Equal(t, raw, string(gotBody), "body must reach the service byte for byte")
	assert.Equal(t, "ok", gotSig)

	w = do(r, http.MethodPost, "/webhook", raw, map[string]string{"X-Razorpay-Signature": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid webhook signature", decode(t, w).Message)

	// Processing failures after authentication are acknowledged so the gateway does not retry forever.
	w = do(r, http.MethodPost, "/webhook", raw, map[string]string{"X-Razorpay-Signature": "late"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookHandlerCustomHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotSig string
	svc := &MockPaymentService{
		ProcessWebhookFunc: func(ctx context.Context, rawBody []byte, signature string) error {
			gotSig = signature
			return nil
		},
	}
	h := NewPaymentHandler(svc, "X-Gateway-Signature")
	r := gin.New()
	r.POST("/webhook", h.WebhookHandler)

	do(r, http.MethodPost, "/webhook", `{}`, map[string]string{"X-Gateway-Signature": "sig"})
	assert.Equal(t, "sig", gotSig)
}

func TestPaymentHistoryAndLookup(t *testing.T) {
	svc := &MockPaymentService{
		ListByInvoiceFunc: func(ctx context.Context, invoiceID string) ([]models.Payment, error) {
			if invoiceID == "empty" {
				return nil, nil
			}
			return []models.Payment{{ID: "b"}, {ID: "a"}}, nil
		},
		GetPaymentFunc: func(ctx context.Context, paymentID string) (*models.Payment, error) {
			if paymentID != "pay-1" {
				return nil, utils.NewNotFoundError("payment", paymentID)
			}
			return &models.Payment{ID: "pay-1", ExternalSignature: "secret-sig"}, nil
		},
	}
	r := paymentRouter(svc)

	w := do(r, http.MethodGet, "/invoice/inv-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Payment
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Equal(t, []string{"b", "a"}, []string{list[0].ID, list[1].ID})

	w = do(r, http.MethodGet, "/invoice/empty", "", nil)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))

	w = do(r, http.MethodGet, "/payments/pay-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-sig")

	w = do(r, http.MethodGet, "/payments/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePaymentHandler(t *testing.T) {
	var gotForce bool
	svc := &MockPaymentService{
		DeletePaymentFunc: func(ctx context.Context, paymentID string, force bool, actor string) (*models.DeletePaymentResult, error) {
			gotForce = force
			if !force {
				return nil, utils.NewValidationError("completed payments require force=true")
			}
			return &models.DeletePaymentResult{PaymentID: paymentID, Deleted: true, CompensationRequired: true}, nil
		},
	}
	r := paymentRouter(svc)

	w := do(r, http.MethodDelete, "/payments/pay-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, gotForce)

	w = do(r, http.MethodDelete, "/payments/pay-1?force=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotForce)
	var res models.DeletePaymentResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.True(t, res.CompensationRequired)

	w = do(r, http.MethodDelete, "/payments/pay-1?force=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcileInvoiceHandler(t *testing.T) {
	svc := &MockPaymentService{
		ReconcileFunc: func(ctx context.Context, invoiceID string) (*models.ReconcileResult, error) {
			if invoiceID == "busy" {
				return nil, utils.NewInternalReconciliationError(invoiceID, errors.New("version conflict"))
			}
			return &models.ReconcileResult{Invoice: models.InvoiceSummary{ID: invoiceID}, RepairedPayments: 2}, nil
		},
	}
	r := paymentRouter(svc)

	w := do(r, http.MethodPost, "/invoice/inv-1/reconcile", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.ReconcileResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, 2, res.RepairedPayments)

	w = do(r, http.MethodPost, "/invoice/busy/reconcile", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "version conflict")
}
