package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeClient maps orders onto Stripe PaymentIntents. The intent id is the external order id.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a client with its own API instance. Nil backends use Stripe's defaults.
func NewStripeClient(key string, backends *stripe.Backends) *StripeClient {
	api := &client.API{}
	api.Init(key, backends)
	return &StripeClient{api: api}
}

func (c *StripeClient) Name() string { return "stripe" }

func (c *StripeClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Receipt),
	}
	params.Context = ctx
	params.AddMetadata("receipt", req.Receipt)
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			return nil, fmt.Errorf("%w: stripe %s: %s", ErrUpstream, stripeErr.Code, stripeErr.Msg)
		}
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Order{
		ID:          pi.ID,
		AmountMinor: pi.Amount,
		Currency:    strings.ToUpper(string(pi.Currency)),
		Receipt:     req.Receipt,
		Status:      string(pi.Status),
	}, nil
}
