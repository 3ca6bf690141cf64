package gateway

import (
	"context"
	"errors"
)

// ErrUpstream wraps any non-success answer from the provider.
var ErrUpstream = errors.New("gateway: upstream rejected request")

// OrderRequest is a provider-neutral order creation request. Amounts are in minor units.
type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Order is the provider's view of a created order.
type Order struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

// Client creates orders on an external payment gateway.
type Client interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}
