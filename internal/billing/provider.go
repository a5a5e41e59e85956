package billing

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Provider is the slice of the payment API the service calls.
type Provider interface {
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*stripe.Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	CheckConnection(ctx context.Context) error
}

// StripeProvider talks to Stripe with a secret key.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider returns nil when no key is configured.
func NewStripeProvider(secretKey string) *StripeProvider {
	if strings.TrimSpace(secretKey) == "" {
		return nil
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api}
}

func (p *StripeProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx
	return p.api.Subscriptions.Update(subscriptionID, params)
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return p.api.Subscriptions.Get(subscriptionID, params)
}

// CheckConnection verifies the key with a balance read.
func (p *StripeProvider) CheckConnection(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	_, err := p.api.Balance.Get(params)
	return err
}

var _ Provider = (*StripeProvider)(nil)
