package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgstripe "github.com/joaquinvalderas/regenmarket-backend/pkg/stripe"
)

// PaymentIntentClient exposes the subset of Stripe operations required by the
// webhook reconciler.
type PaymentIntentClient interface {
	Retrieve(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type stripeClientWrapper struct{}

// NewPaymentIntentClient wraps the provided Stripe client so the reconciler
// can be tested.
func NewPaymentIntentClient(api *pkgstripe.Client) PaymentIntentClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) Retrieve(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}
