package payments

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// ProviderAPI is the narrow slice of the payment provider the installment
// tracker needs.
type ProviderAPI interface {
	CountPaidInvoices(ctx context.Context, subscriptionID string) (int, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// StripeAPI implements ProviderAPI against the Stripe client.
type StripeAPI struct {
	sc *client.API
}

func NewStripeAPI(sc *client.API) *StripeAPI {
	return &StripeAPI{sc: sc}
}

func (a *StripeAPI) CountPaidInvoices(ctx context.Context, subscriptionID string) (int, error) {
	params := &stripe.InvoiceListParams{
		Subscription: stripe.String(subscriptionID),
		Status:       stripe.String(string(stripe.InvoiceStatusPaid)),
	}
	params.Context = ctx

	count := 0
	it := a.sc.Invoices.List(params)
	for it.Next() {
		count++
	}
	return count, it.Err()
}

func (a *StripeAPI) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := a.sc.Subscriptions.Cancel(subscriptionID, params)
	return err
}
