package payments

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/estateline/estateline/app/models"
	"github.com/estateline/estateline/internal/pkg/checkout"
	"github.com/estateline/estateline/internal/pkg/pricing"
	"gorm.io/gorm"
)

// SubscriptionUpdate is the slice of a provider subscription event the
// tracker cares about.
type SubscriptionUpdate struct {
	ID       string
	Metadata map[string]string
}

// Tracker drives the 3-cycle installment lifecycle. The provider has no
// native "stop after N charges" primitive, so the cancellation check is the
// compensating control that terminates the subscription.
type Tracker struct {
	repo     Repository
	provider ProviderAPI
	now      func() time.Time
}

func NewTracker(repo Repository, provider ProviderAPI) *Tracker {
	return &Tracker{repo: repo, provider: provider, now: time.Now}
}

// OnInvoicePaid handles a subscription_cycle invoice: one installment has
// been collected.
func (t *Tracker) OnInvoicePaid(ctx context.Context, customerEmail string) {
	_ = ctx
	email := strings.ToLower(strings.TrimSpace(customerEmail))
	if email == "" {
		log.Printf("installments: cycle invoice without customer email, skipping")
		return
	}

	client, err := t.repo.FindClientByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("installments: no client for %s, skipping cycle", email)
		} else {
			log.Printf("installments: client lookup for %s failed: %v", email, err)
		}
		return
	}

	// A missing counter means the completed-session event never landed;
	// assume a full plan minus the first charge.
	remaining := 2
	if client.InstallmentsRemaining != nil {
		remaining = *client.InstallmentsRemaining
	}
	remaining--
	if remaining < 0 {
		remaining = 0
	}

	now := t.now()
	client.InstallmentsRemaining = &remaining
	client.LastInstallmentAt = &now
	if remaining <= 0 {
		client.PaymentStatus = models.PaymentStatusPaid
	} else {
		client.PaymentStatus = models.PaymentStatusInstallmentsActive
	}

	if err := t.repo.SaveClient(client); err != nil {
		log.Printf("installments: client update for %s failed: %v", email, err)
		return
	}
	log.Printf("installments: %s has %d installment(s) remaining", email, remaining)
}

// OnSubscriptionUpdated checks whether an installment subscription has
// collected all of its cycles and, if so, cancels it.
func (t *Tracker) OnSubscriptionUpdated(ctx context.Context, sub SubscriptionUpdate) {
	if sub.Metadata[checkout.MetaTotalPayments] != strconv.Itoa(pricing.InstallmentCount) {
		return
	}
	if strings.TrimSpace(sub.ID) == "" {
		return
	}

	paid, err := t.provider.CountPaidInvoices(ctx, sub.ID)
	if err != nil {
		log.Printf("installments: paid invoice count for %s failed: %v", sub.ID, err)
		return
	}
	if paid < pricing.InstallmentCount {
		return
	}

	if err := t.provider.CancelSubscription(ctx, sub.ID); err != nil {
		log.Printf("installments: cancelling %s failed: %v", sub.ID, err)
		return
	}
	log.Printf("installments: subscription %s completed %d cycles, cancelled", sub.ID, paid)
}
