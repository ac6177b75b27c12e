package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/estateline/estateline/app/models"
	"github.com/estateline/estateline/internal/pkg/checkout"
	"github.com/estateline/estateline/internal/pkg/payments"
	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Reconciler applies confirmed-payment events to local records.
type Reconciler interface {
	Reconcile(ctx context.Context, in payments.ReconcileInput) payments.ReconcileResult
	RecordEvent(ctx context.Context, in payments.EventInput) (bool, *models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, eventID uint, processingErr error)
}

// InstallmentTracker advances payment-plan progress from recurring events.
type InstallmentTracker interface {
	OnInvoicePaid(ctx context.Context, customerEmail string)
	OnSubscriptionUpdated(ctx context.Context, sub payments.SubscriptionUpdate)
}

// WebhookController serves the asynchronous confirmation leg.
type WebhookController struct {
	reconciler    Reconciler
	tracker       InstallmentTracker
	signingSecret string
}

func NewWebhookController(reconciler Reconciler, tracker InstallmentTracker, signingSecret string) *WebhookController {
	return &WebhookController{
		reconciler:    reconciler,
		tracker:       tracker,
		signingSecret: signingSecret,
	}
}

// Event payload shapes, decoded from event.Data.Raw. Only the fields the
// reconciliation path reads; everything else stays in the stored payload.
type checkoutSessionPayload struct {
	ID              string `json:"id"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	AmountTotal int64             `json:"amount_total"`
	Metadata    map[string]string `json:"metadata"`
}

type invoicePayload struct {
	BillingReason string `json:"billing_reason"`
	CustomerEmail string `json:"customer_email"`
}

type subscriptionPayload struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	var event stripe.Event
	signatureValid := false
	if wc.signingSecret != "" && signature != "" {
		verified, err := webhook.ConstructEventWithOptions(rawBody, signature, wc.signingSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			log.Printf("webhook: signature verification failed: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
		}
		event = verified
		signatureValid = true
	} else {
		log.Printf("webhook: WARNING accepting unverified event, signing secret or Stripe-Signature header missing")
		if err := json.Unmarshal(rawBody, &event); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
		}
	}
	if event.Data == nil {
		event.Data = &stripe.EventData{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Audit trail only. Processing does not gate on first delivery, so a
	// redelivered event runs the same mutations again.
	var eventID uint
	_, stored, err := wc.reconciler.RecordEvent(ctx, payments.EventInput{
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Printf("webhook: storing event %s failed: %v", event.ID, err)
	} else if stored != nil {
		eventID = stored.ID
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		wc.handleCheckoutCompleted(ctx, event.Data.Raw, eventID)
	case "invoice.paid":
		wc.handleInvoicePaid(ctx, event.Data.Raw, eventID)
	case "customer.subscription.updated":
		wc.handleSubscriptionUpdated(ctx, event.Data.Raw, eventID)
	default:
		wc.reconciler.MarkProcessed(ctx, eventID, nil)
	}

	return c.JSON(fiber.Map{"received": true})
}

func (wc *WebhookController) handleCheckoutCompleted(ctx context.Context, raw json.RawMessage, eventID uint) {
	var session checkoutSessionPayload
	if err := json.Unmarshal(raw, &session); err != nil {
		log.Printf("webhook: decoding checkout session failed: %v", err)
		wc.reconciler.MarkProcessed(ctx, eventID, err)
		return
	}

	email := session.Metadata[checkout.MetaCustomerEmail]
	if email == "" {
		email = session.CustomerEmail
	}
	if email == "" {
		email = session.CustomerDetails.Email
	}
	if email == "" {
		log.Printf("webhook: checkout session %s carries no customer email, skipping", session.ID)
		wc.reconciler.MarkProcessed(ctx, eventID, errors.New("no customer email on session"))
		return
	}

	res := wc.reconciler.Reconcile(ctx, payments.ReconcileInput{
		CustomerEmail:    email,
		ProbateType:      session.Metadata[checkout.MetaProbateType],
		PaymentPlan:      session.Metadata[checkout.MetaPaymentPlan],
		SessionID:        session.ID,
		CaseID:           session.Metadata[checkout.MetaCaseID],
		PromoCode:        session.Metadata[checkout.MetaPromoCode],
		AmountTotalCents: session.AmountTotal,
	})
	if res.Success {
		wc.reconciler.MarkProcessed(ctx, eventID, nil)
	} else {
		wc.reconciler.MarkProcessed(ctx, eventID, errors.New("reconciliation incomplete"))
	}
}

func (wc *WebhookController) handleInvoicePaid(ctx context.Context, raw json.RawMessage, eventID uint) {
	var invoice invoicePayload
	if err := json.Unmarshal(raw, &invoice); err != nil {
		log.Printf("webhook: decoding invoice failed: %v", err)
		wc.reconciler.MarkProcessed(ctx, eventID, err)
		return
	}

	// The first installment is charged through the checkout session itself;
	// only recurring cycles advance the counter.
	if invoice.BillingReason == "subscription_cycle" && invoice.CustomerEmail != "" {
		wc.tracker.OnInvoicePaid(ctx, invoice.CustomerEmail)
	}
	wc.reconciler.MarkProcessed(ctx, eventID, nil)
}

func (wc *WebhookController) handleSubscriptionUpdated(ctx context.Context, raw json.RawMessage, eventID uint) {
	var sub subscriptionPayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		log.Printf("webhook: decoding subscription failed: %v", err)
		wc.reconciler.MarkProcessed(ctx, eventID, err)
		return
	}

	wc.tracker.OnSubscriptionUpdated(ctx, payments.SubscriptionUpdate{
		ID:       sub.ID,
		Metadata: sub.Metadata,
	})
	wc.reconciler.MarkProcessed(ctx, eventID, nil)
}
