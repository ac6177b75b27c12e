package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/estateline/estateline/internal/pkg/env"
	"github.com/estateline/estateline/internal/pkg/pricing"
	"github.com/estateline/estateline/internal/pkg/promo"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Metadata keys carried across the async boundary. Every field the webhook
// leg consumes must be reconstructable from these plus the provider's own
// event fields.
const (
	MetaServiceType      = "serviceType"
	MetaProbateType      = "probateType"
	MetaAccountingAddon  = "accountingAddon"
	MetaPaymentPlan      = "paymentPlan"
	MetaCaseID           = "caseId"
	MetaCustomerEmail    = "customerEmail"
	MetaPromoCode        = "promoCode"
	MetaTotalAmountCents = "totalAmountCents"
	MetaTotalPayments    = "totalPayments"
)

// Config holds the provider-side wiring for the builder. A missing or
// placeholder price ID is treated as unconfigured.
type Config struct {
	BaseURL string
	// PriceIDs maps priced components to provider price identifiers.
	PriceIDs map[string]string
}

// Price map keys, one per priced component.
const (
	ComponentSimplified        = "simplified"
	ComponentFull              = "full"
	ComponentAccountingSimple  = "accounting_simple"
	ComponentAccountingComplex = "accounting_complex"
	ComponentCourtRemote       = "court_remote"
	ComponentCourtContested    = "court_contested"
)

// ConfigFromEnv reads the builder configuration the way the rest of the
// process reads its settings.
func ConfigFromEnv() Config {
	return Config{
		BaseURL: env.GetEnv("APP_BASE_URL", "http://localhost:4000"),
		PriceIDs: map[string]string{
			ComponentSimplified:        env.GetEnv("STRIPE_PRICE_SIMPLIFIED", ""),
			ComponentFull:              env.GetEnv("STRIPE_PRICE_FULL", ""),
			ComponentAccountingSimple:  env.GetEnv("STRIPE_PRICE_ACCOUNTING_SIMPLE", ""),
			ComponentAccountingComplex: env.GetEnv("STRIPE_PRICE_ACCOUNTING_COMPLEX", ""),
			ComponentCourtRemote:       env.GetEnv("STRIPE_PRICE_COURT_REMOTE", ""),
			ComponentCourtContested:    env.GetEnv("STRIPE_PRICE_COURT_CONTESTED", ""),
		},
	}
}

// Session is the caller-facing result of a successful build.
type Session struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Builder composes provider checkout sessions from priced selections.
type Builder struct {
	sc  *client.API
	cfg Config
}

func NewBuilder(sc *client.API, cfg Config) *Builder {
	return &Builder{sc: sc, cfg: cfg}
}

// Build prices the selection and creates the provider checkout session.
// An invalid or zero promo result keeps manual promo entry enabled at
// checkout.
func (b *Builder) Build(ctx context.Context, sel pricing.Selection, customerEmail, caseID string, promoRes promo.Result) (*Session, error) {
	sel = pricing.Normalize(sel)
	total, err := pricing.ComputeTotal(sel)
	if err != nil {
		return nil, err
	}

	params, err := b.buildParams(sel, total, customerEmail, caseID, promoRes)
	if err != nil {
		return nil, err
	}
	params.Context = ctx

	session, err := b.sc.CheckoutSessions.New(params)
	if err != nil {
		classified := classifyProviderError(err)
		log.Printf("checkout: session creation failed: %v", classified)
		return nil, classified
	}

	return &Session{SessionID: session.ID, URL: session.URL}, nil
}

// buildParams is deterministic and side-effect free so the session shape can
// be asserted without talking to the provider.
func (b *Builder) buildParams(sel pricing.Selection, total int64, customerEmail, caseID string, promoRes promo.Result) (*stripe.CheckoutSessionParams, error) {
	metadata := map[string]string{
		MetaServiceType:      sel.ServiceType,
		MetaProbateType:      sel.ProbateType,
		MetaAccountingAddon:  sel.AccountingAddon,
		MetaPaymentPlan:      sel.PaymentPlan,
		MetaCaseID:           caseID,
		MetaCustomerEmail:    customerEmail,
		MetaTotalAmountCents: strconv.FormatInt(total, 10),
	}
	if promoRes.Valid {
		metadata[MetaPromoCode] = promoRes.NormalizedCode
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL:    stripe.String(b.cfg.BaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(b.cfg.BaseURL + "/payment/cancelled"),
		CustomerEmail: stripe.String(customerEmail),
	}
	params.Metadata = metadata

	if sel.PaymentPlan == pricing.PlanInstallments {
		installment := pricing.InstallmentAmount(total)
		// Mirror the metadata into the subscription itself: some provider
		// events expose subscription metadata but not session metadata.
		subMeta := make(map[string]string, len(metadata)+1)
		for k, v := range metadata {
			subMeta[k] = v
		}
		subMeta[MetaTotalPayments] = strconv.Itoa(pricing.InstallmentCount)

		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(installment),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf(
							"Probate Service Installment Plan (%d monthly payments, %s total)",
							pricing.InstallmentCount, formatUSD(total),
						)),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval:      stripe.String(string(stripe.PriceRecurringIntervalMonth)),
						IntervalCount: stripe.Int64(1),
					},
				},
			},
		}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: subMeta,
		}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		lineItems, err := b.paymentLineItems(sel)
		if err != nil {
			return nil, err
		}
		params.LineItems = lineItems
	}

	// A validated promo attaches its coupon and disables manual entry so the
	// two cannot stack. Otherwise the hosted page accepts codes directly.
	if promoRes.Valid {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(promoRes.CouponID)},
		}
	} else {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	return params, nil
}

// paymentLineItems resolves one line item per priced component for a
// one-time payment session.
func (b *Builder) paymentLineItems(sel pricing.Selection) ([]*stripe.CheckoutSessionLineItemParams, error) {
	var components []string
	switch sel.ServiceType {
	case pricing.ServiceSimplified:
		components = append(components, ComponentSimplified)
	case pricing.ServiceFull:
		components = append(components, ComponentFull)
	}
	switch sel.AccountingAddon {
	case pricing.AddonSimple:
		components = append(components, ComponentAccountingSimple)
	case pricing.AddonComplex:
		components = append(components, ComponentAccountingComplex)
	}
	switch sel.CourtAppearance {
	case pricing.CourtRemote:
		components = append(components, ComponentCourtRemote)
	case pricing.CourtContested:
		components = append(components, ComponentCourtContested)
	}

	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(components))
	for _, component := range components {
		priceID, ok := b.priceIDFor(component)
		if !ok {
			return nil, &ConfigError{Component: component}
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		})
	}
	return items, nil
}

func (b *Builder) priceIDFor(component string) (string, bool) {
	id := strings.TrimSpace(b.cfg.PriceIDs[component])
	if id == "" || isPlaceholderPriceID(id) {
		return "", false
	}
	return id, true
}

// isPlaceholderPriceID catches copy-paste template values left in the
// environment.
func isPlaceholderPriceID(id string) bool {
	switch strings.ToLower(id) {
	case "price_xxx", "price_placeholder", "changeme", "todo":
		return true
	}
	return false
}

func classifyProviderError(err error) *ProviderError {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		detail := stripeErr.Msg
		if stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			if strings.Contains(strings.ToLower(stripeErr.Msg), "coupon") ||
				strings.Contains(strings.ToLower(stripeErr.Param), "coupon") ||
				strings.Contains(strings.ToLower(stripeErr.Param), "discounts") {
				return &ProviderError{Kind: ProviderPromo, Detail: detail}
			}
			return &ProviderError{Kind: ProviderPayment, Detail: detail}
		}
		return &ProviderError{Kind: ProviderUnavailable, Detail: detail}
	}
	return &ProviderError{Kind: ProviderUnavailable, Detail: err.Error()}
}

func formatUSD(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
