package checkout

import (
	"errors"
	"testing"

	"github.com/estateline/estateline/internal/pkg/pricing"
	"github.com/estateline/estateline/internal/pkg/promo"
	"github.com/stripe/stripe-go/v82"
)

func testConfig() Config {
	return Config{
		BaseURL: "https://pay.example.test",
		PriceIDs: map[string]string{
			ComponentSimplified:        "price_simplified",
			ComponentFull:              "price_full",
			ComponentAccountingSimple:  "price_acct_simple",
			ComponentAccountingComplex: "price_acct_complex",
			ComponentCourtRemote:       "price_court_remote",
			ComponentCourtContested:    "price_court_contested",
		},
	}
}

func TestBuildParamsPaymentMode(t *testing.T) {
	b := NewBuilder(nil, testConfig())
	sel := pricing.Selection{
		ServiceType:     pricing.ServiceSimplified,
		ProbateType:     "simplified",
		AccountingAddon: pricing.AddonComplex,
		CourtAppearance: pricing.CourtNone,
		PaymentPlan:     pricing.PlanFull,
	}

	params, err := b.buildParams(sel, 449000, "heir@example.com", "case-42", promo.Result{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := stripe.StringValue(params.Mode); got != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("mode = %q, want payment", got)
	}
	if len(params.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(params.LineItems))
	}
	if got := stripe.StringValue(params.LineItems[0].Price); got != "price_simplified" {
		t.Fatalf("service line item price = %q", got)
	}
	if got := stripe.StringValue(params.LineItems[1].Price); got != "price_acct_complex" {
		t.Fatalf("addon line item price = %q", got)
	}
	if params.SubscriptionData != nil {
		t.Fatalf("payment mode must not carry subscription data")
	}
	if params.Metadata[MetaTotalAmountCents] != "449000" {
		t.Fatalf("metadata total = %q", params.Metadata[MetaTotalAmountCents])
	}
	if params.Metadata[MetaCaseID] != "case-42" {
		t.Fatalf("metadata caseId = %q", params.Metadata[MetaCaseID])
	}
	if params.Metadata[MetaCustomerEmail] != "heir@example.com" {
		t.Fatalf("metadata customerEmail = %q", params.Metadata[MetaCustomerEmail])
	}
	// No valid promo: manual entry stays enabled.
	if params.Discounts != nil {
		t.Fatalf("expected no discounts without a promo")
	}
	if !stripe.BoolValue(params.AllowPromotionCodes) {
		t.Fatalf("expected manual promotion codes to be allowed")
	}
}

func TestBuildParamsAccountingOnlyHasNoServiceLineItem(t *testing.T) {
	b := NewBuilder(nil, testConfig())
	sel := pricing.Selection{
		ServiceType:     pricing.ServiceAccountingOnly,
		AccountingAddon: pricing.AddonSimple,
		CourtAppearance: pricing.CourtNone,
		PaymentPlan:     pricing.PlanFull,
	}

	params, err := b.buildParams(sel, 99500, "heir@example.com", "", promo.Result{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("expected exactly the addon line item, got %d", len(params.LineItems))
	}
	if got := stripe.StringValue(params.LineItems[0].Price); got != "price_acct_simple" {
		t.Fatalf("line item price = %q", got)
	}
}

func TestBuildParamsInstallmentsMode(t *testing.T) {
	b := NewBuilder(nil, testConfig())
	sel := pricing.Selection{
		ServiceType:     pricing.ServiceFull,
		ProbateType:     "full",
		AccountingAddon: pricing.AddonNone,
		CourtAppearance: pricing.CourtNone,
		PaymentPlan:     pricing.PlanInstallments,
	}

	params, err := b.buildParams(sel, 599000, "heir@example.com", "case-7", promo.Result{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := stripe.StringValue(params.Mode); got != string(stripe.CheckoutSessionModeSubscription) {
		t.Fatalf("mode = %q, want subscription", got)
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("expected a single dynamic line item, got %d", len(params.LineItems))
	}
	pd := params.LineItems[0].PriceData
	if pd == nil {
		t.Fatalf("expected dynamic price data")
	}
	if got := stripe.Int64Value(pd.UnitAmount); got != 199667 {
		t.Fatalf("installment amount = %d, want 199667", got)
	}
	if pd.Recurring == nil || stripe.StringValue(pd.Recurring.Interval) != "month" {
		t.Fatalf("expected monthly recurrence")
	}
	if params.SubscriptionData == nil {
		t.Fatalf("expected subscription metadata mirror")
	}
	if params.SubscriptionData.Metadata[MetaTotalPayments] != "3" {
		t.Fatalf("subscription totalPayments = %q, want 3", params.SubscriptionData.Metadata[MetaTotalPayments])
	}
	if params.SubscriptionData.Metadata[MetaCustomerEmail] != "heir@example.com" {
		t.Fatalf("subscription metadata must mirror the session metadata")
	}
	if params.Metadata[MetaTotalPayments] != "" {
		t.Fatalf("session-level totalPayments belongs to subscriptions only")
	}
}

func TestBuildParamsAttachesValidPromo(t *testing.T) {
	b := NewBuilder(nil, testConfig())
	sel := pricing.Selection{
		ServiceType: pricing.ServiceSimplified,
		PaymentPlan: pricing.PlanFull,
	}

	params, err := b.buildParams(pricing.Normalize(sel), 249500, "heir@example.com", "", promo.Result{
		Valid:          true,
		CouponID:       "coup_99",
		NormalizedCode: "SPRING25",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(params.Discounts) != 1 || stripe.StringValue(params.Discounts[0].Coupon) != "coup_99" {
		t.Fatalf("expected coupon coup_99 attached")
	}
	if params.AllowPromotionCodes != nil {
		t.Fatalf("manual promo entry must be disabled when a coupon is attached")
	}
	if params.Metadata[MetaPromoCode] != "SPRING25" {
		t.Fatalf("metadata promoCode = %q", params.Metadata[MetaPromoCode])
	}
}

func TestBuildParamsUnconfiguredPriceIsConfigError(t *testing.T) {
	cfg := testConfig()
	cfg.PriceIDs[ComponentCourtContested] = "price_xxx"
	b := NewBuilder(nil, cfg)
	sel := pricing.Selection{
		ServiceType:     pricing.ServiceFull,
		AccountingAddon: pricing.AddonNone,
		CourtAppearance: pricing.CourtContested,
		PaymentPlan:     pricing.PlanFull,
	}

	_, err := b.buildParams(sel, 749000, "heir@example.com", "", promo.Result{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.UserMessage() != MsgContactSupport {
		t.Fatalf("config errors must surface the contact-support message")
	}
}

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ProviderErrorKind
	}{
		{
			name: "coupon invalid request",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such coupon: 'coup_x'"},
			want: ProviderPromo,
		},
		{
			name: "discounts param rejected",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Param: "discounts[0][coupon]", Msg: "Invalid value"},
			want: ProviderPromo,
		},
		{
			name: "other invalid request",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such price: 'price_y'"},
			want: ProviderPayment,
		},
		{
			name: "api outage",
			err:  &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "something went wrong"},
			want: ProviderUnavailable,
		},
		{
			name: "transport error",
			err:  errors.New("connection refused"),
			want: ProviderUnavailable,
		},
	}

	for _, tt := range tests {
		got := classifyProviderError(tt.err)
		if got.Kind != tt.want {
			t.Fatalf("%s: kind = %d, want %d", tt.name, got.Kind, tt.want)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	if got := formatUSD(599000); got != "$5990.00" {
		t.Fatalf("formatUSD(599000) = %q", got)
	}
	if got := formatUSD(99505); got != "$995.05" {
		t.Fatalf("formatUSD(99505) = %q", got)
	}
}
