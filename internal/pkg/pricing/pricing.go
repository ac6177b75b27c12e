package pricing

import (
	"fmt"
	"strings"
)

const (
	ServiceSimplified     = "simplified"
	ServiceFull           = "full"
	ServiceAccountingOnly = "accounting_only"
)

const (
	AddonNone    = "none"
	AddonSimple  = "simple"
	AddonComplex = "complex"
)

const (
	CourtNone      = "none"
	CourtRemote    = "remote"
	CourtContested = "contested"
)

const (
	PlanFull         = "full"
	PlanInstallments = "installments"
)

// Fixed prices in integer cents. No floating point anywhere in the money
// path.
const (
	PriceSimplifiedCents     int64 = 249500
	PriceFullCents           int64 = 599000
	PriceAddonSimpleCents    int64 = 99500
	PriceAddonComplexCents   int64 = 199500
	PriceCourtRemoteCents    int64 = 75000
	PriceCourtContestedCents int64 = 150000
)

// InstallmentCount is the number of monthly cycles an installment plan runs
// before it is cancelled.
const InstallmentCount = 3

// Selection is a validated purchase configuration.
type Selection struct {
	ServiceType     string
	ProbateType     string
	AccountingAddon string
	CourtAppearance string
	PaymentPlan     string
	PromoCode       string
}

// ValidationError reports a user-correctable problem with a selection.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Normalize fills enum defaults so that an absent addon or court appearance
// reads as "none".
func Normalize(sel Selection) Selection {
	sel.ServiceType = strings.TrimSpace(sel.ServiceType)
	if strings.TrimSpace(sel.AccountingAddon) == "" {
		sel.AccountingAddon = AddonNone
	}
	if strings.TrimSpace(sel.CourtAppearance) == "" {
		sel.CourtAppearance = CourtNone
	}
	return sel
}

// Validate checks every enum against its allowed set and enforces that
// accounting_only carries a non-none addon.
func Validate(sel Selection) error {
	switch sel.ServiceType {
	case ServiceSimplified, ServiceFull, ServiceAccountingOnly:
	default:
		return &ValidationError{Field: "serviceType", Reason: "must be simplified, full or accounting_only"}
	}
	switch sel.AccountingAddon {
	case AddonNone, AddonSimple, AddonComplex:
	default:
		return &ValidationError{Field: "accountingAddon", Reason: "must be none, simple or complex"}
	}
	switch sel.CourtAppearance {
	case CourtNone, CourtRemote, CourtContested:
	default:
		return &ValidationError{Field: "courtAppearance", Reason: "must be none, remote or contested"}
	}
	switch sel.PaymentPlan {
	case PlanFull, PlanInstallments:
	default:
		return &ValidationError{Field: "paymentPlan", Reason: "must be full or installments"}
	}
	if sel.ServiceType == ServiceAccountingOnly && sel.AccountingAddon == AddonNone {
		return &ValidationError{Field: "accountingAddon", Reason: "accounting_only requires an accounting addon"}
	}
	return nil
}

// ComputeTotal maps a selection to its total in cents. Same selection always
// yields the same total.
func ComputeTotal(sel Selection) (int64, error) {
	sel = Normalize(sel)
	if err := Validate(sel); err != nil {
		return 0, err
	}

	var total int64
	switch sel.ServiceType {
	case ServiceSimplified:
		total += PriceSimplifiedCents
	case ServiceFull:
		total += PriceFullCents
	case ServiceAccountingOnly:
		// no base price, the addon carries the charge
	}
	switch sel.AccountingAddon {
	case AddonSimple:
		total += PriceAddonSimpleCents
	case AddonComplex:
		total += PriceAddonComplexCents
	}
	switch sel.CourtAppearance {
	case CourtRemote:
		total += PriceCourtRemoteCents
	case CourtContested:
		total += PriceCourtContestedCents
	}
	return total, nil
}

// InstallmentAmount is the per-cycle charge: ceil(total / InstallmentCount).
func InstallmentAmount(totalCents int64) int64 {
	return (totalCents + InstallmentCount - 1) / InstallmentCount
}
