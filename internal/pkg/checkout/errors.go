package checkout

import "fmt"

// User-facing messages. Internal identifiers and raw provider errors never
// reach the caller; Detail carries best-effort diagnostics for logs and the
// 500 response's details field.
const (
	MsgContactSupport = "There is a configuration problem with this payment option. Please contact support."
	MsgPromoConfig    = "There is a problem with the promo code configuration. Please contact support."
	MsgPaymentConfig  = "There is a problem with the payment configuration. Please contact support."
	MsgTryAgain       = "We could not start the checkout. Please try again in a moment."
)

// ConfigError means an operator-fixable gap, e.g. a priced component with no
// configured provider price identifier.
type ConfigError struct {
	Component string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("no price configured for component %q", e.Component)
}

func (e *ConfigError) UserMessage() string { return MsgContactSupport }

// ProviderErrorKind classifies rejected provider requests so each category
// gets its own scrubbed user message.
type ProviderErrorKind int

const (
	ProviderPromo ProviderErrorKind = iota
	ProviderPayment
	ProviderUnavailable
)

// ProviderError wraps a provider rejection with its classification.
type ProviderError struct {
	Kind   ProviderErrorKind
	Detail string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider rejected checkout session: %s", e.Detail)
}

func (e *ProviderError) UserMessage() string {
	switch e.Kind {
	case ProviderPromo:
		return MsgPromoConfig
	case ProviderPayment:
		return MsgPaymentConfig
	default:
		return MsgTryAgain
	}
}
