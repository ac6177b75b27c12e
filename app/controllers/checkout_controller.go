package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/estateline/estateline/internal/pkg/checkout"
	"github.com/estateline/estateline/internal/pkg/pricing"
	"github.com/estateline/estateline/internal/pkg/promo"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CheckoutRequest is the request-leg payload from the intake UI.
type CheckoutRequest struct {
	ServiceType     string `json:"serviceType" validate:"required"`
	ProbateType     string `json:"probateType"`
	AccountingAddon string `json:"accountingAddon"`
	CourtAppearance string `json:"courtAppearance"`
	PaymentPlan     string `json:"paymentPlan" validate:"required"`
	CustomerEmail   string `json:"customerEmail" validate:"required,email"`
	CaseID          string `json:"caseId"`
	PromoCode       string `json:"promoCode"`
}

// SessionBuilder creates provider checkout sessions.
type SessionBuilder interface {
	Build(ctx context.Context, sel pricing.Selection, customerEmail, caseID string, promoRes promo.Result) (*checkout.Session, error)
}

// PromoValidator checks promo codes, failing closed.
type PromoValidator interface {
	Validate(code string) promo.Result
}

// CheckoutController serves the synchronous request leg.
type CheckoutController struct {
	builder  SessionBuilder
	promos   PromoValidator
	validate *validator.Validate
}

func NewCheckoutController(builder SessionBuilder, promos PromoValidator) *CheckoutController {
	return &CheckoutController{
		builder:  builder,
		promos:   promos,
		validate: validator.New(),
	}
}

func (cc *CheckoutController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := cc.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing or invalid required fields"})
	}

	sel := pricing.Normalize(pricing.Selection{
		ServiceType:     req.ServiceType,
		ProbateType:     req.ProbateType,
		AccountingAddon: req.AccountingAddon,
		CourtAppearance: req.CourtAppearance,
		PaymentPlan:     req.PaymentPlan,
		PromoCode:       req.PromoCode,
	})
	if err := pricing.Validate(sel); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	promoRes := promo.Result{}
	if req.PromoCode != "" {
		promoRes = cc.promos.Validate(req.PromoCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	session, err := cc.builder.Build(ctx, sel, req.CustomerEmail, req.CaseID, promoRes)
	if err != nil {
		return writeCheckoutError(c, err)
	}

	return c.JSON(fiber.Map{"url": session.URL, "sessionId": session.SessionID})
}

// writeCheckoutError maps the error taxonomy onto sanitized responses. Raw
// provider text only ever appears in the diagnostics details field.
func writeCheckoutError(c *fiber.Ctx, err error) error {
	var validationErr *pricing.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Error()})
	}

	var cfgErr *checkout.ConfigError
	if errors.As(err, &cfgErr) {
		log.Printf("checkout: configuration error: %v", cfgErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": cfgErr.UserMessage()})
	}

	var provErr *checkout.ProviderError
	if errors.As(err, &provErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   provErr.UserMessage(),
			"details": provErr.Detail,
		})
	}

	log.Printf("checkout: unexpected error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": checkout.MsgTryAgain})
}
