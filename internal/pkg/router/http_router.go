package router

import (
	"time"

	"github.com/estateline/estateline/app/controllers"
	"github.com/estateline/estateline/internal/pkg/env"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type HttpRouter struct {
	checkout *controllers.CheckoutController
	webhook  *controllers.WebhookController
}

func NewHttpRouter(checkout *controllers.CheckoutController, webhook *controllers.WebhookController) *HttpRouter {
	return &HttpRouter{checkout: checkout, webhook: webhook}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	// The intake form posts from the public site, so the session endpoint
	// answers browser preflights. Webhook deliveries are server to server
	// and skip both CORS and the rate limit.
	app.Use("/create-checkout-session", cors.New(cors.Config{
		AllowOrigins: env.GetEnv("CORS_ALLOW_ORIGINS", "*"),
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "Content-Type",
	}), limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
	}))
	app.Post("/create-checkout-session", h.checkout.HandleCreateCheckoutSession)

	app.Post("/stripe-webhook", h.webhook.HandleStripeWebhook)
}
