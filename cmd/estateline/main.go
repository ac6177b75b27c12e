package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/estateline/estateline/app/controllers"
	"github.com/estateline/estateline/internal/pkg/checkout"
	"github.com/estateline/estateline/internal/pkg/database"
	"github.com/estateline/estateline/internal/pkg/env"
	"github.com/estateline/estateline/internal/pkg/mail"
	"github.com/estateline/estateline/internal/pkg/payments"
	"github.com/estateline/estateline/internal/pkg/promo"
	"github.com/estateline/estateline/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	db := database.SetupDatabase()

	secretKey := env.GetEnv("STRIPE_SECRET_KEY", "")
	if secretKey == "" {
		log.Println("WARNING: STRIPE_SECRET_KEY is not set, checkout session creation will fail")
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)

	repo := payments.NewRepository(db)
	notifier := payments.NewNotifier(mail.NewFromEnv(), env.GetEnv("ADMIN_EMAIL", ""))
	reconciler := payments.NewService(repo, notifier)
	tracker := payments.NewTracker(repo, payments.NewStripeAPI(sc))

	builder := checkout.NewBuilder(sc, checkout.ConfigFromEnv())
	promoValidator := promo.NewValidator(promo.NewStore(db))

	checkoutCtl := controllers.NewCheckoutController(builder, promoValidator)
	webhookCtl := controllers.NewWebhookController(reconciler, tracker, env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))

	app := fiber.New(fiber.Config{
		AppName: "EstateLine Payments",
	})

	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.NewHttpRouter(checkoutCtl, webhookCtl))

	return app
}
