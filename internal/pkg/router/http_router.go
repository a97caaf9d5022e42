package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/scanlyhq/entitlement-gateway/app/controllers"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/billing"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/config"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/database"
)

type HttpRouter struct {
	cfg *config.Gateway
}

func NewHttpRouter(cfg *config.Gateway) *HttpRouter {
	return &HttpRouter{cfg: cfg}
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	webhookCtrl := controllers.NewWebhookController(h.cfg, billing.NewServiceFromDB(database.GetDB()))

	// Provider webhooks (no CSRF, signature-verified in controller). The cors
	// middleware answers the OPTIONS preflight with 204.
	hooks := app.Group("/webhooks", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST,OPTIONS",
		AllowHeaders: "*",
	}))
	hooks.Post("/stripe", webhookCtrl.HandleStripeWebhook)
	hooks.Post("/revenuecat", webhookCtrl.HandleRevenueCatWebhook)

	app.Get("/up", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}
