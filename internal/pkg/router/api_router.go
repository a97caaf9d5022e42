package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/scanlyhq/entitlement-gateway/app/controllers"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/billing"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/config"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/database"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/middleware"
)

type ApiRouter struct {
	cfg *config.Gateway
}

func NewApiRouter(cfg *config.Gateway) *ApiRouter {
	return &ApiRouter{cfg: cfg}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	entitlementCtrl := controllers.NewEntitlementController(billing.NewServiceFromDB(database.GetDB()))

	api := app.Group("/api", limiter.New())

	// Internal v1 routes, service-to-service only.
	v1 := api.Group("/v1", middleware.ServiceTokenAuth(h.cfg.ServiceAPIToken))
	v1.Get("/entitlements/:user_id", entitlementCtrl.HandleEntitlementStatus)
	v1.Get("/stats", entitlementCtrl.HandleWebhookStats)
}
