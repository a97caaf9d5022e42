package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/scanlyhq/entitlement-gateway/internal/pkg/cache"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/config"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/database"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/env"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid gateway configuration: %v", err)
	}

	database.SetupDatabase()
	cache.SetupCache()

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // webhook payloads are small JSON envelopes
	})

	// correlation id for webhook log lines
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			cfg.MetricsUser: cfg.MetricsPass,
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app, cfg)

	return app
}
