package config

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/env"
)

// Gateway bundles every secret and policy knob the webhook pipeline needs.
// It is loaded once at startup and injected into controllers so that the
// verification/classification/reconciliation core never touches process env.
type Gateway struct {
	StripeWebhookSecret    string `validate:"required"`
	StripeToleranceSeconds int    `validate:"min=1"`

	RevenueCatWebhookSecret string
	// RevenueCatAllowUnauthenticated accepts aggregator webhooks without a
	// shared secret (trusted-network setups). Must be enabled explicitly.
	RevenueCatAllowUnauthenticated bool

	ServiceAPIToken string `validate:"required"`

	MetricsUser string
	MetricsPass string
}

// StripeTolerance is the accepted clock skew for signed webhook timestamps.
func (g *Gateway) StripeTolerance() time.Duration {
	return time.Duration(g.StripeToleranceSeconds) * time.Second
}

// Load reads the gateway configuration from the environment and validates it.
func Load() (*Gateway, error) {
	tolerance, err := strconv.Atoi(env.GetEnv("STRIPE_TOLERANCE_SECONDS", "300"))
	if err != nil {
		return nil, errors.New("STRIPE_TOLERANCE_SECONDS must be an integer")
	}

	cfg := &Gateway{
		StripeWebhookSecret:            strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		StripeToleranceSeconds:         tolerance,
		RevenueCatWebhookSecret:        strings.TrimSpace(env.GetEnv("REVENUECAT_WEBHOOK_SECRET", "")),
		RevenueCatAllowUnauthenticated: env.GetEnv("REVENUECAT_ALLOW_UNAUTHENTICATED", "false") == "true",
		ServiceAPIToken:                strings.TrimSpace(env.GetEnv("SERVICE_API_TOKEN", "")),
		MetricsUser:                    env.GetEnv("METRICS_USER", "admin"),
		MetricsPass:                    env.GetEnv("METRICS_PASS", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	if cfg.RevenueCatWebhookSecret == "" {
		if !cfg.RevenueCatAllowUnauthenticated {
			return nil, errors.New("REVENUECAT_WEBHOOK_SECRET is not set; set it or opt in with REVENUECAT_ALLOW_UNAUTHENTICATED=true")
		}
		log.Print("WARNING: RevenueCat webhooks are accepted WITHOUT authentication (REVENUECAT_ALLOW_UNAUTHENTICATED=true). Only safe behind platform-level ingress control.")
	}

	return cfg, nil
}
