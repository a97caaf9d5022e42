package controllers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/scanlyhq/entitlement-gateway/app/models"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/billing"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/cache"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/config"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/metrics/counter"
)

const webhookTimeout = 15 * time.Second

// WebhookController serves the two provider webhook endpoints. Each request
// walks verify -> classify -> record -> reconcile; redelivered events either
// dedupe on the provider event id or reconcile to the same record, so the
// endpoints are safe under the providers' at-least-once redelivery.
type WebhookController struct {
	cfg *config.Gateway
	svc *billing.Service
	now func() time.Time
}

func NewWebhookController(cfg *config.Gateway, svc *billing.Service) *WebhookController {
	return &WebhookController{cfg: cfg, svc: svc, now: time.Now}
}

func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	receivedAt := wc.now()

	if !billing.VerifyStripeSignature(rawBody, signature, wc.cfg.StripeWebhookSecret, wc.cfg.StripeTolerance(), receivedAt) {
		log.Printf("stripe webhook rejected: bad signature (prefix %q)", signaturePrefix(signature))
		_ = counter.AddWebhookOutcome(models.BillingProviderStripe, counter.OutcomeRejected)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	cls, err := billing.ClassifyStripeEvent(rawBody, receivedAt)
	if err != nil {
		_ = counter.AddWebhookOutcome(models.BillingProviderStripe, counter.OutcomeRejected)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	return wc.finishWebhook(c, models.BillingProviderStripe, rawBody, cls, true)
}

func (wc *WebhookController) HandleRevenueCatWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	receivedAt := wc.now()

	authenticated := false
	switch {
	case wc.cfg.RevenueCatWebhookSecret != "":
		authenticated = billing.VerifyRevenueCatAuthorization(authorization, wc.cfg.RevenueCatWebhookSecret)
	case wc.cfg.RevenueCatAllowUnauthenticated:
		// Explicit opt-in, loudly logged at startup.
		authenticated = true
	}
	if !authenticated {
		log.Printf("revenuecat webhook rejected: bad authorization (prefix %q)", signaturePrefix(authorization))
		_ = counter.AddWebhookOutcome(models.BillingProviderRevenueCat, counter.OutcomeRejected)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_authorization"})
	}

	cls, err := billing.ClassifyRevenueCatEvent(rawBody, receivedAt)
	if err != nil {
		_ = counter.AddWebhookOutcome(models.BillingProviderRevenueCat, counter.OutcomeRejected)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	return wc.finishWebhook(c, models.BillingProviderRevenueCat, rawBody, cls, wc.cfg.RevenueCatWebhookSecret != "")
}

func (wc *WebhookController) finishWebhook(c *fiber.Ctx, provider string, rawBody []byte, cls *billing.Classification, signatureValid bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	created, stored, err := wc.svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        provider,
		ProviderEventID: cls.ProviderEventID,
		EventType:       cls.EventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		_ = counter.AddWebhookOutcome(provider, counter.OutcomeFailed)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// Only redeliveries of a settled event short-circuit. An event whose
	// reconcile failed (or never ran) must fall through so the provider's
	// retry actually re-applies it; reconciling again is idempotent.
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		_ = counter.AddWebhookOutcome(provider, counter.OutcomeDuplicate)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}

	if cls.Event == nil {
		log.Printf("%s webhook %q acknowledged without reconcile: %s", provider, cls.EventType, cls.IgnoreReason)
		if markErr := wc.svc.MarkWebhookProcessed(ctx, stored.ID, nil); markErr != nil {
			log.Printf("%s webhook event %d: failed to mark processed: %v", provider, stored.ID, markErr)
		}
		_ = counter.AddWebhookOutcome(provider, counter.OutcomeIgnored)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
	}

	record, applied, err := wc.svc.ApplyEvent(ctx, *cls.Event)
	if markErr := wc.svc.MarkWebhookProcessed(ctx, stored.ID, err); markErr != nil {
		log.Printf("%s webhook event %d: failed to mark processed: %v", provider, stored.ID, markErr)
	}
	if err != nil {
		_ = counter.AddWebhookOutcome(provider, counter.OutcomeFailed)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "entitlement_sync_failed"})
	}

	if applied {
		_ = cache.Delete(entitlementCacheKey(record.UserID))
		_ = counter.AddWebhookOutcome(provider, counter.OutcomeApplied)
	} else {
		_ = counter.AddWebhookOutcome(provider, counter.OutcomeStale)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// signaturePrefix truncates header material for log lines; full signatures
// and secrets must never be logged.
func signaturePrefix(signature string) string {
	if len(signature) <= 8 {
		return signature
	}
	return signature[:8] + "..."
}
