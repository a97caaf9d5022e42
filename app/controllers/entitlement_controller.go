package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/scanlyhq/entitlement-gateway/app/models"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/billing"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/cache"
	"github.com/scanlyhq/entitlement-gateway/internal/pkg/metrics/counter"
	"gorm.io/gorm"
)

const entitlementCacheTTL = 60 * time.Second

// EntitlementController exposes the internal read API the app backend uses
// to check paid access without talking to the database directly.
type EntitlementController struct {
	svc *billing.Service
}

func NewEntitlementController(svc *billing.Service) *EntitlementController {
	return &EntitlementController{svc: svc}
}

func entitlementCacheKey(userID string) string {
	return "entitlement:user:" + userID
}

func (ec *EntitlementController) HandleEntitlementStatus(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("user_id"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id_required"})
	}

	if cached, err := cache.Get(entitlementCacheKey(userID)); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record, err := ec.svc.GetEntitlement(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No billing event seen for this user yet.
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"user_id": userID, "is_entitled": false})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "entitlement_lookup_failed"})
	}

	body, err := json.Marshal(fiber.Map{
		"user_id":              record.UserID,
		"is_entitled":          record.IsEntitled,
		"renewal_at":           formatTimePtr(record.RenewalAt),
		"billing_customer_ref": record.BillingCustomerRef,
		"last_event_at":        formatTimePtr(record.LastEventAt),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "entitlement_encode_failed"})
	}
	_ = cache.Set(entitlementCacheKey(userID), string(body), entitlementCacheTTL)

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(body)
}

func (ec *EntitlementController) HandleWebhookStats(c *fiber.Ctx) error {
	stats := fiber.Map{}
	for _, provider := range []string{models.BillingProviderStripe, models.BillingProviderRevenueCat} {
		outcomes, err := counter.WebhookOutcomes(provider)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
		}
		stats[provider] = outcomes
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}
