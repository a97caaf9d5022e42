package counter

import (
	"context"
	"fmt"

	"github.com/scanlyhq/entitlement-gateway/internal/pkg/cache"
)

// Webhook processing outcomes tracked per provider.
const (
	OutcomeApplied   = "applied"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeStale     = "stale"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

const webhookCountersKeyFmt = "webhook:counters:%s"

// AddWebhookOutcome increments the outcome counter for a provider in Redis.
func AddWebhookOutcome(provider, outcome string) error {
	ctx := context.Background()
	key := fmt.Sprintf(webhookCountersKeyFmt, provider)
	return cache.GetClient().HIncrBy(ctx, key, outcome, 1).Err()
}

// WebhookOutcomes returns the accumulated outcome counters for a provider.
func WebhookOutcomes(provider string) (map[string]string, error) {
	ctx := context.Background()
	key := fmt.Sprintf(webhookCountersKeyFmt, provider)
	return cache.GetClient().HGetAll(ctx, key).Result()
}
