package billing

import (
	"encoding/json"
	"strings"
	"time"
)

// Fixed partition of the aggregator vocabulary. Anything not listed is
// acknowledged but ignored (TRANSFER, TEST, SUBSCRIBER_ALIAS, ...).
var revenueCatActivate = map[string]bool{
	"INITIAL_PURCHASE": true,
	"RENEWAL":          true,
	"PRODUCT_CHANGE":   true,
	"REACTIVATION":     true,
	"UNCANCELLATION":   true,
}

var revenueCatDeactivate = map[string]bool{
	"CANCELLATION":  true,
	"EXPIRATION":    true,
	"BILLING_ISSUE": true,
}

type revenueCatEnvelope struct {
	Event struct {
		ID               string `json:"id"`
		Type             string `json:"type"`
		AppUserID        string `json:"app_user_id"`
		ExpirationAtMs   int64  `json:"expiration_at_ms"`
		EventTimestampMs int64  `json:"event_timestamp_ms"`
	} `json:"event"`
}

// ClassifyRevenueCatEvent maps a verified IAP-aggregator payload to a
// normalized entitlement event. An error is returned only for unparseable
// JSON; a missing app user id yields an acknowledged no-op classification.
func ClassifyRevenueCatEvent(payload []byte, receivedAt time.Time) (*Classification, error) {
	var envelope revenueCatEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}

	eventType := strings.ToUpper(strings.TrimSpace(envelope.Event.Type))
	cls := &Classification{
		ProviderEventID: strings.TrimSpace(envelope.Event.ID),
		EventType:       eventType,
	}

	var kind EventKind
	switch {
	case revenueCatActivate[eventType]:
		kind = KindActivate
	case revenueCatDeactivate[eventType]:
		kind = KindDeactivate
	default:
		cls.IgnoreReason = IgnoreEventTypeNotRelevant
		return cls, nil
	}

	userID := strings.TrimSpace(envelope.Event.AppUserID)
	if userID == "" {
		cls.IgnoreReason = IgnoreUserUnresolved
		return cls, nil
	}

	occurredAt := receivedAt
	if envelope.Event.EventTimestampMs > 0 {
		occurredAt = time.UnixMilli(envelope.Event.EventTimestampMs).UTC()
	}

	event := &EntitlementEvent{
		UserID:       userID,
		Source:       SourceRevenueCat,
		Kind:         kind,
		OccurredAt:   occurredAt,
		RawEventType: eventType,
	}
	if kind == KindActivate && envelope.Event.ExpirationAtMs > 0 {
		renewal := time.UnixMilli(envelope.Event.ExpirationAtMs).UTC()
		event.RenewalAt = &renewal
	}
	cls.Event = event
	return cls, nil
}
