package billing

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	stripeCheckoutCompleted   = "checkout.session.completed"
	stripeSubscriptionPrefix  = "customer.subscription."
	stripeSubscriptionDeleted = "customer.subscription.deleted"
)

type stripeEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	Status           string            `json:"status"`
	Customer         string            `json:"customer"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

// ClassifyStripeEvent maps a verified card-processor payload to a normalized
// entitlement event. checkout.session.completed and subscriptions in an
// active/trialing status activate; a deleted subscription or any other status
// deactivates; every other event type is acknowledged but ignored. An error is
// returned only for unparseable JSON.
func ClassifyStripeEvent(payload []byte, receivedAt time.Time) (*Classification, error) {
	var envelope stripeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}

	eventType := strings.TrimSpace(envelope.Type)
	cls := &Classification{
		ProviderEventID: strings.TrimSpace(envelope.ID),
		EventType:       eventType,
	}

	occurredAt := receivedAt
	if envelope.Created > 0 {
		occurredAt = time.Unix(envelope.Created, 0).UTC()
	}

	switch {
	case eventType == stripeCheckoutCompleted:
		var session stripeCheckoutSession
		if err := json.Unmarshal(envelope.Data.Object, &session); err != nil {
			return nil, err
		}
		userID := firstNonEmpty(session.ClientReferenceID, session.Metadata["user_id"])
		if userID == "" {
			cls.IgnoreReason = IgnoreUserUnresolved
			return cls, nil
		}
		cls.Event = &EntitlementEvent{
			UserID:       userID,
			Source:       SourceStripe,
			Kind:         KindActivate,
			CustomerRef:  strings.TrimSpace(session.Customer),
			OccurredAt:   occurredAt,
			RawEventType: eventType,
		}
		return cls, nil

	case strings.HasPrefix(eventType, stripeSubscriptionPrefix):
		var sub stripeSubscription
		if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
			return nil, err
		}
		userID := strings.TrimSpace(sub.Metadata["user_id"])
		if userID == "" {
			cls.IgnoreReason = IgnoreUserUnresolved
			return cls, nil
		}
		kind := KindDeactivate
		if eventType != stripeSubscriptionDeleted && isEntitlingStripeStatus(sub.Status) {
			kind = KindActivate
		}
		event := &EntitlementEvent{
			UserID:       userID,
			Source:       SourceStripe,
			Kind:         kind,
			CustomerRef:  strings.TrimSpace(sub.Customer),
			OccurredAt:   occurredAt,
			RawEventType: eventType,
		}
		if kind == KindActivate && sub.CurrentPeriodEnd > 0 {
			renewal := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			event.RenewalAt = &renewal
		}
		cls.Event = event
		return cls, nil

	default:
		cls.IgnoreReason = IgnoreEventTypeNotRelevant
		return cls, nil
	}
}

func isEntitlingStripeStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
