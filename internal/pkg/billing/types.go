package billing

import "time"

// EventSource identifies which upstream asserted an entitlement change.
type EventSource string

const (
	SourceStripe     EventSource = "stripe"
	SourceRevenueCat EventSource = "revenuecat"
)

// EventKind is the normalized action an event maps to.
type EventKind string

const (
	KindActivate   EventKind = "activate"
	KindDeactivate EventKind = "deactivate"
)

// EntitlementEvent is the provider-agnostic shape produced by the classifiers
// and consumed exactly once by the reconciler. It is never persisted as-is.
type EntitlementEvent struct {
	UserID      string
	Source      EventSource
	Kind        EventKind
	RenewalAt   *time.Time
	CustomerRef string
	// OccurredAt is the instant the event claims to describe, not the time it
	// arrived here. Defaults to receipt time when the provider sends none.
	OccurredAt time.Time
	// RawEventType keeps the original provider vocabulary for logging/audit.
	RawEventType string
}

// Classification is the outcome of interpreting a verified webhook payload.
// Event is nil when the delivery must be acknowledged without reconciling
// (irrelevant event type, or no resolvable local user).
type Classification struct {
	ProviderEventID string
	EventType       string
	Event           *EntitlementEvent
	IgnoreReason    string
}

// Ignore reasons surfaced in logs and processing markers.
const (
	IgnoreEventTypeNotRelevant = "event_type_not_relevant"
	IgnoreUserUnresolved       = "user_unresolved"
)
