package billing

import (
	"strings"

	"github.com/scanlyhq/entitlement-gateway/app/models"
)

// Reconcile merges a normalized event into the persisted entitlement record
// (pass nil when the user has no record yet) and returns the resulting record.
//
// Ordering rule: last writer wins by asserted event time. An event older than
// the record's LastEventAt is stale and leaves the record unchanged no matter
// which provider sent it or in which order the HTTP layer saw it. Ties go to
// the incoming event; within-provider redelivery at an identical timestamp is
// idempotent anyway.
func Reconcile(existing *models.EntitlementRecord, event EntitlementEvent) models.EntitlementRecord {
	var record models.EntitlementRecord
	if existing != nil {
		record = *existing
		if record.LastEventAt != nil && event.OccurredAt.Before(*record.LastEventAt) {
			return record
		}
	}

	record.UserID = event.UserID
	record.IsEntitled = event.Kind == KindActivate
	// Explicit overwrite, including to null: a deactivation or an activation
	// without a renewal instant clears any previously stored one.
	record.RenewalAt = event.RenewalAt
	occurredAt := event.OccurredAt
	record.LastEventAt = &occurredAt

	// Monotonic: the processor customer handle is set once and never cleared
	// by events that do not carry one (the aggregator never does).
	if ref := strings.TrimSpace(event.CustomerRef); ref != "" {
		record.BillingCustomerRef = ref
	}

	return record
}
