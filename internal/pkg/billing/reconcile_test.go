package billing

import (
	"testing"
	"time"

	"github.com/scanlyhq/entitlement-gateway/app/models"
)

func ts(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}

func tsPtr(unix int64) *time.Time {
	t := ts(unix)
	return &t
}

func TestReconcileFirstEvent(t *testing.T) {
	renewal := ts(2000)
	event := EntitlementEvent{
		UserID:      "u1",
		Source:      SourceStripe,
		Kind:        KindActivate,
		RenewalAt:   &renewal,
		CustomerRef: "cus_abc",
		OccurredAt:  ts(100),
	}

	record := Reconcile(nil, event)
	if record.UserID != "u1" || !record.IsEntitled {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.RenewalAt == nil || !record.RenewalAt.Equal(renewal) {
		t.Fatalf("expected renewal %v, got %v", renewal, record.RenewalAt)
	}
	if record.LastEventAt == nil || !record.LastEventAt.Equal(ts(100)) {
		t.Fatalf("expected last_event_at %v, got %v", ts(100), record.LastEventAt)
	}
	if record.BillingCustomerRef != "cus_abc" {
		t.Fatalf("expected customer ref cus_abc, got %q", record.BillingCustomerRef)
	}
}

func TestReconcileStaleEventDiscarded(t *testing.T) {
	existing := &models.EntitlementRecord{
		UserID:             "u1",
		IsEntitled:         true,
		RenewalAt:          tsPtr(2000),
		LastEventAt:        tsPtr(100),
		BillingCustomerRef: "cus_abc",
	}
	stale := EntitlementEvent{
		UserID:     "u1",
		Source:     SourceRevenueCat,
		Kind:       KindDeactivate,
		OccurredAt: ts(50),
	}

	record := Reconcile(existing, stale)
	if !record.IsEntitled {
		t.Fatalf("stale deactivation must not flip entitlement")
	}
	if record.LastEventAt == nil || !record.LastEventAt.Equal(ts(100)) {
		t.Fatalf("stale event must not advance last_event_at, got %v", record.LastEventAt)
	}
	if record.RenewalAt == nil || !record.RenewalAt.Equal(ts(2000)) {
		t.Fatalf("stale event must not touch renewal_at, got %v", record.RenewalAt)
	}
}

func TestReconcileTieGoesToIncoming(t *testing.T) {
	existing := &models.EntitlementRecord{
		UserID:      "u1",
		IsEntitled:  true,
		LastEventAt: tsPtr(100),
	}
	event := EntitlementEvent{
		UserID:     "u1",
		Source:     SourceStripe,
		Kind:       KindDeactivate,
		OccurredAt: ts(100),
	}

	record := Reconcile(existing, event)
	if record.IsEntitled {
		t.Fatalf("equal timestamps must apply the incoming event")
	}
}

func TestReconcileIdempotentRedelivery(t *testing.T) {
	renewal := ts(2000)
	event := EntitlementEvent{
		UserID:      "u1",
		Source:      SourceStripe,
		Kind:        KindActivate,
		RenewalAt:   &renewal,
		CustomerRef: "cus_abc",
		OccurredAt:  ts(100),
	}

	first := Reconcile(nil, event)
	second := Reconcile(&first, event)
	if second.IsEntitled != first.IsEntitled ||
		!timePtrEqual(second.RenewalAt, first.RenewalAt) ||
		!timePtrEqual(second.LastEventAt, first.LastEventAt) ||
		second.BillingCustomerRef != first.BillingCustomerRef {
		t.Fatalf("redelivery changed the record: %+v vs %+v", first, second)
	}
}

func TestReconcileRenewalOverwrittenExplicitly(t *testing.T) {
	existing := &models.EntitlementRecord{
		UserID:      "u1",
		IsEntitled:  true,
		RenewalAt:   tsPtr(2000),
		LastEventAt: tsPtr(100),
	}
	// An activation without a renewal instant clears the stored one.
	record := Reconcile(existing, EntitlementEvent{
		UserID:     "u1",
		Kind:       KindActivate,
		OccurredAt: ts(200),
	})
	if record.RenewalAt != nil {
		t.Fatalf("expected renewal_at cleared, got %v", record.RenewalAt)
	}

	record = Reconcile(existing, EntitlementEvent{
		UserID:     "u1",
		Kind:       KindDeactivate,
		OccurredAt: ts(200),
	})
	if record.RenewalAt != nil || record.IsEntitled {
		t.Fatalf("deactivation must clear renewal and entitlement, got %+v", record)
	}
}

func TestReconcileCustomerRefMonotonic(t *testing.T) {
	existing := &models.EntitlementRecord{
		UserID:             "u1",
		IsEntitled:         true,
		LastEventAt:        tsPtr(100),
		BillingCustomerRef: "cus_abc",
	}
	// Aggregator events carry no processor handle; it must survive.
	record := Reconcile(existing, EntitlementEvent{
		UserID:     "u1",
		Source:     SourceRevenueCat,
		Kind:       KindDeactivate,
		OccurredAt: ts(200),
	})
	if record.BillingCustomerRef != "cus_abc" {
		t.Fatalf("customer ref must never regress, got %q", record.BillingCustomerRef)
	}
}

// Convergence: u1 receives a checkout at t=100 carrying cus_abc, then an
// aggregator expiration asserted at t=50, then a subscription deletion at
// t=200. Regardless of HTTP arrival order the record must end not entitled,
// with last_event_at=200 and cus_abc retained.
func TestReconcileOutOfOrderConvergence(t *testing.T) {
	checkout := EntitlementEvent{
		UserID:      "u1",
		Source:      SourceStripe,
		Kind:        KindActivate,
		CustomerRef: "cus_abc",
		OccurredAt:  ts(100),
	}
	expiration := EntitlementEvent{
		UserID:     "u1",
		Source:     SourceRevenueCat,
		Kind:       KindDeactivate,
		OccurredAt: ts(50),
	}
	deleted := EntitlementEvent{
		UserID:     "u1",
		Source:     SourceStripe,
		Kind:       KindDeactivate,
		OccurredAt: ts(200),
	}

	orders := [][]EntitlementEvent{
		{checkout, expiration, deleted},
		{checkout, deleted, expiration},
		{expiration, checkout, deleted},
		{expiration, deleted, checkout},
		{deleted, checkout, expiration},
		{deleted, expiration, checkout},
	}

	for i, order := range orders {
		var record *models.EntitlementRecord
		for _, event := range order {
			next := Reconcile(record, event)
			record = &next
		}
		if record.IsEntitled {
			t.Fatalf("order %d: expected not entitled, got %+v", i, record)
		}
		if record.LastEventAt == nil || !record.LastEventAt.Equal(ts(200)) {
			t.Fatalf("order %d: expected last_event_at=200, got %v", i, record.LastEventAt)
		}
	}

	// The orders in which the checkout is not stale must retain the handle.
	var record *models.EntitlementRecord
	for _, event := range []EntitlementEvent{checkout, expiration, deleted} {
		next := Reconcile(record, event)
		record = &next
	}
	if record.BillingCustomerRef != "cus_abc" {
		t.Fatalf("expected cus_abc retained, got %q", record.BillingCustomerRef)
	}
}
