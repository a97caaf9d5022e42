package billing

import (
	"testing"
	"time"
)

func TestClassifyRevenueCatEventVocabulary(t *testing.T) {
	tests := []struct {
		eventType string
		wantKind  EventKind
	}{
		{"INITIAL_PURCHASE", KindActivate},
		{"RENEWAL", KindActivate},
		{"PRODUCT_CHANGE", KindActivate},
		{"REACTIVATION", KindActivate},
		{"UNCANCELLATION", KindActivate},
		{"CANCELLATION", KindDeactivate},
		{"EXPIRATION", KindDeactivate},
		{"BILLING_ISSUE", KindDeactivate},
	}

	for _, tt := range tests {
		raw := []byte(`{"event":{
			"id": "rc_1",
			"type": "` + tt.eventType + `",
			"app_user_id": "u1",
			"expiration_at_ms": 1702592200000,
			"event_timestamp_ms": 1700000200000
		}}`)
		cls, err := ClassifyRevenueCatEvent(raw, time.Now())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.eventType, err)
		}
		if cls.Event == nil {
			t.Fatalf("%s: expected event, got ignore reason %q", tt.eventType, cls.IgnoreReason)
		}
		if cls.Event.Kind != tt.wantKind {
			t.Fatalf("%s: kind = %q, want %q", tt.eventType, cls.Event.Kind, tt.wantKind)
		}
		if cls.Event.Source != SourceRevenueCat || cls.Event.UserID != "u1" {
			t.Fatalf("%s: unexpected event: %+v", tt.eventType, cls.Event)
		}
		if cls.Event.OccurredAt.UnixMilli() != 1700000200000 {
			t.Fatalf("%s: expected occurred_at from event_timestamp_ms, got %v", tt.eventType, cls.Event.OccurredAt)
		}
		if tt.wantKind == KindActivate {
			if cls.Event.RenewalAt == nil || cls.Event.RenewalAt.UnixMilli() != 1702592200000 {
				t.Fatalf("%s: expected renewal from expiration_at_ms, got %v", tt.eventType, cls.Event.RenewalAt)
			}
		} else if cls.Event.RenewalAt != nil {
			t.Fatalf("%s: deactivation must not carry a renewal instant", tt.eventType)
		}
	}
}

func TestClassifyRevenueCatEventIgnoredType(t *testing.T) {
	raw := []byte(`{"event":{"id":"rc_2","type":"TEST","app_user_id":"u1"}}`)
	cls, err := ClassifyRevenueCatEvent(raw, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Event != nil || cls.IgnoreReason != IgnoreEventTypeNotRelevant {
		t.Fatalf("expected TEST event to be ignored, got %+v", cls)
	}
	if cls.ProviderEventID != "rc_2" || cls.EventType != "TEST" {
		t.Fatalf("envelope fields must survive an ignore: %+v", cls)
	}
}

func TestClassifyRevenueCatEventMissingUser(t *testing.T) {
	raw := []byte(`{"event":{"id":"rc_3","type":"RENEWAL","app_user_id":"  "}}`)
	cls, err := ClassifyRevenueCatEvent(raw, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Event != nil || cls.IgnoreReason != IgnoreUserUnresolved {
		t.Fatalf("expected missing app_user_id to be a no-op, got %+v", cls)
	}
}

func TestClassifyRevenueCatEventMalformedJSON(t *testing.T) {
	if _, err := ClassifyRevenueCatEvent([]byte(`[`), time.Now()); err == nil {
		t.Fatalf("expected parse error for malformed payload")
	}
}

func TestClassifyRevenueCatEventOccurredAtDefaultsToReceipt(t *testing.T) {
	receivedAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	raw := []byte(`{"event":{"id":"rc_4","type":"EXPIRATION","app_user_id":"u1"}}`)
	cls, err := ClassifyRevenueCatEvent(raw, receivedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cls.Event.OccurredAt.Equal(receivedAt) {
		t.Fatalf("expected occurred_at to default to receipt time, got %v", cls.Event.OccurredAt)
	}
}
