package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/scanlyhq/entitlement-gateway/app/models"
	"gorm.io/gorm"
)

// Service applies normalized entitlement events to persisted records and
// keeps the idempotent webhook event log.
type Service struct {
	repo Repository

	// userLocks serializes reconcile-and-persist per user id. Concurrent
	// deliveries for the same user (same or different providers) would
	// otherwise race on the read-modify-write and lose updates.
	userLocks sync.Map // user id -> *sync.Mutex
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// ApplyEvent reconciles one event into the user's entitlement record under
// the per-user lock. It reports whether the store was written: stale events
// and byte-identical redeliveries return the existing record unchanged.
func (s *Service) ApplyEvent(ctx context.Context, event EntitlementEvent) (*models.EntitlementRecord, bool, error) {
	_ = ctx
	if strings.TrimSpace(event.UserID) == "" {
		return nil, false, errors.New("user_id is required")
	}

	mu := s.lockFor(event.UserID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.repo.GetEntitlementByUserID(event.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	next := Reconcile(existing, event)
	if existing != nil && !recordChanged(existing, &next) {
		return existing, false, nil
	}

	if err := s.repo.UpsertEntitlement(&next); err != nil {
		return nil, false, err
	}
	return &next, true, nil
}

// GetEntitlement loads the current record for a user; gorm.ErrRecordNotFound
// means the user has never produced a billing event.
func (s *Service) GetEntitlement(ctx context.Context, userID string) (*models.EntitlementRecord, error) {
	_ = ctx
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user_id is required")
	}
	return s.repo.GetEntitlementByUserID(userID)
}

// RecordWebhookEvent persists webhook payloads idempotently. Events without a
// provider id fall back to a payload hash so redeliveries still deduplicate.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

func (s *Service) lockFor(userID string) *sync.Mutex {
	mu, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func recordChanged(old, next *models.EntitlementRecord) bool {
	return old.IsEntitled != next.IsEntitled ||
		old.BillingCustomerRef != next.BillingCustomerRef ||
		!timePtrEqual(old.RenewalAt, next.RenewalAt) ||
		!timePtrEqual(old.LastEventAt, next.LastEventAt)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
