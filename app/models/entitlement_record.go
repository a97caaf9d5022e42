package models

import "time"

// EntitlementRecord is the canonical paid-access state for one app user.
// It is created on the first webhook event seen for the user and mutated in
// place afterwards; the gateway never deletes it. LastEventAt carries the
// asserted time of the event that produced the current values and is the
// sole input for ordering/conflict resolution.
type EntitlementRecord struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"user_id"`
	IsEntitled         bool       `gorm:"not null;default:false;index" json:"is_entitled"`
	RenewalAt          *time.Time `gorm:"type:timestamp;default:null" json:"renewal_at,omitempty"`
	BillingCustomerRef string     `gorm:"type:varchar(191);not null;default:''" json:"billing_customer_ref,omitempty"`
	LastEventAt        *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasBillingCustomer reports whether a processor customer handle is already
// linked. Once set it is never cleared by later events.
func (r *EntitlementRecord) HasBillingCustomer() bool {
	return r != nil && r.BillingCustomerRef != ""
}
