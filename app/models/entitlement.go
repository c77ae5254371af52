package models

import "time"

const (
	EntitlementKindTrial    = "trial"
	EntitlementKindPersonal = "personal"
	EntitlementKindOrgSeat  = "org_seat"
	EntitlementKindStudent  = "student"
)

const (
	EntitlementSourceSystem  = "system"
	EntitlementSourcePayrexx = "payrexx"
	EntitlementSourceEduID   = "eduid"
	EntitlementSourceManual  = "manual"
)

const (
	EntitlementStatusPending = "pending"
	EntitlementStatusActive  = "active"
	EntitlementStatusRevoked = "revoked"
	EntitlementStatusExpired = "expired"
)

// Entitlement is a time-bounded grant of product access for a user or an
// organization. A nil ValidUntil means the grant does not end.
type Entitlement struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                *uint      `gorm:"index" json:"user_id,omitempty"`
	OrganizationID        *uint      `gorm:"index" json:"organization_id,omitempty"`
	Kind                  string     `gorm:"type:varchar(20);not null;index" json:"kind"`
	Source                string     `gorm:"type:varchar(20);not null" json:"source"`
	Status                string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Seats                 int        `gorm:"not null;default:1" json:"seats"`
	ValidFrom             time.Time  `gorm:"not null" json:"valid_from"`
	ValidUntil            *time.Time `gorm:"default:null;index" json:"valid_until,omitempty"`
	BillingSubscriptionID string     `gorm:"type:varchar(191);default:''" json:"billing_subscription_id,omitempty"`
	CheckoutSessionID     *uint      `gorm:"index" json:"checkout_session_id,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
