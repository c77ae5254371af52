package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CheckoutStatusPending   = "pending"
	CheckoutStatusCompleted = "completed"
	CheckoutStatusFailed    = "failed"
	CheckoutStatusCancelled = "cancelled"
	CheckoutStatusExpired   = "expired"
)

// CheckoutSession is one attempt to purchase a license. It is created before the
// user is redirected to the payment page and only mutated by webhook
// reconciliation or the expiry sweep. Rows are never deleted.
type CheckoutSession struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	OrganizationID *uint          `gorm:"index" json:"organization_id,omitempty"`
	PlanID         string         `gorm:"type:varchar(50);not null" json:"plan_id"`
	Quantity       int            `gorm:"not null;default:1" json:"quantity"`
	AmountMinor    int64          `gorm:"not null" json:"amount_minor"`
	Currency       string         `gorm:"type:varchar(3);not null" json:"currency"`
	Status         string         `gorm:"type:varchar(20);not null;default:'pending';index:idx_checkout_sessions_status_expiry,priority:1" json:"status"`
	ReferenceID    string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"reference_id"`
	GatewayID      string         `gorm:"type:varchar(191);default:''" json:"gateway_id"`
	TransactionID  string         `gorm:"type:varchar(191);default:''" json:"transaction_id"`
	FailureReason  string         `gorm:"type:text" json:"failure_reason,omitempty"`
	Metadata       datatypes.JSON `json:"metadata"`
	CompletedAt    *time.Time     `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	ExpiresAt      time.Time      `gorm:"not null;index:idx_checkout_sessions_status_expiry,priority:2" json:"expires_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the session left the pending state.
func (s *CheckoutSession) IsTerminal() bool {
	return s.Status != CheckoutStatusPending
}

// IsFailureStatus reports whether status is one of the terminal non-success states.
func IsFailureStatus(status string) bool {
	switch status {
	case CheckoutStatusFailed, CheckoutStatusCancelled, CheckoutStatusExpired:
		return true
	default:
		return false
	}
}

// CanTransitionCheckout allows only pending -> terminal moves.
func CanTransitionCheckout(from, to string) bool {
	if from != CheckoutStatusPending {
		return false
	}
	return to == CheckoutStatusCompleted || IsFailureStatus(to)
}
