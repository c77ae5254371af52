package models

import "time"

const WebhookProviderPayrexx = "payrexx"

// WebhookEvent is the append-only ledger of inbound payment notifications.
// EventKey is the derived idempotency key. A processed row is never
// reprocessed; an unprocessed row with a ProcessingError is eligible for retry.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	EventKey        string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_key"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false" json:"signature_valid"`
	Processed       bool       `gorm:"not null;default:false;index:idx_webhook_events_retry,priority:1" json:"processed"`
	ProcessingError *string    `gorm:"type:text" json:"processing_error,omitempty"`
	ProcessingNote  string     `gorm:"type:text" json:"processing_note,omitempty"`
	Attempts        int        `gorm:"not null;default:0;index:idx_webhook_events_retry,priority:2" json:"attempts"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ArchivedAt      *time.Time `gorm:"type:timestamp;default:null;index" json:"archived_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRetryable reports whether a failed event may be processed again.
func (e *WebhookEvent) IsRetryable() bool {
	return !e.Processed && e.ProcessingError != nil
}
