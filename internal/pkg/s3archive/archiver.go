package s3archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuelReschke/TeacherTime/app/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Ledger is the part of the webhook ledger the archiver needs.
type Ledger interface {
	ListUnarchivedWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error)
	MarkWebhookArchived(ctx context.Context, id uint, at time.Time) error
}

// Uploader stores one object.
type Uploader interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// Archiver copies processed ledger rows to object storage. The database row
// stays in place; only ArchivedAt is set.
type Archiver struct {
	ledger   Ledger
	uploader Uploader
	config   *Config
	now      func() time.Time
}

func NewArchiver(ledger Ledger, uploader Uploader, cfg *Config) *Archiver {
	return &Archiver{
		ledger:   ledger,
		uploader: uploader,
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// archiveDocument is the JSON stored per event.
type archiveDocument struct {
	ID             uint            `json:"id"`
	Provider       string          `json:"provider"`
	EventKey       string          `json:"event_key"`
	EventType      string          `json:"event_type"`
	SignatureValid bool            `json:"signature_valid"`
	Attempts       int             `json:"attempts"`
	Note           string          `json:"processing_note,omitempty"`
	ReceivedAt     time.Time       `json:"received_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

func documentFor(e models.WebhookEvent) ([]byte, error) {
	payload := json.RawMessage(e.PayloadJSON)
	if !json.Valid(payload) {
		quoted, err := json.Marshal(e.PayloadJSON)
		if err != nil {
			return nil, err
		}
		payload = quoted
	}
	return json.Marshal(archiveDocument{
		ID:             e.ID,
		Provider:       e.Provider,
		EventKey:       e.EventKey,
		EventType:      e.EventType,
		SignatureValid: e.SignatureValid,
		Attempts:       e.Attempts,
		Note:           e.ProcessingNote,
		ReceivedAt:     e.CreatedAt,
		ProcessedAt:    e.ProcessedAt,
		Payload:        payload,
	})
}

// Run archives up to limit processed events and returns how many were
// uploaded. Upload failures leave the row for the next run.
func (a *Archiver) Run(ctx context.Context, limit int) (int, error) {
	events, err := a.ledger.ListUnarchivedWebhookEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unarchived webhook events: %w", err)
	}

	archived := 0
	for _, e := range events {
		if ctx.Err() != nil {
			return archived, ctx.Err()
		}
		body, err := documentFor(e)
		if err != nil {
			fiberlog.Errorf("[S3Archive] Encoding event %d failed: %v", e.ID, err)
			continue
		}
		key := a.config.ObjectKey(e.ID, e.EventKey, e.CreatedAt)
		if err := a.uploader.PutObject(ctx, key, body, "application/json"); err != nil {
			fiberlog.Warnf("[S3Archive] Upload of event %d failed: %v", e.ID, err)
			continue
		}
		if err := a.ledger.MarkWebhookArchived(ctx, e.ID, a.now()); err != nil {
			return archived, fmt.Errorf("mark webhook event %d archived: %w", e.ID, err)
		}
		archived++
	}
	if archived > 0 {
		fiberlog.Infof("[S3Archive] Archived %d webhook events", archived)
	}
	return archived, nil
}
