package repository

import (
	"github.com/ManuelReschke/TeacherTime/app/models"
	"gorm.io/gorm"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook ledger repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	if err := r.db.First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns ledger rows, newest first
func (r *webhookEventRepository) List(offset, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}

// ListFailed returns unprocessed rows that recorded an error
func (r *webhookEventRepository) ListFailed(offset, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("processed = ? AND processing_error IS NOT NULL", false).
		Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}

func (r *webhookEventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookEvent{}).Count(&count).Error
	return count, err
}
