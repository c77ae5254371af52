package repository

import (
	"time"

	"github.com/ManuelReschke/TeacherTime/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	TouchAPIKeyUsage(settingsID uint, at time.Time) error
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// EntitlementRepository defines read access to entitlements for reporting
type EntitlementRepository interface {
	GetByID(id uint) (*models.Entitlement, error)
	GetByUserID(userID uint) ([]models.Entitlement, error)
	GetByOrganizationID(orgID uint) ([]models.Entitlement, error)
	CountByStatus() (map[string]int64, error)
}

// WebhookEventRepository defines read access to the webhook ledger
type WebhookEventRepository interface {
	GetByID(id uint) (*models.WebhookEvent, error)
	List(offset, limit int) ([]models.WebhookEvent, error)
	ListFailed(offset, limit int) ([]models.WebhookEvent, error)
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Entitlement  EntitlementRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Entitlement:  NewEntitlementRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
