package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

const (
	ORG_ROLE_MEMBER = "member"
	ORG_ROLE_ADMIN  = "admin"
)

// User is the account a teacher signs in with. Sign-up and login live in the
// client apps; this service only reads users to authorize billing calls.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email          string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Role           string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status         string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	OrganizationID *uint          `gorm:"index" json:"organization_id,omitempty"`
	OrgRole        string         `gorm:"type:varchar(20);default:''" json:"org_role,omitempty" validate:"omitempty,oneof=member admin"`
	LastLoginAt    *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// CanPurchaseForOrganization reports whether the user may buy seats for orgID.
func (u *User) CanPurchaseForOrganization(orgID uint) bool {
	if u.OrganizationID == nil || *u.OrganizationID != orgID {
		return false
	}
	return u.OrgRole == ORG_ROLE_ADMIN || u.Role == ROLE_ADMIN
}
