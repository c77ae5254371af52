package repository

import (
	"github.com/ManuelReschke/TeacherTime/app/models"
	"gorm.io/gorm"
)

type entitlementRepository struct {
	db *gorm.DB
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

func (r *entitlementRepository) GetByID(id uint) (*models.Entitlement, error) {
	var e models.Entitlement
	if err := r.db.First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByUserID returns all entitlements of a user, newest first
func (r *entitlementRepository) GetByUserID(userID uint) ([]models.Entitlement, error) {
	var list []models.Entitlement
	err := r.db.Where("user_id = ?", userID).Order("id DESC").Find(&list).Error
	return list, err
}

// GetByOrganizationID returns the org-wide seat entitlements
func (r *entitlementRepository) GetByOrganizationID(orgID uint) ([]models.Entitlement, error) {
	var list []models.Entitlement
	err := r.db.Where("organization_id = ?", orgID).Order("id DESC").Find(&list).Error
	return list, err
}

// CountByStatus returns the number of entitlements per status
func (r *entitlementRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.Model(&models.Entitlement{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
