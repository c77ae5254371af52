package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TeacherTime/app/models"
	"github.com/ManuelReschke/TeacherTime/app/repository"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/billing"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/usercontext"
)

// AccountController serves the caller's own account data.
type AccountController struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	service  *billing.Service
}

func NewAccountController(db *gorm.DB, userRepo repository.UserRepository, service *billing.Service) *AccountController {
	return &AccountController{db: db, userRepo: userRepo, service: service}
}

// HandleGetUserAccount returns account information for the authenticated user.
func (ac *AccountController) HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return unauthorized(c)
	}

	account, err := ac.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	settings, err := models.GetOrCreateUserSettings(ac.db, account.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user settings")
	}

	_, active, err := ac.service.ListEntitlements(c.UserContext(), account)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load entitlements")
	}

	return c.JSON(fiber.Map{
		"id":                   account.ID,
		"username":             account.Name,
		"email":                account.Email,
		"status":               account.Status,
		"is_admin":             account.Role == models.ROLE_ADMIN,
		"organization_id":      account.OrganizationID,
		"org_role":             account.OrgRole,
		"has_active_license":   active,
		"created_at":           account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at":        formatTimePtr(account.LastLoginAt),
		"api_key_prefix":       settings.APIKeyPrefix,
		"api_key_last_used_at": formatTimePtr(settings.APIKeyLastUsedAt),
	})
}

// HandleRotateAPIKey issues a new API key and invalidates the one used for
// this request. The raw key is only returned once.
func (ac *AccountController) HandleRotateAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return unauthorized(c)
	}

	settings, err := models.GetOrCreateUserSettings(ac.db, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user settings")
	}
	raw, err := settings.IssueAPIKey()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to generate API key")
	}
	if err := ac.db.Save(settings).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to store API key")
	}
	fiberlog.Infof("[Auth] API key rotated for user %d", userCtx.UserID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    raw,
		"prefix":     settings.APIKeyPrefix,
		"created_at": formatTimePtr(settings.APIKeyCreatedAt),
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
