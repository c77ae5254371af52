package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/TeacherTime/app/models"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func uintPtr(v uint) *uint { return &v }

func TestUserRepository_APIKey(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositories(db).User

	user := &models.User{Name: "Anna", Email: "anna@school.example", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}
	require.NoError(t, repo.Create(user))

	settings, err := models.GetOrCreateUserSettings(db, user.ID)
	require.NoError(t, err)
	raw, err := settings.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, db.Save(settings).Error)

	got, gotSettings, err := repo.GetByAPIKeyHash(models.HashAPIKey(raw))
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, settings.ID, gotSettings.ID)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TouchAPIKeyUsage(settings.ID, now))
	_, gotSettings, err = repo.GetByAPIKeyHash(models.HashAPIKey(raw))
	require.NoError(t, err)
	require.NotNil(t, gotSettings.APIKeyLastUsedAt)
	assert.True(t, gotSettings.APIKeyLastUsedAt.Equal(now))

	_, _, err = repo.GetByAPIKeyHash("")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	settings.RevokeAPIKey()
	require.NoError(t, db.Save(settings).Error)
	_, _, err = repo.GetByAPIKeyHash(models.HashAPIKey(raw))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_Lookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	require.NoError(t, repo.Create(&models.User{Name: "Anna", Email: "anna@school.example"}))
	require.NoError(t, repo.Create(&models.User{Name: "Beat", Email: "beat@school.example"}))

	u, err := repo.GetByEmail(" Anna@School.example ")
	require.NoError(t, err)
	assert.Equal(t, "Anna", u.Name)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, repo.Delete(u.ID))
	_, err = repo.GetByID(u.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	list, err := repo.List(0, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEntitlementRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewEntitlementRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := []models.Entitlement{
		{UserID: uintPtr(1), Kind: models.EntitlementKindTrial, Source: models.EntitlementSourceSystem, Status: models.EntitlementStatusExpired, ValidFrom: now},
		{UserID: uintPtr(1), Kind: models.EntitlementKindPersonal, Source: models.EntitlementSourcePayrexx, Status: models.EntitlementStatusActive, ValidFrom: now},
		{OrganizationID: uintPtr(9), Kind: models.EntitlementKindOrgSeat, Source: models.EntitlementSourcePayrexx, Status: models.EntitlementStatusActive, Seats: 12, ValidFrom: now},
	}
	require.NoError(t, db.Create(&rows).Error)

	mine, err := repo.GetByUserID(1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, models.EntitlementKindPersonal, mine[0].Kind)

	org, err := repo.GetByOrganizationID(9)
	require.NoError(t, err)
	require.Len(t, org, 1)
	assert.Equal(t, 12, org[0].Seats)

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"active": 2, "expired": 1}, counts)
}

func TestWebhookEventRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewWebhookEventRepository(db)
	msg := "lookup failed"

	events := []models.WebhookEvent{
		{Provider: models.WebhookProviderPayrexx, EventKey: "payrexx:evt:1", EventType: "transaction.confirmed", PayloadJSON: "{}", Processed: true},
		{Provider: models.WebhookProviderPayrexx, EventKey: "payrexx:evt:2", EventType: "transaction.waiting", PayloadJSON: "{}", ProcessingError: &msg, Attempts: 1},
	}
	require.NoError(t, db.Create(&events).Error)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	failed, err := repo.ListFailed(0, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "payrexx:evt:2", failed[0].EventKey)

	got, err := repo.GetByID(events[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)

	all, err := repo.List(0, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, events[1].ID, all[0].ID)
}

func TestFactory(t *testing.T) {
	db := newTestDB(t)
	f := NewFactory(db)
	assert.Same(t, f.GetRepositories(), f.GetRepositories())
	assert.NotNil(t, f.GetUserRepository())
	assert.NotNil(t, f.GetEntitlementRepository())
	assert.NotNil(t, f.GetWebhookEventRepository())
}
