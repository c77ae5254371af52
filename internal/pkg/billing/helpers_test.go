package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/TeacherTime/app/models"
)

const testWebhookSecret = "whsec_test"

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.CheckoutSession{},
		&models.WebhookEvent{},
		&models.Entitlement{},
	))
	return db
}

type fakeProvider struct {
	mu           sync.Mutex
	transactions map[string]TransactionRecord
	lookupErr    error
	lookups      int
	gatewayErr   error
	gateways     []GatewayRequest
}

func (f *fakeProvider) GetTransaction(_ context.Context, id string) (*TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	tx, ok := f.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	return &tx, nil
}

func (f *fakeProvider) CreateGateway(_ context.Context, in GatewayRequest) (*Gateway, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gatewayErr != nil {
		return nil, f.gatewayErr
	}
	f.gateways = append(f.gateways, in)
	id := len(f.gateways)
	return &Gateway{ID: fmt.Sprint(id), Link: fmt.Sprintf("https://teachertime.payrexx.com/pay?tid=%d", id)}, nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type testEnv struct {
	db       *gorm.DB
	svc      *Service
	provider *fakeProvider
	cache    *memoryCache
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:       newTestDB(t),
		provider: &fakeProvider{transactions: map[string]TransactionRecord{}},
		cache:    newMemoryCache(),
		now:      testNow,
	}
	cfg := &Config{
		Instance:      "teachertime",
		APISecret:     "api_secret",
		WebhookSecret: testWebhookSecret,
		LookupTimeout: time.Second,
		PublicDomain:  "https://app.teachertime.ch",
	}
	env.svc = NewService(NewRepository(env.db), cfg, env.provider,
		WithStatusCache(env.cache),
		WithClock(func() time.Time { return env.now }),
	)
	return env
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{Name: "Teacher " + email, Email: email, Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) createSession(t *testing.T, userID uint, reference, planID string) *models.CheckoutSession {
	t.Helper()
	s := &models.CheckoutSession{
		UserID:      userID,
		PlanID:      planID,
		Quantity:    1,
		AmountMinor: 4900,
		Currency:    "CHF",
		Status:      models.CheckoutStatusPending,
		ReferenceID: reference,
		ExpiresAt:   e.now.Add(2 * time.Hour),
	}
	require.NoError(t, e.db.Create(s).Error)
	return s
}

func (e *testEnv) session(t *testing.T, reference string) models.CheckoutSession {
	t.Helper()
	var s models.CheckoutSession
	require.NoError(t, e.db.Where("reference_id = ?", reference).First(&s).Error)
	return s
}

func (e *testEnv) entitlementsOf(t *testing.T, userID uint) []models.Entitlement {
	t.Helper()
	var list []models.Entitlement
	require.NoError(t, e.db.Where("user_id = ?", userID).Find(&list).Error)
	return list
}

func (e *testEnv) deliver(body string) WebhookResponse {
	return e.svc.ProcessWebhook(context.Background(), signedRequest(body, testWebhookSecret))
}

func hmacHex(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func signedRequest(body, secret string) WebhookRequest {
	h := http.Header{}
	h.Set("X-Payrexx-Signature", hmacHex(body, secret))
	return WebhookRequest{Body: []byte(body), Header: h}
}

func transactionBody(id int, reference, status string) string {
	return fmt.Sprintf(`{"transaction":{"id":%d,"status":"%s","referenceId":"%s","invoice":{"paymentRequestId":%d}}}`,
		id, status, reference, id+5000)
}
