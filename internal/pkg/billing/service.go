package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TeacherTime/app/models"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/entitlements"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/metrics"
)

// GatewayCreator creates hosted payment pages.
type GatewayCreator interface {
	CreateGateway(ctx context.Context, in GatewayRequest) (*Gateway, error)
}

// PaymentProvider is everything the service needs from Payrexx.
type PaymentProvider interface {
	TransactionLookup
	GatewayCreator
}

// StatusCache stores serialized checkout status snapshots.
type StatusCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service drives checkout creation, webhook reconciliation and entitlement
// lifecycle.
type Service struct {
	repo     Repository
	cfg      *Config
	provider PaymentProvider
	resolver *TransactionResolver
	cache    StatusCache
	validate *validator.Validate
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithStatusCache enables caching of settled checkout status lookups.
func WithStatusCache(c StatusCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a billing service from an injected repository and
// payment provider.
func NewService(repo Repository, cfg *Config, provider PaymentProvider, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		repo:     repo,
		cfg:      cfg,
		provider: provider,
		resolver: NewTransactionResolver(provider, cfg.LookupTimeout),
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a billing service talking to the real Payrexx API.
func NewServiceFromDB(db *gorm.DB, cfg *Config, opts ...Option) *Service {
	return NewService(NewRepository(db), cfg, NewPayrexxClient(cfg), opts...)
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.cfg
}

// CreateCheckout prices the plan, creates the Payrexx gateway and records a
// pending session for it.
func (s *Service) CreateCheckout(ctx context.Context, user *models.User, req CheckoutRequest) (*CheckoutResult, error) {
	if user == nil || user.ID == 0 {
		return nil, errors.New("user is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	plan, err := LookupPlan(req.PlanID)
	if err != nil {
		return nil, err
	}
	quantity, err := plan.NormalizeQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var orgID *uint
	if plan.IsOrganizationPlan() {
		if req.OrganizationID == nil {
			return nil, ErrOrganizationRequired
		}
		if !user.CanPurchaseForOrganization(*req.OrganizationID) {
			return nil, ErrForbiddenOrganization
		}
		orgID = req.OrganizationID
	} else {
		list, err := s.repo.ListEntitlements(ctx, user.ID, nil)
		if err != nil {
			return nil, err
		}
		if entitlements.HasActive(list, now, models.EntitlementKindPersonal) {
			return nil, ErrActiveEntitlementExists
		}
	}

	amount := plan.Amount(quantity)
	referenceID := "tt_" + uuid.NewString()
	gw, err := s.provider.CreateGateway(ctx, GatewayRequest{
		AmountMinor:        amount,
		Currency:           s.cfg.Currency,
		ReferenceID:        referenceID,
		Purpose:            plan.Purpose,
		SuccessRedirectURL: s.redirectURL("success", referenceID),
		FailedRedirectURL:  s.redirectURL("failed", referenceID),
		CancelRedirectURL:  s.redirectURL("cancelled", referenceID),
	})
	if err != nil {
		fiberlog.Errorf("[Billing] Creating gateway for user %d failed: %v", user.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"plan":              plan.ID,
		"kind":              plan.Kind,
		"quantity":          quantity,
		"unit_amount_minor": plan.UnitAmountMinor,
		"user_agent":        req.UserAgent,
		"client_ip":         req.ClientIP,
	})
	session := &models.CheckoutSession{
		UserID:         user.ID,
		OrganizationID: orgID,
		PlanID:         plan.ID,
		Quantity:       quantity,
		AmountMinor:    amount,
		Currency:       s.cfg.Currency,
		Status:         models.CheckoutStatusPending,
		ReferenceID:    referenceID,
		GatewayID:      gw.ID,
		Metadata:       datatypes.JSON(meta),
		ExpiresAt:      now.Add(s.cfg.CheckoutTTL),
	}
	if err := s.repo.CreateCheckoutSession(ctx, session); err != nil {
		return nil, err
	}

	fiberlog.Infof("[Billing] Checkout %s created for user %d (plan=%s qty=%d amount=%d %s)",
		referenceID, user.ID, plan.ID, quantity, amount, s.cfg.Currency)
	return &CheckoutResult{
		ReferenceID: referenceID,
		RedirectURL: gw.Link,
		AmountMinor: amount,
		Currency:    s.cfg.Currency,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

func (s *Service) redirectURL(result, referenceID string) string {
	if s.cfg.PublicDomain == "" {
		return ""
	}
	return s.cfg.PublicDomain + "/billing/checkout/" + result + "?" + url.Values{"ref": {referenceID}}.Encode()
}

// ListEntitlements returns every grant visible to the user and whether any is
// active right now.
func (s *Service) ListEntitlements(ctx context.Context, user *models.User) ([]models.Entitlement, bool, error) {
	list, err := s.repo.ListEntitlements(ctx, user.ID, user.OrganizationID)
	if err != nil {
		return nil, false, err
	}
	return list, entitlements.HasActive(list, s.now()), nil
}

// StartTrial grants the one-time demo trial.
func (s *Service) StartTrial(ctx context.Context, user *models.User) (*models.Entitlement, error) {
	used, err := s.repo.HasEntitlementOfKind(ctx, user.ID, models.EntitlementKindTrial)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrTrialAlreadyUsed
	}

	now := s.now()
	until := now.Add(s.cfg.TrialDuration)
	userID := user.ID
	ent := &models.Entitlement{
		UserID:     &userID,
		Kind:       models.EntitlementKindTrial,
		Source:     models.EntitlementSourceSystem,
		Status:     models.EntitlementStatusActive,
		Seats:      1,
		ValidFrom:  now,
		ValidUntil: &until,
	}
	if err := s.repo.CreateEntitlement(ctx, ent); err != nil {
		return nil, err
	}
	fiberlog.Infof("[Billing] Trial started for user %d until %s", user.ID, until.Format(time.RFC3339))
	return ent, nil
}

// RevokeEntitlements ends all live grants of a user, e.g. on account deletion.
func (s *Service) RevokeEntitlements(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.RevokeUserEntitlements(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	fiberlog.Infof("[Billing] Revoked %d entitlements of user %d", n, userID)
	return n, nil
}

// ExpireStaleCheckouts marks abandoned pending sessions as expired.
func (s *Service) ExpireStaleCheckouts(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireStaleCheckouts(ctx, s.now())
	metrics.ObserveSweep("checkout_expiry", n)
	return n, err
}

// ExpireLapsedEntitlements marks active grants past their window as expired.
func (s *Service) ExpireLapsedEntitlements(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireLapsedEntitlements(ctx, s.now())
	metrics.ObserveSweep("entitlement_expiry", n)
	return n, err
}
