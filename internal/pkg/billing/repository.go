package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/TeacherTime/app/models"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/entitlements"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	GetWebhookEvent(ctx context.Context, id uint) (*models.WebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, note string) error
	MarkWebhookFailed(ctx context.Context, id uint, processingError string) error
	ListRetryableWebhookEvents(ctx context.Context, maxAttempts, limit int) ([]models.WebhookEvent, error)
	ListUnarchivedWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error)
	MarkWebhookArchived(ctx context.Context, id uint, at time.Time) error

	CreateCheckoutSession(ctx context.Context, session *models.CheckoutSession) error
	GetCheckoutSessionByReference(ctx context.Context, referenceID string) (*models.CheckoutSession, error)
	CompleteCheckout(ctx context.Context, in CompletionInput) (Outcome, error)
	FailCheckout(ctx context.Context, in FailureInput) (Outcome, error)
	ExpireStaleCheckouts(ctx context.Context, now time.Time) (int64, error)

	ListEntitlements(ctx context.Context, userID uint, organizationID *uint) ([]models.Entitlement, error)
	CreateEntitlement(ctx context.Context, e *models.Entitlement) error
	HasEntitlementOfKind(ctx context.Context, userID uint, kind string) (bool, error)
	ExpireLapsedEntitlements(ctx context.Context, now time.Time) (int64, error)
	RevokeUserEntitlements(ctx context.Context, userID uint, now time.Time) (int64, error)
}

// CompletionInput describes a successful payment for one reference id.
// ResolvePlan is called inside the transaction with the locked-in session.
type CompletionInput struct {
	ReferenceID   string
	GatewayID     string
	TransactionID string
	Now           time.Time
	ResolvePlan   func(*models.CheckoutSession) (Plan, error)
}

// FailureInput describes a failed payment for one reference id.
type FailureInput struct {
	ReferenceID   string
	Status        string
	Reason        string
	TransactionID string
	Now           time.Time
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_key"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := db.Where("event_key = ?", event.EventKey).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetWebhookEvent(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebhookEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// MarkWebhookProcessed never touches a row a concurrent delivery already
// finished, so processed_at keeps the first completion time.
func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, note string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed":        true,
		"processing_error": nil,
		"processing_note":  note,
		"processed_at":     &now,
		"attempts":         gorm.Expr("attempts + 1"),
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(updates).Error
}

func (r *gormRepository) MarkWebhookFailed(ctx context.Context, id uint, processingError string) error {
	updates := map[string]interface{}{
		"processing_error": processingError,
		"processed_at":     nil,
		"attempts":         gorm.Expr("attempts + 1"),
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(updates).Error
}

func (r *gormRepository) ListRetryableWebhookEvents(ctx context.Context, maxAttempts, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ? AND processing_error IS NOT NULL AND attempts < ?", false, maxAttempts).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gormRepository) ListUnarchivedWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ? AND archived_at IS NULL", true).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gormRepository) MarkWebhookArchived(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Update("archived_at", &at).Error
}

func (r *gormRepository) CreateCheckoutSession(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *gormRepository) GetCheckoutSessionByReference(ctx context.Context, referenceID string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	if err := r.db.WithContext(ctx).Where("reference_id = ?", referenceID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CompleteCheckout moves a pending session to completed and grants the
// entitlement in one transaction. The pending check is a conditional UPDATE,
// so a concurrent duplicate affects zero rows and reports AlreadyFinal.
func (r *gormRepository) CompleteCheckout(ctx context.Context, in CompletionInput) (Outcome, error) {
	out := Outcome{ReferenceID: in.ReferenceID}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, handled, err := loadPendingSession(tx, in.ReferenceID, &out)
		if err != nil || handled {
			return err
		}

		updates := map[string]interface{}{
			"status":       models.CheckoutStatusCompleted,
			"completed_at": &in.Now,
		}
		if in.GatewayID != "" {
			updates["gateway_id"] = in.GatewayID
		}
		if in.TransactionID != "" {
			updates["transaction_id"] = in.TransactionID
		}
		res := tx.Model(&models.CheckoutSession{}).
			Where("id = ? AND status = ?", session.ID, models.CheckoutStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			out.Kind = OutcomeAlreadyFinal
			out.Note = "checkout session settled concurrently"
			return nil
		}

		plan, err := in.ResolvePlan(session)
		if err != nil {
			return fmt.Errorf("resolve plan %q: %w", session.PlanID, err)
		}
		ent, err := grantEntitlement(tx, session, plan, in.TransactionID, in.Now)
		if err != nil {
			return fmt.Errorf("grant entitlement: %w", err)
		}

		out.Kind = OutcomeCompleted
		out.SessionStatus = models.CheckoutStatusCompleted
		out.EntitlementID = ent.ID
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// FailCheckout records a terminal failure status without touching
// entitlements.
func (r *gormRepository) FailCheckout(ctx context.Context, in FailureInput) (Outcome, error) {
	if !models.IsFailureStatus(in.Status) {
		return Outcome{}, fmt.Errorf("%q is not a failure status", in.Status)
	}
	out := Outcome{ReferenceID: in.ReferenceID}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, handled, err := loadPendingSession(tx, in.ReferenceID, &out)
		if err != nil || handled {
			return err
		}

		updates := map[string]interface{}{
			"status":         in.Status,
			"failure_reason": in.Reason,
		}
		if in.TransactionID != "" {
			updates["transaction_id"] = in.TransactionID
		}
		res := tx.Model(&models.CheckoutSession{}).
			Where("id = ? AND status = ?", session.ID, models.CheckoutStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			out.Kind = OutcomeAlreadyFinal
			out.Note = "checkout session settled concurrently"
			return nil
		}
		out.Kind = OutcomeFailed
		out.SessionStatus = in.Status
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// loadPendingSession fills out and reports handled=true when the session is
// missing or already terminal.
func loadPendingSession(tx *gorm.DB, referenceID string, out *Outcome) (*models.CheckoutSession, bool, error) {
	var session models.CheckoutSession
	if err := tx.Where("reference_id = ?", referenceID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out.Kind = OutcomeIgnored
			out.Note = fmt.Sprintf("no checkout session for reference %q", referenceID)
			return nil, true, nil
		}
		return nil, false, err
	}
	if session.IsTerminal() {
		out.Kind = OutcomeAlreadyFinal
		out.SessionStatus = session.Status
		out.Note = "checkout session already " + session.Status
		return &session, true, nil
	}
	return &session, false, nil
}

// grantEntitlement extends the buyer's running payrexx grant of the same kind
// from the end of its window, or creates a new one. Org purchases get their own
// seat row.
func grantEntitlement(tx *gorm.DB, session *models.CheckoutSession, plan Plan, transactionID string, now time.Time) (*models.Entitlement, error) {
	if plan.Kind == models.EntitlementKindPersonal {
		var existing models.Entitlement
		err := tx.Where("user_id = ? AND kind = ? AND source = ? AND status = ?",
			session.UserID, models.EntitlementKindPersonal, models.EntitlementSourcePayrexx, models.EntitlementStatusActive).
			Order("valid_until DESC").
			First(&existing).Error
		switch {
		case err == nil && entitlements.IsActive(&existing, now):
			until := entitlements.ExtensionBase(&existing, now).Add(plan.ValidFor)
			res := tx.Model(&models.Entitlement{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"valid_until":             &until,
					"billing_subscription_id": transactionID,
					"checkout_session_id":     session.ID,
				})
			if res.Error != nil {
				return nil, res.Error
			}
			existing.ValidUntil = &until
			return &existing, nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	until := now.Add(plan.ValidFor)
	sessionID := session.ID
	ent := &models.Entitlement{
		Kind:                  plan.Kind,
		Source:                models.EntitlementSourcePayrexx,
		Status:                models.EntitlementStatusActive,
		Seats:                 session.Quantity,
		ValidFrom:             now,
		ValidUntil:            &until,
		BillingSubscriptionID: transactionID,
		CheckoutSessionID:     &sessionID,
	}
	if plan.IsOrganizationPlan() {
		ent.OrganizationID = session.OrganizationID
	} else {
		userID := session.UserID
		ent.UserID = &userID
		ent.Seats = 1
	}
	if err := tx.Create(ent).Error; err != nil {
		return nil, err
	}
	return ent, nil
}

// ExpireStaleCheckouts abandons pending sessions past their expiry.
func (r *gormRepository) ExpireStaleCheckouts(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.CheckoutSession{}).
		Where("status = ? AND expires_at < ?", models.CheckoutStatusPending, now).
		Updates(map[string]interface{}{
			"status":         models.CheckoutStatusExpired,
			"failure_reason": "checkout session expired",
		})
	return res.RowsAffected, res.Error
}

// ListEntitlements returns the user's own rows plus the rows of their
// organization, newest first.
func (r *gormRepository) ListEntitlements(ctx context.Context, userID uint, organizationID *uint) ([]models.Entitlement, error) {
	var list []models.Entitlement
	q := r.db.WithContext(ctx)
	if organizationID != nil {
		q = q.Where("user_id = ? OR organization_id = ?", userID, *organizationID)
	} else {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Order("valid_from DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *gormRepository) CreateEntitlement(ctx context.Context, e *models.Entitlement) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *gormRepository) HasEntitlementOfKind(ctx context.Context, userID uint, kind string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("user_id = ? AND kind = ?", userID, kind).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) ExpireLapsedEntitlements(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("status = ? AND valid_until IS NOT NULL AND valid_until < ?", models.EntitlementStatusActive, now).
		Update("status", models.EntitlementStatusExpired)
	return res.RowsAffected, res.Error
}

// RevokeUserEntitlements ends every live personal grant of a user. Org rows
// are not owned by a single user and stay untouched.
func (r *gormRepository) RevokeUserEntitlements(ctx context.Context, userID uint, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("user_id = ? AND status IN ?", userID, []string{models.EntitlementStatusActive, models.EntitlementStatusPending}).
		Updates(map[string]interface{}{
			"status":      models.EntitlementStatusRevoked,
			"valid_until": &now,
		})
	return res.RowsAffected, res.Error
}
