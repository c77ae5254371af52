package billing

import (
	"context"
	"encoding/json"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TeacherTime/app/models"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/entitlements"
)

const statusCacheTTL = 30 * time.Second

// PollOptions bounds a server-side wait for a checkout to settle.
type PollOptions struct {
	Attempts int
	Interval time.Duration
}

// DefaultPollOptions waits at most about ten seconds.
var DefaultPollOptions = PollOptions{Attempts: 10, Interval: time.Second}

func statusCacheKey(referenceID string) string {
	return "billing:checkout:status:" + referenceID
}

// CheckoutStatus reports the session state and whether the owner now holds an
// active entitlement. Other users get ErrCheckoutNotFound.
func (s *Service) CheckoutStatus(ctx context.Context, user *models.User, referenceID string) (*CheckoutStatus, error) {
	if cached, ok := s.cachedStatus(ctx, referenceID); ok {
		if cached.UserID != user.ID {
			return nil, ErrCheckoutNotFound
		}
		return cached, nil
	}

	session, err := s.repo.GetCheckoutSessionByReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if session.UserID != user.ID {
		return nil, ErrCheckoutNotFound
	}

	orgID := user.OrganizationID
	if orgID == nil {
		orgID = session.OrganizationID
	}
	list, err := s.repo.ListEntitlements(ctx, user.ID, orgID)
	if err != nil {
		return nil, err
	}

	st := &CheckoutStatus{
		ReferenceID:          session.ReferenceID,
		UserID:               session.UserID,
		Status:               session.Status,
		HasActiveEntitlement: entitlements.HasActive(list, s.now()),
		ExpiresAt:            session.ExpiresAt,
	}
	if session.IsTerminal() {
		s.storeStatus(ctx, st)
	}
	return st, nil
}

// WaitForCheckout polls CheckoutStatus until the session leaves pending, the
// attempts are used up or ctx ends. The last seen status is returned.
func (s *Service) WaitForCheckout(ctx context.Context, user *models.User, referenceID string, opts PollOptions) (*CheckoutStatus, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	var last *CheckoutStatus
	for attempt := 0; attempt < opts.Attempts; attempt++ {
		st, err := s.CheckoutStatus(ctx, user, referenceID)
		if err != nil {
			return nil, err
		}
		last = st
		if st.Status != models.CheckoutStatusPending || attempt == opts.Attempts-1 {
			break
		}

		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, nil
		case <-timer.C:
		}
	}
	return last, nil
}

func (s *Service) cachedStatus(ctx context.Context, referenceID string) (*CheckoutStatus, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, statusCacheKey(referenceID))
	if err != nil || !ok {
		return nil, false
	}
	var snap struct {
		CheckoutStatus
		UserID uint `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, false
	}
	st := snap.CheckoutStatus
	st.UserID = snap.UserID
	return &st, true
}

func (s *Service) storeStatus(ctx context.Context, st *CheckoutStatus) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(struct {
		*CheckoutStatus
		UserID uint `json:"user_id"`
	}{st, st.UserID})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statusCacheKey(st.ReferenceID), string(raw), statusCacheTTL); err != nil {
		fiberlog.Warnf("[Billing] Caching status of %s failed: %v", st.ReferenceID, err)
	}
}

func (s *Service) invalidateStatus(ctx context.Context, referenceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statusCacheKey(referenceID)); err != nil {
		fiberlog.Warnf("[Billing] Invalidating status of %s failed: %v", referenceID, err)
	}
}
