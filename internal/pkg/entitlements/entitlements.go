package entitlements

import (
	"time"

	"github.com/ManuelReschke/TeacherTime/app/models"
)

// IsActive reports whether e grants access at now: status active, started, and
// either unbounded or not yet past valid_until.
func IsActive(e *models.Entitlement, now time.Time) bool {
	if e == nil || e.Status != models.EntitlementStatusActive {
		return false
	}
	if e.ValidFrom.After(now) {
		return false
	}
	return e.ValidUntil == nil || !e.ValidUntil.Before(now)
}

// HasActive reports whether at least one entitlement is active at now. When
// kinds are given only those kinds count.
func HasActive(list []models.Entitlement, now time.Time, kinds ...string) bool {
	for i := range list {
		if !IsActive(&list[i], now) {
			continue
		}
		if len(kinds) == 0 || containsKind(kinds, list[i].Kind) {
			return true
		}
	}
	return false
}

// ExtensionBase returns the instant a renewal of e should start from: the end
// of the current window if it lies in the future, now otherwise.
func ExtensionBase(e *models.Entitlement, now time.Time) time.Time {
	if e == nil || e.ValidUntil == nil || e.ValidUntil.Before(now) {
		return now
	}
	return *e.ValidUntil
}

// IsLapsed reports whether an active row is past its window and should be
// moved to expired by the lifecycle sweep.
func IsLapsed(e *models.Entitlement, now time.Time) bool {
	return e != nil &&
		e.Status == models.EntitlementStatusActive &&
		e.ValidUntil != nil &&
		e.ValidUntil.Before(now)
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
