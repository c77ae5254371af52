package billing

import (
	"strings"

	"github.com/ManuelReschke/TeacherTime/app/models"
)

// StatusClass is the reconciliation bucket of a transaction status.
type StatusClass int

const (
	StatusUnrecognized StatusClass = iota
	StatusSuccess
	StatusFailure
)

func (c StatusClass) String() string {
	switch c {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unrecognized"
	}
}

// ClassifyStatus maps a Payrexx transaction status to a bucket. Intermediate
// states such as waiting or uncaptured are unrecognized on purpose.
func ClassifyStatus(status string) StatusClass {
	switch normalizeStatus(status) {
	case "confirmed", "authorized", "paid":
		return StatusSuccess
	case "failed", "declined", "error", "cancelled", "canceled", "expired", "refunded", "partially-refunded", "chargeback":
		return StatusFailure
	default:
		return StatusUnrecognized
	}
}

// FailureCheckoutStatus maps a failure-bucket status to the terminal status
// stored on the checkout session.
func FailureCheckoutStatus(status string) string {
	switch normalizeStatus(status) {
	case "cancelled", "canceled":
		return models.CheckoutStatusCancelled
	case "expired":
		return models.CheckoutStatusExpired
	default:
		return models.CheckoutStatusFailed
	}
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
