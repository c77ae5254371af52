package billing

import (
	"net/http"
	"time"
)

// TransactionRecord is the normalized view of a Payrexx transaction, whether
// it came from the live API or from a webhook body.
type TransactionRecord struct {
	ID          string
	ReferenceID string
	GatewayID   string
	Status      string
}

// TransactionSource tells where a resolved transaction came from.
type TransactionSource string

const (
	SourceLiveLookup TransactionSource = "live"
	SourcePayload    TransactionSource = "payload"
)

// ResolvedTransaction is the authoritative input to reconciliation.
type ResolvedTransaction struct {
	TransactionRecord
	Source TransactionSource
}

// OutcomeKind tags the result of a reconciliation.
type OutcomeKind string

const (
	OutcomeCompleted    OutcomeKind = "completed"
	OutcomeFailed       OutcomeKind = "failed"
	OutcomeAlreadyFinal OutcomeKind = "already_final"
	OutcomeIgnored      OutcomeKind = "ignored"
)

// Outcome is the result of applying one transaction to its checkout session.
// Errors are returned separately; an Outcome is always a handled case.
type Outcome struct {
	Kind          OutcomeKind
	ReferenceID   string
	SessionStatus string
	EntitlementID uint
	Note          string
}

// WebhookRequest is an inbound webhook delivery as received over HTTP.
type WebhookRequest struct {
	Body   []byte
	Header http.Header
}

// WebhookResponse is what the HTTP layer answers to the provider.
type WebhookResponse struct {
	Status  int
	Body    string
	EventID uint
	Outcome *Outcome
}

// CheckoutRequest is a purchase request from an authenticated user.
type CheckoutRequest struct {
	PlanID         string `json:"plan" validate:"required,max=50"`
	Quantity       int    `json:"quantity" validate:"gte=0,lte=500"`
	OrganizationID *uint  `json:"organization_id,omitempty"`
	UserAgent      string `json:"-"`
	ClientIP       string `json:"-"`
}

// CheckoutResult is returned once the pending session row exists.
type CheckoutResult struct {
	ReferenceID string    `json:"reference_id"`
	RedirectURL string    `json:"redirect_url"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CheckoutStatus is the polling view of a checkout session.
type CheckoutStatus struct {
	ReferenceID          string    `json:"reference_id"`
	UserID               uint      `json:"-"`
	Status               string    `json:"status"`
	HasActiveEntitlement bool      `json:"has_active_entitlement"`
	ExpiresAt            time.Time `json:"expires_at"`
}

// GatewayRequest describes a hosted payment page to create at Payrexx.
type GatewayRequest struct {
	AmountMinor        int64
	Currency           string
	ReferenceID        string
	Purpose            string
	SuccessRedirectURL string
	FailedRedirectURL  string
	CancelRedirectURL  string
}

// Gateway is a created hosted payment page.
type Gateway struct {
	ID   string
	Link string
}
