package billing

import "errors"

var (
	ErrInvalidPayload          = errors.New("invalid webhook payload")
	ErrUnknownPayloadShape     = errors.New("webhook payload carries no transaction")
	ErrTransactionUnavailable  = errors.New("transaction could not be resolved")
	ErrUnrecognizedStatus      = errors.New("unrecognized transaction status")
	ErrUnknownPlan             = errors.New("unknown plan")
	ErrInvalidRequest          = errors.New("invalid checkout request")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrOrganizationRequired    = errors.New("plan requires an organization")
	ErrForbiddenOrganization   = errors.New("user may not purchase for this organization")
	ErrActiveEntitlementExists = errors.New("an active personal entitlement already exists")
	ErrCheckoutNotFound        = errors.New("checkout session not found")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrTrialAlreadyUsed        = errors.New("trial already used")
	ErrWebhookEventNotFound    = errors.New("webhook event not found")
	ErrNotConfigured           = errors.New("payrexx is not configured")
)
