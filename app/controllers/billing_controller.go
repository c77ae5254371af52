package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TeacherTime/app/models"
	"github.com/ManuelReschke/TeacherTime/app/repository"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/billing"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/usercontext"
)

const webhookTimeout = 25 * time.Second

// ============================================================================
// BILLING CONTROLLER - Repository Pattern
// ============================================================================

// BillingController handles checkout, entitlement and Payrexx webhook requests
type BillingController struct {
	service     *billing.Service
	eventRepo   repository.WebhookEventRepository
	entitlRepo  repository.EntitlementRepository
	pollOptions billing.PollOptions
}

// NewBillingController creates a new billing controller
func NewBillingController(service *billing.Service, repos *repository.Repositories) *BillingController {
	return &BillingController{
		service:     service,
		eventRepo:   repos.WebhookEvent,
		entitlRepo:  repos.Entitlement,
		pollOptions: billing.DefaultPollOptions,
	}
}

// WithPollOptions overrides the ?wait=1 polling bounds.
func (bc *BillingController) WithPollOptions(opts billing.PollOptions) *BillingController {
	bc.pollOptions = opts
	return bc
}

// HandlePayrexxWebhook receives a Payrexx notification. The body is plain text
// because Payrexx only looks at the status code.
func (bc *BillingController) HandlePayrexxWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	header := http.Header{}
	for k, values := range c.GetReqHeaders() {
		for _, v := range values {
			header.Add(k, v)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	resp := bc.service.ProcessWebhook(ctx, billing.WebhookRequest{Body: body, Header: header})
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(resp.Status).SendString(resp.Body)
}

// HandleCreateCheckout starts a purchase and returns the Payrexx redirect URL.
func (bc *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}

	var req billing.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	req.UserAgent = c.Get(fiber.HeaderUserAgent)
	ipv4, ipv6 := GetClientIP(c)
	req.ClientIP = ipv4
	if req.ClientIP == "" {
		req.ClientIP = ipv6
	}

	result, err := bc.service.CreateCheckout(c.UserContext(), user, req)
	if err != nil {
		return bc.checkoutError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (bc *BillingController) checkoutError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrInvalidRequest),
		errors.Is(err, billing.ErrUnknownPlan),
		errors.Is(err, billing.ErrInvalidQuantity),
		errors.Is(err, billing.ErrOrganizationRequired):
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, billing.ErrForbiddenOrganization):
		return jsonError(c, fiber.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, billing.ErrActiveEntitlementExists):
		return jsonError(c, fiber.StatusConflict, "active_entitlement_exists", "An active license already exists")
	case errors.Is(err, billing.ErrGatewayUnavailable), errors.Is(err, billing.ErrNotConfigured):
		return jsonError(c, fiber.StatusBadGateway, "gateway_unavailable", "Payment provider unavailable, please retry")
	default:
		fiberlog.Errorf("[Billing] Checkout failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Checkout failed")
	}
}

// HandleCheckoutStatus reports the state of one of the caller's checkouts.
// With ?wait=1 it blocks until the session settles or the poll bound is hit.
func (bc *BillingController) HandleCheckoutStatus(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}
	ref := c.Params("reference")
	if ref == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "reference missing")
	}

	var (
		status *billing.CheckoutStatus
		err    error
	)
	if c.QueryBool("wait") {
		status, err = bc.service.WaitForCheckout(c.UserContext(), user, ref, bc.pollOptions)
	} else {
		status, err = bc.service.CheckoutStatus(c.UserContext(), user, ref)
	}
	if err != nil {
		if errors.Is(err, billing.ErrCheckoutNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Checkout not found")
		}
		fiberlog.Errorf("[Billing] Status of %s failed: %v", ref, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load checkout")
	}
	return c.JSON(status)
}

// HandleListEntitlements lists the caller's personal and organization grants.
func (bc *BillingController) HandleListEntitlements(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}
	list, active, err := bc.service.ListEntitlements(c.UserContext(), user)
	if err != nil {
		fiberlog.Errorf("[Billing] Listing entitlements of user %d failed: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load entitlements")
	}
	if list == nil {
		list = []models.Entitlement{}
	}
	return c.JSON(fiber.Map{"entitlements": list, "has_active": active})
}

// HandleStartTrial grants the one-time demo trial.
func (bc *BillingController) HandleStartTrial(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}
	ent, err := bc.service.StartTrial(c.UserContext(), user)
	if err != nil {
		if errors.Is(err, billing.ErrTrialAlreadyUsed) {
			return jsonError(c, fiber.StatusConflict, "trial_already_used", "The trial was already used")
		}
		fiberlog.Errorf("[Billing] Trial for user %d failed: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to start trial")
	}
	return c.Status(fiber.StatusCreated).JSON(ent)
}

// HandleListWebhookEvents lists the ledger for admins. ?failed=1 limits it to
// rows waiting for a retry.
func (bc *BillingController) HandleListWebhookEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	var (
		events []models.WebhookEvent
		err    error
	)
	if c.QueryBool("failed") {
		events, err = bc.eventRepo.ListFailed(offset, limit)
	} else {
		events, err = bc.eventRepo.List(offset, limit)
	}
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load webhook events")
	}
	total, err := bc.eventRepo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count webhook events")
	}
	if events == nil {
		events = []models.WebhookEvent{}
	}
	return c.JSON(fiber.Map{"events": events, "total": total, "offset": offset, "limit": limit})
}

// HandleReplayWebhook reprocesses one stored event.
func (bc *BillingController) HandleReplayWebhook(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid id")
	}

	event, outcome, err := bc.service.ReplayWebhookEvent(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, billing.ErrWebhookEventNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Webhook event not found")
		}
		fiberlog.Warnf("[Billing] Replay of webhook event %d failed: %v", id, err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "replay_failed",
			"message": err.Error(),
			"event":   event,
		})
	}

	resp := fiber.Map{"event": event, "outcome": nil}
	if outcome != nil {
		resp["outcome"] = fiber.Map{
			"kind":           outcome.Kind,
			"reference_id":   outcome.ReferenceID,
			"session_status": outcome.SessionStatus,
			"entitlement_id": outcome.EntitlementID,
			"note":           outcome.Note,
		}
	}
	return c.JSON(resp)
}

// HandleRevokeEntitlements ends all live grants of a user.
func (bc *BillingController) HandleRevokeEntitlements(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid id")
	}
	n, err := bc.service.RevokeEntitlements(c.UserContext(), id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to revoke entitlements")
	}
	return c.JSON(fiber.Map{"user_id": id, "revoked": n})
}

// HandleEntitlementStats returns entitlement counts per status.
func (bc *BillingController) HandleEntitlementStats(c *fiber.Ctx) error {
	counts, err := bc.entitlRepo.CountByStatus()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load statistics")
	}
	return c.JSON(fiber.Map{"by_status": counts})
}

// HandleGetEntitlement returns one entitlement row for admins.
func (bc *BillingController) HandleGetEntitlement(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid id")
	}
	ent, err := bc.entitlRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Entitlement not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load entitlement")
	}
	return c.JSON(ent)
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(v), nil
}

func unauthorized(c *fiber.Ctx) error {
	return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

var billingController *BillingController

// InitializeBillingController initializes the global billing controller
func InitializeBillingController(service *billing.Service) {
	billingController = NewBillingController(service, repository.GetGlobalRepositories())
}

// GetBillingController returns the global billing controller instance
func GetBillingController() *BillingController {
	if billingController == nil {
		panic("Billing controller not initialized. Call InitializeBillingController first.")
	}
	return billingController
}
