package apiv1

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/TeacherTime/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	billing *controllers.BillingController
	account *controllers.AccountController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(billing *controllers.BillingController, account *controllers.AccountController) *APIServer {
	return &APIServer{billing: billing, account: account}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// GetUserAccount returns account information for the API key owner.
func (s *APIServer) GetUserAccount(c *fiber.Ctx) error {
	return s.account.HandleGetUserAccount(c)
}

// PostRotateAPIKey replaces the caller's API key.
func (s *APIServer) PostRotateAPIKey(c *fiber.Ctx) error {
	return s.account.HandleRotateAPIKey(c)
}

// PostCheckoutSession starts a Payrexx checkout.
func (s *APIServer) PostCheckoutSession(c *fiber.Ctx) error {
	return s.billing.HandleCreateCheckout(c)
}

// GetCheckoutSession reports checkout progress. The controller reads the
// reference from the route params; the wrapper already validated it.
func (s *APIServer) GetCheckoutSession(c *fiber.Ctx, reference string, params GetCheckoutSessionParams) error {
	return s.billing.HandleCheckoutStatus(c)
}

func (s *APIServer) GetEntitlements(c *fiber.Ctx) error {
	return s.billing.HandleListEntitlements(c)
}

func (s *APIServer) PostTrial(c *fiber.Ctx) error {
	return s.billing.HandleStartTrial(c)
}

func (s *APIServer) GetAdminWebhookEvents(c *fiber.Ctx, params GetAdminWebhookEventsParams) error {
	return s.billing.HandleListWebhookEvents(c)
}

func (s *APIServer) PostAdminReplayWebhook(c *fiber.Ctx, id uint) error {
	return s.billing.HandleReplayWebhook(c)
}

func (s *APIServer) PostAdminRevokeEntitlements(c *fiber.Ctx, id uint) error {
	return s.billing.HandleRevokeEntitlements(c)
}

func (s *APIServer) GetAdminEntitlementStats(c *fiber.Ctx) error {
	return s.billing.HandleEntitlementStats(c)
}

func (s *APIServer) GetAdminEntitlement(c *fiber.Ctx, id uint) error {
	return s.billing.HandleGetEntitlement(c)
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
