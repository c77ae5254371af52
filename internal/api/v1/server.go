package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// GetCheckoutSessionParams are the query parameters of GetCheckoutSession.
type GetCheckoutSessionParams struct {
	Wait bool `query:"wait"`
}

// GetAdminWebhookEventsParams are the query parameters of GetAdminWebhookEvents.
type GetAdminWebhookEventsParams struct {
	Failed bool `query:"failed"`
	Limit  int  `query:"limit"`
	Offset int  `query:"offset"`
}

// ServerInterface lists every operation of public/docs/v1/openapi.yml.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /user/account)
	GetUserAccount(c *fiber.Ctx) error
	// (POST /user/api-key)
	PostRotateAPIKey(c *fiber.Ctx) error
	// (POST /checkout/sessions)
	PostCheckoutSession(c *fiber.Ctx) error
	// (GET /checkout/sessions/{reference})
	GetCheckoutSession(c *fiber.Ctx, reference string, params GetCheckoutSessionParams) error
	// (GET /entitlements)
	GetEntitlements(c *fiber.Ctx) error
	// (POST /entitlements/trial)
	PostTrial(c *fiber.Ctx) error
	// (GET /admin/webhooks)
	GetAdminWebhookEvents(c *fiber.Ctx, params GetAdminWebhookEventsParams) error
	// (POST /admin/webhooks/{id}/replay)
	PostAdminReplayWebhook(c *fiber.Ctx, id uint) error
	// (POST /admin/users/{id}/entitlements/revoke)
	PostAdminRevokeEntitlements(c *fiber.Ctx, id uint) error
	// (GET /admin/entitlements/stats)
	GetAdminEntitlementStats(c *fiber.Ctx) error
	// (GET /admin/entitlements/{id})
	GetAdminEntitlement(c *fiber.Ctx, id uint) error
}

// ServerInterfaceWrapper converts path and query parameters before calling
// the implementation.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

func (w *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return w.Handler.GetPing(c)
}

func (w *ServerInterfaceWrapper) GetUserAccount(c *fiber.Ctx) error {
	return w.Handler.GetUserAccount(c)
}

func (w *ServerInterfaceWrapper) PostRotateAPIKey(c *fiber.Ctx) error {
	return w.Handler.PostRotateAPIKey(c)
}

func (w *ServerInterfaceWrapper) PostCheckoutSession(c *fiber.Ctx) error {
	return w.Handler.PostCheckoutSession(c)
}

func (w *ServerInterfaceWrapper) GetCheckoutSession(c *fiber.Ctx) error {
	reference := c.Params("reference")
	if reference == "" || len(reference) > 64 {
		return badRequest(c, "invalid reference")
	}
	var params GetCheckoutSessionParams
	if err := c.QueryParser(&params); err != nil {
		return badRequest(c, "invalid query parameters")
	}
	return w.Handler.GetCheckoutSession(c, reference, params)
}

func (w *ServerInterfaceWrapper) GetEntitlements(c *fiber.Ctx) error {
	return w.Handler.GetEntitlements(c)
}

func (w *ServerInterfaceWrapper) PostTrial(c *fiber.Ctx) error {
	return w.Handler.PostTrial(c)
}

func (w *ServerInterfaceWrapper) GetAdminWebhookEvents(c *fiber.Ctx) error {
	var params GetAdminWebhookEventsParams
	if err := c.QueryParser(&params); err != nil {
		return badRequest(c, "invalid query parameters")
	}
	return w.Handler.GetAdminWebhookEvents(c, params)
}

func (w *ServerInterfaceWrapper) PostAdminReplayWebhook(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	return w.Handler.PostAdminReplayWebhook(c, id)
}

func (w *ServerInterfaceWrapper) PostAdminRevokeEntitlements(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	return w.Handler.PostAdminRevokeEntitlements(c, id)
}

func (w *ServerInterfaceWrapper) GetAdminEntitlementStats(c *fiber.Ctx) error {
	return w.Handler.GetAdminEntitlementStats(c)
}

func (w *ServerInterfaceWrapper) GetAdminEntitlement(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	return w.Handler.GetAdminEntitlement(c, id)
}

// RouteOptions attaches middleware to the protected route sets.
type RouteOptions struct {
	Auth  []fiber.Handler
	Admin []fiber.Handler
}

func chain(mw []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, h)
}

// RegisterHandlers mounts every operation on router.
func RegisterHandlers(router fiber.Router, si ServerInterface, opts RouteOptions) {
	w := &ServerInterfaceWrapper{Handler: si}
	auth := opts.Auth
	admin := append(append([]fiber.Handler{}, opts.Auth...), opts.Admin...)

	router.Get("/ping", w.GetPing)

	router.Get("/user/account", chain(auth, w.GetUserAccount)...)
	router.Post("/user/api-key", chain(auth, w.PostRotateAPIKey)...)
	router.Post("/checkout/sessions", chain(auth, w.PostCheckoutSession)...)
	router.Get("/checkout/sessions/:reference", chain(auth, w.GetCheckoutSession)...)
	router.Get("/entitlements", chain(auth, w.GetEntitlements)...)
	router.Post("/entitlements/trial", chain(auth, w.PostTrial)...)

	router.Get("/admin/webhooks", chain(admin, w.GetAdminWebhookEvents)...)
	router.Post("/admin/webhooks/:id/replay", chain(admin, w.PostAdminReplayWebhook)...)
	router.Post("/admin/users/:id/entitlements/revoke", chain(admin, w.PostAdminRevokeEntitlements)...)
	router.Get("/admin/entitlements/stats", chain(admin, w.GetAdminEntitlementStats)...)
	router.Get("/admin/entitlements/:id", chain(admin, w.GetAdminEntitlement)...)
}
