package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/TeacherTime/internal/pkg/metrics"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Billing provider webhooks (no auth, signature-verified in the service)
	app.Post("/webhooks/payrexx", h.deps.Billing.HandlePayrexxWebhook)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	metrics.Register()
	app.Get("/metrics", h.opsAuth(), adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/monitor", h.opsAuth(), monitor.New(monitor.Config{Title: "TeacherTime Monitor"}))
}

func (h HttpRouter) opsAuth() fiber.Handler {
	if h.deps.MonitorUser == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return basicauth.New(basicauth.Config{
		Users: map[string]string{
			h.deps.MonitorUser: h.deps.MonitorPass,
		},
	})
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
