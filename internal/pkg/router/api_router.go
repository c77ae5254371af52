package router

import (
	"time"

	apiv1 "github.com/ManuelReschke/TeacherTime/internal/api/v1"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    h.deps.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests",
			})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.deps.Billing, h.deps.Account)
	apiv1.RegisterHandlers(v1, apiServer, apiv1.RouteOptions{
		Auth:  []fiber.Handler{middleware.APIKeyAuthMiddleware(h.deps.Users), middleware.RequireAPIAuth},
		Admin: []fiber.Handler{middleware.RequireAPIAdmin},
	})
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
