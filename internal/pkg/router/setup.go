package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TeacherTime/app/controllers"
	"github.com/ManuelReschke/TeacherTime/app/repository"
)

// Router installs a set of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired controllers the routers mount.
type Dependencies struct {
	Billing        *controllers.BillingController
	Account        *controllers.AccountController
	Users          repository.UserRepository
	LimiterStorage fiber.Storage
	MonitorUser    string
	MonitorPass    string
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Provider callbacks and ops endpoints first: they must not sit behind
	// the API limiter or API key auth.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
