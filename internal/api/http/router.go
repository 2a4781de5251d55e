package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/travel-approval-service/internal/api/http/handlers"
	"github.com/spec-kit/travel-approval-service/internal/auth"
	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Staff          *handlers.StaffHandler
	Public         *handlers.PublicHandler
	Intake         *handlers.IntakeHandler
	Tasks          *handlers.TasksHandler
	Cases          *handlers.CasesHandler
	Profiles       *handlers.ProfilesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/staff/login", cfg.Auth.Login)
	app.Post("/public/requests", cfg.Public.SubmitRequest)
	app.Post("/intake/webhook", cfg.Intake.Webhook)

	staff := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	staff.Get("/auth/me", cfg.Auth.Me)

	staff.Get("/tasks/my", cfg.Tasks.ListMyTasks)
	staff.Post("/tasks/:id/action", cfg.Tasks.ApplyAction)
	staff.Post("/tasks/:id/claim", cfg.Tasks.Claim)
	staff.Post("/tasks/:id/assign", cfg.Tasks.Assign)
	staff.Post("/tasks/:id/auto-assign", cfg.Tasks.AutoAssign)

	staff.Get("/cases", cfg.Cases.ListCases)
	staff.Post("/cases", cfg.Cases.CreateCase)
	staff.Get("/cases/:id", cfg.Cases.GetCase)

	staff.Post("/profiles/upsert", cfg.Profiles.Upsert)
	staff.Get("/profiles/:id", cfg.Profiles.GetProfile)

	admin := staff.Group("/staff", auth.RequireStaffRole(domain.StaffRoleAdmin, domain.StaffRoleManager))
	admin.Get("", cfg.Staff.ListStaff)
	admin.Post("", auth.RequireStaffRole(domain.StaffRoleAdmin), cfg.Staff.CreateStaff)
}
