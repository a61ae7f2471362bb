package routes

import (
	"github.com/gofiber/fiber/v2"

	"newsletter-backend/controllers"
	"newsletter-backend/idempotency"
	"newsletter-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/health_check", controllers.HealthCheck)

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Public subscription endpoints
	api.Post("/subscriptions", controllers.Subscribe)
	api.Get("/subscriptions/confirm", controllers.ConfirmSubscription)

	// Admin endpoints (JWT auth)
	admin := api.Group("/admin")
	admin.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to the request TX)
	admin.Use(middlewares.Idempotency(idempotency.DefaultConfig()))

	// Then per-request transaction (commits/rolls back around the handler)
	admin.Use(middlewares.RequestTx())

	admin.Get("/dashboard", controllers.Dashboard)
	admin.Put("/password", controllers.ChangePassword)
	admin.Post("/newsletters", controllers.PublishNewsletter)
}
