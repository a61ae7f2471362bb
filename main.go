package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"newsletter-backend/controllers"
	"newsletter-backend/database"
	"newsletter-backend/email"
	"newsletter-backend/middlewares"
	"newsletter-backend/routes"
	"newsletter-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func main() {
	// ---- Database
	database.Connect()
	if err := database.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	// ---- Outbound email
	mailer, err := email.NewClientFromEnv()
	if err != nil {
		// Subscriptions and publishing will fail until this is fixed, but the
		// read-only surface still works.
		log.Printf("warning: %v", err)
	}
	controllers.UseMailer(mailer)

	// ---- Limits (configurable via env)
	// Fiber default BodyLimit is 4 * 1024 * 1024 bytes if unset (per docs).
	// We allow overriding with BODY_LIMIT_BYTES or BODY_LIMIT_MB.
	bodyLimitBytes := utils.ParseIntDefault(os.Getenv("BODY_LIMIT_BYTES"), 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = utils.ParseIntDefault(os.Getenv("BODY_LIMIT_MB"), 4) * 1024 * 1024
	}

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env)
	rlMax := utils.ParseIntDefault(os.Getenv("RATE_LIMIT_MAX"), 60)
	rlWindow := time.Duration(utils.ParseIntDefault(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 60)) * time.Second
	app.Use(limiter.New(limiter.Config{
		Max:        rlMax,
		Expiration: rlWindow,
		// Default KeyGenerator = client IP; default 429 handler is fine.
	}))

	// ---- Routes
	routes.Register(app)

	// ---- Start
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := app.Listen(":" + port); err != nil {
		panic(err)
	}
	fmt.Println("API server started on port", port)
}
