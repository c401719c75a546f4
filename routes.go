package main

import (
	"net/http"
	"strings"
	"time"

	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "cuwep/config"
	"cuwep/database"
	"cuwep/handlers"
	"cuwep/mail"
	"cuwep/metrics"
	"cuwep/middleware"
	appserver "cuwep/server"
	websocketpkg "cuwep/websocket"
)

// setupRoutes configures all API routes and middleware for the application
func setupRoutes(app *fiber.App, db database.Database, rdb *redis.Client, mailer *mail.Mailer, config *appconfig.Config) {
	// Security middleware
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge: func() int {
			if config.Environment == "production" {
				return 31536000
			}
			return 0
		}(),
		HSTSPreloadEnabled: config.Environment == "production",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	// CSRF protection. Auth endpoints are token based and stay exempt.
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "header:X-CSRF-Token",
		CookieName:     "csrf_token",
		CookieSameSite: "Strict",
		CookieSecure:   true,
		CookieHTTPOnly: true,
		Expiration:     time.Hour,
		KeyGenerator:   uuid.NewString,
		ContextKey:     "csrf",
		Next: func(c *fiber.Ctx) bool {
			method := c.Method()
			path := c.Path()
			return method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions ||
				strings.HasPrefix(path, "/api/v1/health") ||
				strings.HasPrefix(path, "/api/v1/auth/") ||
				strings.HasPrefix(path, "/api/v1/users")
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowedOrigins, ","),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CSRF-Token",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders:    "X-CSRF-Token",
	}))

	// Optional Prometheus metrics
	if appconfig.GetEnvAsBool("ENABLE_METRICS", false) {
		app.Use(metrics.PrometheusMiddleware())
		promHandler := promhttp.Handler()
		app.Get("/metrics", func(c *fiber.Ctx) error {
			req, err := http.NewRequest(c.Method(), c.OriginalURL(), nil)
			if err != nil {
				return fiber.ErrInternalServerError
			}
			promHandler.ServeHTTP(appserver.NewFiberResponseWriter(c), req)
			return nil
		})
	}

	// Rate limiter tiers
	rateLimits := middleware.NewRateLimitConfig(rdb)

	authHandler := handlers.NewAuthHandler(db, rdb, mailer, config)
	usersHandler := handlers.NewUsersHandler(db, mailer, config)

	app.Get("/", indexHandler)

	api := app.Group("/api/v1")

	// Authentication routes (public), strictest rate limiting
	api.Post("/auth/register", rateLimits.AuthLimiter, authHandler.Register)
	api.Post("/auth/login", rateLimits.AuthLimiter, authHandler.Login)
	api.Post("/auth/confirm", rateLimits.AuthLimiter, authHandler.Confirm)
	api.Post("/auth/forgot_password", rateLimits.AuthLimiter, authHandler.ForgotPassword)
	api.Post("/auth/check_reset_code", rateLimits.AuthLimiter, authHandler.CheckResetCode)
	api.Post("/auth/reset_password", rateLimits.AuthLimiter, authHandler.ResetPassword)

	api.Get("/loading_message", rateLimits.LightweightLimiter, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": websocketpkg.RandomLoadingMessage()})
	})

	// Protected routes (require JWT)
	protected := api.Group("", middleware.JWTMiddleware(config.SecretKey, rdb))

	protected.Post("/auth/logout", rateLimits.LightweightLimiter, authHandler.Logout)
	protected.Get("/users", rateLimits.StandardLimiter, usersHandler.GetUsers)
	protected.Post("/users/resend_confirmation", rateLimits.AuthLimiter, usersHandler.ResendConfirmation)

	// WebSocket setup
	hub := websocketpkg.NewHub()
	go hub.Run()

	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/stream", fiberws.New(func(conn *fiberws.Conn) {
		websocketpkg.HandleStream(conn, hub)
	}))
}
