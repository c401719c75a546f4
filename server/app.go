package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"cuwep/metrics"
	"cuwep/utils"
)

// CreateFiberApp creates and configures the Fiber application
func CreateFiberApp(startTime time.Time, readyState *ReadyState) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: false,
		BodyLimit:             512 * 1024,
		// Trust forwarding headers only behind a known reverse proxy
		EnableTrustedProxyCheck: utils.TrustProxyHeaders.Load(),
		ProxyHeader:             fiber.HeaderXForwardedFor,
		TrustedProxies: []string{
			"10.0.0.0/8",
			"172.16.0.0/12",
			"192.168.0.0/16",
			"fd00::/8",
			"::1",
			"127.0.0.1",
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			} else if code < 500 {
				message = err.Error()
			} else {
				// Log server errors but don't expose details
				utils.LogError("HTTP_ERROR", err,
					"method", c.Method(),
					"path", c.Path(),
					"ip", c.IP(),
				)
				metrics.IncrementError("http", "server")
			}

			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			utils.LogError("PANIC RECOVERED", fmt.Errorf("%v", e),
				"method", c.Method(),
				"path", c.Path(),
				"ip", c.IP(),
				"user_agent", c.Get("User-Agent"),
			)
		},
	}))

	// Request ID middleware for error correlation
	app.Use(func(c *fiber.Ctx) error {
		requestID := uuid.New().String()
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	})

	app.Use(logger.New(logger.Config{
		Output: utils.InfoLogger.Writer(),
		Format: "[${time}] ${locals:request_id} ${status} - ${method} ${path} - ${ip} - ${latency}\n",
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c *fiber.Ctx) bool {
			// Skip compression for WebSocket upgrades
			return c.Get("Upgrade") == "websocket"
		},
	}))

	// Basic health endpoints available immediately
	api := app.Group("/api/v1")

	api.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "live",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		})
	})

	api.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		health := fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		}

		dbHealthy := false
		if db := readyState.GetDB(); db != nil {
			var userCount int
			if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount); err != nil {
				health["database"] = "unhealthy"
				health["database_error"] = err.Error()
			} else {
				dbHealthy = true
				health["database"] = "healthy"
				health["user_count"] = userCount
			}
		} else {
			health["database"] = "unhealthy"
		}

		redisHealthy := false
		if rdb := readyState.GetRedis(); rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				health["redis"] = "unhealthy"
				health["redis_error"] = err.Error()
			} else {
				redisHealthy = true
				health["redis"] = "healthy"
			}
		} else {
			health["redis"] = "unhealthy"
		}

		if !dbHealthy || !redisHealthy {
			health["status"] = "unhealthy"
			return c.Status(fiber.StatusServiceUnavailable).JSON(health)
		}

		return c.JSON(health)
	})

	api.Get("/health/ready", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		health := fiber.Map{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		}

		if !readyState.IsFullyReady() {
			health["status"] = "initializing"
			health["db_ready"] = readyState.IsDBReady()
			health["redis_ready"] = readyState.IsRedisReady()
			health["mailer_ready"] = readyState.IsMailerReady()
			return c.Status(503).JSON(health)
		}

		var userCount int
		if err := readyState.GetDB().QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount); err != nil {
			health["status"] = "unhealthy"
			health["error"] = "database check failed"
			return c.Status(503).JSON(health)
		}

		if err := readyState.GetRedis().Ping(ctx).Err(); err != nil {
			health["status"] = "unhealthy"
			health["error"] = "redis check failed"
			return c.Status(503).JSON(health)
		}

		health["status"] = "ready"
		return c.JSON(health)
	})

	return app
}
