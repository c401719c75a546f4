package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"cuwep/utils"
)

// RateLimitConfig holds all rate limiter instances
type RateLimitConfig struct {
	// Auth endpoints: strictest, brute force protection
	AuthLimiter fiber.Handler
	// Standard API traffic
	StandardLimiter fiber.Handler
	// Cheap read endpoints (health, status)
	LightweightLimiter fiber.Handler
}

// NewRateLimitConfig creates all rate limiters using Redis storage so limits
// hold across replicas.
func NewRateLimitConfig(rdb *redis.Client) *RateLimitConfig {
	storage := redisstorage.NewFromConnection(rdb)

	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 5 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many authentication attempts. Please try again later.",
			})
		},
	})

	standardLimiter := limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please slow down.",
			})
		},
	})

	lightweightLimiter := limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please slow down.",
			})
		},
	})

	return &RateLimitConfig{
		AuthLimiter:        authLimiter,
		StandardLimiter:    standardLimiter,
		LightweightLimiter: lightweightLimiter,
	}
}
