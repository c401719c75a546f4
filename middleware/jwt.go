package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"cuwep/crypto"
)

// RevokedTokenPrefix namespaces revoked token hashes in Redis.
const RevokedTokenPrefix = "revoked:"

// TokenHash returns the hex SHA-256 of a bearer token, the form tokens are
// referenced by in the revocation set so raw tokens never reach Redis.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// JWTMiddleware validates the bearer token, rejects revoked tokens, and puts
// the authenticated subject email and token hash into the request context.
func JWTMiddleware(secret []byte, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("Authorization")
		if token == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization"})
		}
		token = strings.TrimPrefix(token, "Bearer ")

		subject, err := crypto.ParseAccessToken(token, secret)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid token"})
		}

		hash := TokenHash(token)
		if rdb != nil {
			if n, err := rdb.Exists(c.Context(), RevokedTokenPrefix+hash).Result(); err == nil && n > 0 {
				return c.Status(401).JSON(fiber.Map{"error": "Token revoked"})
			}
		}

		c.Locals("user_email", subject)
		c.Locals("token_hash", hash)

		return c.Next()
	}
}

// UserEmailFromContext extracts the authenticated email set by JWTMiddleware
func UserEmailFromContext(c *fiber.Ctx) (string, bool) {
	email, ok := c.Locals("user_email").(string)
	if !ok || email == "" {
		return "", false
	}
	return email, true
}
