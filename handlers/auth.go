package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cuwep/config"
	"cuwep/crypto"
	"cuwep/database"
	"cuwep/metrics"
	"cuwep/middleware"
	"cuwep/utils"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db     database.Database
	redis  *redis.Client
	mailer Mailer
	config *config.Config
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(db database.Database, rdb *redis.Client, mailer Mailer, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		db:     db,
		redis:  rdb,
		mailer: mailer,
		config: cfg,
	}
}

// Register creates an inactive account and mails a confirmation link
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid email address"})
	}
	if !validatePassword(req.Password) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit, and a special character",
		})
	}

	utils.LogInfo("POST Register User", "email", email)

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to generate credentials"})
	}

	code, err := crypto.GenerateResetCode()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to generate credentials"})
	}

	ctx := c.Context()
	var user userRow
	err = h.db.QueryRow(ctx, `
        INSERT INTO users (email, password_hash, reset_code_hash, reset_code_expiration)
        VALUES ($1, $2, $3, $4)
        RETURNING id, email, is_active, confirmed_at, last_login_at, last_login_ip`,
		email, passwordHash, code.Hash, time.Now().Add(h.config.ResetTokenExpire),
	).Scan(&user.ID, &user.Email, &user.IsActive, &user.ConfirmedAt, &user.LastLoginAt, &user.LastLoginIP)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate") {
			return c.Status(409).JSON(fiber.Map{"error": "Email already registered"})
		}
		utils.LogRequestError(c, "REGISTER", err)
		return c.Status(500).JSON(fiber.Map{"error": "Registration failed"})
	}

	h.mailer.SendConfirmationAsync(email, code.Code)
	metrics.IncrementAuthOperation("register", "success")

	return c.Status(201).JSON(user.toDTO())
}

// Confirm activates an account using the code from the confirmation email
func (h *AuthHandler) Confirm(c *fiber.Ctx) error {
	var req UserCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	email := normalizeEmail(req.Email)
	utils.LogInfo("POST confirm user", "email", email)

	ctx := c.Context()
	user, err := h.getUserByEmail(ctx, email)
	if err != nil {
		utils.LogInfo("Attempted confirming of unknown user", "email", email)
		crypto.DummyVerify()
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired reset code"})
	}

	if !h.verifyResetCode(user, req.Code) {
		utils.LogInfo("Attempted confirming of user with invalid code", "email", email)
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired reset code"})
	}

	if user.IsActive {
		utils.LogInfo("User is already active", "email", email)
		return c.Status(401).JSON(fiber.Map{"error": "User is already activated"})
	}

	_, err = h.db.Exec(ctx, `
        UPDATE users
        SET is_active = true, confirmed_at = NOW(),
            reset_code_hash = NULL, reset_code_expiration = NULL,
            updated_at = NOW()
        WHERE id = $1`,
		user.ID,
	)
	if err != nil {
		utils.LogRequestError(c, "CONFIRM", err)
		return c.Status(500).JSON(fiber.Map{"error": "Confirmation failed"})
	}

	return c.JSON(fiber.Map{})
}

// Login authenticates a confirmed user and returns a bearer token
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	email := normalizeEmail(req.Email)
	utils.LogInfo("Login attempt", "email", email)

	ctx := c.Context()
	user, err := h.getUserByEmail(ctx, email)
	if err != nil {
		utils.LogInfo("Login failed, user not found.", "email", email)
		crypto.DummyVerify()
		return c.Status(401).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	if !user.ConfirmedAt.Valid {
		utils.LogInfo("Login failed, user is not activated.", "email", email)
		crypto.DummyVerify()
		return c.Status(401).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	if !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		utils.LogInfo("Login failed, user provided an incorrect password.", "email", email)
		metrics.IncrementAuthOperation("login", "failure")
		return c.Status(401).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	if _, err := h.db.Exec(ctx, `
        UPDATE users SET last_login_at = NOW(), last_login_ip = $2, updated_at = NOW()
        WHERE id = $1`,
		user.ID, utils.ClientIP(c),
	); err != nil {
		// Login still succeeds; the audit columns are best effort
		utils.LogRequestError(c, "LOGIN_AUDIT", err)
	}

	token, err := crypto.CreateAccessToken(email, h.config.SecretKey, h.config.AccessTokenExpire)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Token generation failed"})
	}

	utils.LogInfo("Login successful", "email", email, "previous_login", utils.FormatNullTime(user.LastLoginAt))
	metrics.IncrementAuthOperation("login", "success")
	return c.JSON(TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout revokes the presented token until its natural expiry
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	hash, ok := c.Locals("token_hash").(string)
	if !ok || hash == "" {
		return c.Status(401).JSON(fiber.Map{"error": "Missing authorization"})
	}

	if err := h.redis.Set(c.Context(), middleware.RevokedTokenPrefix+hash, "1", h.config.AccessTokenExpire).Err(); err != nil {
		utils.LogRequestError(c, "LOGOUT", err)
		return c.Status(500).JSON(fiber.Map{"error": "Logout failed"})
	}

	return c.JSON(fiber.Map{})
}

// ForgotPassword starts the reset flow. Always returns 200 so responses
// cannot be used to probe which emails are registered.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	email := normalizeEmail(req.Email)
	utils.LogInfo("POST forgot password", "email", email)

	// Generate before the lookup so request timing does not leak whether the
	// account exists.
	code, err := crypto.GenerateResetCode()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to generate reset code"})
	}

	ctx := c.Context()
	user, err := h.getUserByEmail(ctx, email)
	if err != nil {
		return c.JSON(fiber.Map{})
	}

	if err := h.storeResetCode(ctx, user.ID, code.Hash); err != nil {
		utils.LogRequestError(c, "FORGOT_PASSWORD", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to process request"})
	}

	h.mailer.SendPasswordResetAsync(email, code.Code)

	return c.JSON(fiber.Map{})
}

// CheckResetCode validates a reset code without consuming it, so a UI can
// reject a stale link before asking for the new password.
func (h *AuthHandler) CheckResetCode(c *fiber.Ctx) error {
	var req UserCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	email := normalizeEmail(req.Email)

	user, err := h.getUserByEmail(c.Context(), email)
	if err != nil {
		utils.LogInfo("Attempted reset of unknown user", "email", email)
		crypto.DummyVerify()
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired reset code"})
	}

	if !h.verifyResetCode(user, req.Code) {
		utils.LogInfo("Attempted reset of user with invalid code", "email", email)
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired reset code"})
	}

	return c.JSON(fiber.Map{})
}

// ResetPassword completes the reset flow and returns a fresh token
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	email := normalizeEmail(req.Email)

	ctx := c.Context()
	user, err := h.getUserByEmail(ctx, email)
	if err != nil {
		utils.LogInfo("Attempted reset of unknown user", "email", email)
		crypto.DummyVerify()
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired reset code"})
	}

	if !h.verifyResetCode(user, req.Code) {
		utils.LogInfo("Attempted reset of user with invalid code", "email", email)
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired reset code"})
	}

	if !validatePassword(req.Password) {
		return c.Status(422).JSON(fiber.Map{
			"error": "Password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit, and a special character",
		})
	}

	if crypto.VerifyPassword(req.Password, user.PasswordHash) {
		return c.Status(422).JSON(fiber.Map{"error": "New password may not be identical to the previous one"})
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to generate credentials"})
	}

	_, err = h.db.Exec(ctx, `
        UPDATE users
        SET password_hash = $2, reset_code_hash = NULL, reset_code_expiration = NULL,
            updated_at = NOW()
        WHERE id = $1`,
		user.ID, passwordHash,
	)
	if err != nil {
		utils.LogRequestError(c, "RESET_PASSWORD", err)
		return c.Status(500).JSON(fiber.Map{"error": "Password reset failed"})
	}

	token, err := crypto.CreateAccessToken(email, h.config.SecretKey, h.config.AccessTokenExpire)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Token generation failed"})
	}

	return c.JSON(TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// getUserByEmail loads the full user row for the given (normalized) email
func (h *AuthHandler) getUserByEmail(ctx context.Context, email string) (*userRow, error) {
	var user userRow
	err := h.db.QueryRow(ctx, `
        SELECT id, email, password_hash, is_active, confirmed_at,
               last_login_at, last_login_ip, reset_code_hash, reset_code_expiration
        FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsActive, &user.ConfirmedAt,
		&user.LastLoginAt, &user.LastLoginIP, &user.ResetCodeHash, &user.ResetCodeExpiration)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// verifyResetCode checks hash, presence, and expiration in one place
func (h *AuthHandler) verifyResetCode(user *userRow, code string) bool {
	return user.ResetCodeHash.Valid &&
		user.ResetCodeExpiration.Valid &&
		user.ResetCodeExpiration.Time.After(time.Now()) &&
		crypto.VerifyResetCode(code, user.ResetCodeHash.String)
}

// storeResetCode stamps a fresh code hash and expiration on the user
func (h *AuthHandler) storeResetCode(ctx context.Context, userID uuid.UUID, codeHash string) error {
	_, err := h.db.Exec(ctx, `
        UPDATE users
        SET reset_code_hash = $2, reset_code_expiration = $3, updated_at = NOW()
        WHERE id = $1`,
		userID, codeHash, time.Now().Add(h.config.ResetTokenExpire),
	)
	return err
}
