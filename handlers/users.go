package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"cuwep/config"
	"cuwep/crypto"
	"cuwep/database"
	"cuwep/utils"
)

// userSortColumns is the allowlist for the users listing sort parameter
var userSortColumns = map[string]bool{
	"email":         true,
	"is_active":     true,
	"confirmed_at":  true,
	"created_at":    true,
	"last_login_at": true,
}

const usersPageSizeMax = 200

// UsersHandler handles user listing and account maintenance requests
type UsersHandler struct {
	db     database.Database
	mailer Mailer
	config *config.Config
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(db database.Database, mailer Mailer, cfg *config.Config) *UsersHandler {
	return &UsersHandler{
		db:     db,
		mailer: mailer,
		config: cfg,
	}
}

// GetUsers returns a pageable listing of all users
func (h *UsersHandler) GetUsers(c *fiber.Ctx) error {
	if email, ok := c.Locals("user_email").(string); ok {
		utils.LogInfo("GET Users", "current_user", email)
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	size := c.QueryInt("size", 50)
	if size < 1 {
		size = 50
	}
	if size > usersPageSizeMax {
		size = usersPageSizeMax
	}

	orderClause, err := buildOrderClause(c.Query("sort"), userSortColumns)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	if orderClause == "" {
		orderClause = `ORDER BY "created_at" ASC`
	}

	ctx := c.Context()

	var total int
	if err := h.db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		utils.LogRequestError(c, "GET_USERS_COUNT", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to list users"})
	}

	query := fmt.Sprintf(`
        SELECT id, email, is_active, confirmed_at, last_login_at, last_login_ip
        FROM users %s LIMIT $1 OFFSET $2`, orderClause)

	rows, err := h.db.Query(ctx, query, size, (page-1)*size)
	if err != nil {
		utils.LogRequestError(c, "GET_USERS", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to list users"})
	}
	defer rows.Close()

	items := []UserDTO{}
	for rows.Next() {
		var user userRow
		if err := rows.Scan(&user.ID, &user.Email, &user.IsActive, &user.ConfirmedAt,
			&user.LastLoginAt, &user.LastLoginIP); err != nil {
			utils.LogRequestError(c, "GET_USERS_SCAN", err)
			return c.Status(500).JSON(fiber.Map{"error": "Failed to list users"})
		}
		items = append(items, user.toDTO())
	}
	if err := rows.Err(); err != nil {
		utils.LogRequestError(c, "GET_USERS_ROWS", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to list users"})
	}

	return c.JSON(NewPageableResponse(items, total))
}

// ResendConfirmation refreshes the confirmation code for an account and
// resends the confirmation email.
func (h *UsersHandler) ResendConfirmation(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	email := normalizeEmail(req.Email)

	ctx := c.Context()
	var id any
	err := h.db.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(404).JSON(fiber.Map{"error": fmt.Sprintf("User with email %s not found", email)})
		}
		utils.LogRequestError(c, "RESEND_CONFIRMATION", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to resend confirmation"})
	}

	code, err := crypto.GenerateResetCode()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to generate confirmation code"})
	}

	_, err = h.db.Exec(ctx, `
        UPDATE users
        SET reset_code_hash = $2, reset_code_expiration = $3, updated_at = NOW()
        WHERE id = $1`,
		id, code.Hash, time.Now().Add(h.config.ResetTokenExpire),
	)
	if err != nil {
		utils.LogRequestError(c, "RESEND_CONFIRMATION", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to resend confirmation"})
	}

	h.mailer.SendConfirmationAsync(email, code.Code)

	return c.JSON(fiber.Map{})
}
