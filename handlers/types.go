package handlers

import (
	"database/sql"
	"net/mail"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"cuwep/utils"
)

// Mailer is the subset of the mail service handlers depend on
type Mailer interface {
	SendConfirmationAsync(email, code string)
	SendPasswordResetAsync(email, code string)
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserCodeRequest carries an email/code pair for confirmation and reset checks
type UserCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// PasswordResetRequest completes the forgotten-password flow
type PasswordResetRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// EmailRequest carries a bare email address
type EmailRequest struct {
	Email string `json:"email"`
}

// TokenResponse is the login/reset success payload
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserDTO is the read model returned for user records
type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	IsActive    bool      `json:"is_active"`
	ConfirmedAt any       `json:"confirmed_at"`
	LastLoginAt any       `json:"last_login_at"`
	LastLoginIP any       `json:"last_login_ip"`
}

// userRow mirrors the users table columns the handlers read
type userRow struct {
	ID                  uuid.UUID
	Email               string
	PasswordHash        string
	IsActive            bool
	ConfirmedAt         sql.NullTime
	LastLoginAt         sql.NullTime
	LastLoginIP         sql.NullString
	ResetCodeHash       sql.NullString
	ResetCodeExpiration sql.NullTime
}

func (u *userRow) toDTO() UserDTO {
	dto := UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		ConfirmedAt: utils.NilIfInvalid(u.ConfirmedAt),
		LastLoginAt: utils.NilIfInvalid(u.LastLoginAt),
	}
	if u.LastLoginIP.Valid {
		dto.LastLoginIP = u.LastLoginIP.String
	}
	return dto
}

// validEmail reports whether the address parses as a single RFC 5322 address
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// validatePassword enforces the account password policy: at least 8
// characters with one uppercase letter, one lowercase letter, one digit, and
// one special character.
func validatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsSpace(r):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSpecial
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
