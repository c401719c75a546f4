package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cuwep/config"
	"cuwep/crypto"
	"cuwep/database"
)

// AdminConfig holds configuration for default admin user creation
type AdminConfig struct {
	Enabled  bool
	Email    string
	Password string
}

// LoadAdminConfig reads the default-admin settings from the environment
func LoadAdminConfig() AdminConfig {
	return AdminConfig{
		Enabled:  config.GetEnvAsBool("ENABLE_DEFAULT_ADMIN", false),
		Email:    strings.ToLower(strings.TrimSpace(config.GetEnvOrDefault("DEFAULT_ADMIN_EMAIL", "admin@cuwep.com"))),
		Password: config.GetEnvOrDefault("DEFAULT_ADMIN_PASSWORD", ""),
	}
}

// EnsureDefaultAdmin creates the default admin account on first boot and
// attaches the admin role. Does nothing when the account already exists
// or the feature is disabled.
func EnsureDefaultAdmin(ctx context.Context, db database.Database, cfg AdminConfig) error {
	if !cfg.Enabled {
		log.Println("👤 Default admin creation disabled")
		return nil
	}
	if cfg.Password == "" {
		return fmt.Errorf("ENABLE_DEFAULT_ADMIN is set but DEFAULT_ADMIN_PASSWORD is empty")
	}

	var existingID uuid.UUID
	err := db.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.Email).Scan(&existingID)
	if err == nil {
		log.Printf("👤 Default admin %s already exists", cfg.Email)
		return nil
	}
	if err != pgx.ErrNoRows {
		return fmt.Errorf("failed to look up default admin: %w", err)
	}

	passwordHash, err := crypto.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash default admin password: %w", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin admin creation: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var userID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, is_active, confirmed_at)
		VALUES ($1, $2, true, NOW())
		RETURNING id`,
		cfg.Email, passwordHash,
	).Scan(&userID)
	if err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO roles_users (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = 'admin'
		ON CONFLICT DO NOTHING`,
		userID,
	); err != nil {
		return fmt.Errorf("failed to attach admin role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit admin creation: %w", err)
	}

	log.Printf("✅ Default admin %s created", cfg.Email)
	return nil
}
