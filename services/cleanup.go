package services

import (
	"context"
	"log"
	"time"

	"cuwep/database"
)

// StartCleanupService starts a background cleanup service that runs every 24 hours
func StartCleanupService(db database.Database) {
	go func() {
		ctx := context.Background()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		// Run initial cleanup
		RunCleanupTasks(ctx, db)

		for range ticker.C {
			RunCleanupTasks(ctx, db)
		}
	}()
}

// RunCleanupTasks performs cleanup operations on the database
func RunCleanupTasks(ctx context.Context, db database.Database) {
	log.Println("🧹 Running scheduled cleanup tasks...")

	// Note: Revoked token cleanup is handled by Redis TTL

	// Drop reset codes that can no longer be redeemed
	result, err := db.Exec(ctx, `
		UPDATE users
		SET reset_code_hash = NULL, reset_code_expiration = NULL, updated_at = NOW()
		WHERE reset_code_expiration IS NOT NULL AND reset_code_expiration < NOW()
	`)
	if err != nil {
		log.Printf("⚠️ Failed to clear expired reset codes: %v", err)
	} else if result.RowsAffected() > 0 {
		log.Printf("✅ Cleared expired reset codes for %d users", result.RowsAffected())
	}

	// Accounts that never confirmed and whose code has lapsed
	var staleCount int
	_ = db.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE is_active = false AND created_at < NOW() - INTERVAL '30 days'
	`).Scan(&staleCount) // best effort count

	if staleCount > 0 {
		log.Printf("🗑️ %d unconfirmed accounts are older than 30 days", staleCount)
	}

	log.Println("🎯 Cleanup tasks completed successfully")
}
