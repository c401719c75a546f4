package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "cuwep/config"
	"cuwep/database"
	"cuwep/mail"
	appserver "cuwep/server"
	"cuwep/services"
	"cuwep/utils"
)

func main() {
	cfg := appconfig.LoadConfig()
	utils.InitLogging(cfg.LogLevel)
	utils.TrustProxyHeaders.Store(cfg.TrustProxyHeaders)

	startTime := time.Now()

	// Schema migrations run in the container entrypoint, not here
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Database setup failed:", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer rdb.Close()

	mailer := mail.NewMailer(cfg)

	readyState := appserver.NewReadyState(db, cfg, rdb)
	app := appserver.CreateFiberApp(startTime, readyState)

	setupRoutes(app, db, rdb, mailer, cfg)

	readyState.MarkDBReady()
	readyState.MarkMailerReady()

	go func() {
		for {
			err := rdb.Ping(context.Background()).Err()
			if err == nil {
				readyState.MarkRedisReady()
				return
			}
			log.Printf("⚠️ Redis not reachable yet: %v", err)
			time.Sleep(2 * time.Second)
		}
	}()

	if err := services.EnsureDefaultAdmin(context.Background(), db, services.LoadAdminConfig()); err != nil {
		log.Printf("Warning: Failed to create default admin user: %v", err)
	}

	services.StartCleanupService(db)

	if err := appserver.ListenWithIPv6Fallback(app, cfg.Port, startTime); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
