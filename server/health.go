package server

import (
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"cuwep/config"
	"cuwep/database"
)

// ReadyState tracks initialization state for health checks
type ReadyState struct {
	db          database.Database
	config      *config.Config
	rdb         *redis.Client
	dbReady     atomic.Bool
	redisReady  atomic.Bool
	mailerReady atomic.Bool
}

// NewReadyState creates a new ReadyState instance
func NewReadyState(db database.Database, cfg *config.Config, rdb *redis.Client) *ReadyState {
	return &ReadyState{
		db:     db,
		config: cfg,
		rdb:    rdb,
	}
}

// MarkDBReady marks the database initialization as complete
func (r *ReadyState) MarkDBReady() {
	r.dbReady.Store(true)
}

// MarkRedisReady marks the Redis initialization as complete
func (r *ReadyState) MarkRedisReady() {
	r.redisReady.Store(true)
}

// MarkMailerReady marks the mailer initialization as complete
func (r *ReadyState) MarkMailerReady() {
	r.mailerReady.Store(true)
}

// IsFullyReady returns true if all initialization steps are complete
func (r *ReadyState) IsFullyReady() bool {
	return r.dbReady.Load() &&
		r.redisReady.Load() &&
		r.mailerReady.Load()
}

// IsDBReady returns true if database initialization is complete
func (r *ReadyState) IsDBReady() bool {
	return r.dbReady.Load()
}

// IsRedisReady returns true if Redis initialization is complete
func (r *ReadyState) IsRedisReady() bool {
	return r.redisReady.Load()
}

// IsMailerReady returns true if mailer initialization is complete
func (r *ReadyState) IsMailerReady() bool {
	return r.mailerReady.Load()
}

// GetDB returns the database handle
func (r *ReadyState) GetDB() database.Database {
	return r.db
}

// GetRedis returns the Redis client
func (r *ReadyState) GetRedis() *redis.Client {
	return r.rdb
}

// GetConfig returns the application configuration
func (r *ReadyState) GetConfig() *config.Config {
	return r.config
}
