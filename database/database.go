package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	neturl "net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Database interface for dependency injection and testing
type Database interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var identRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Connect creates and configures the database connection pool. It does not
// run migrations; schema versioning belongs to the entrypoint's init branch.
func Connect(dbURL string) (*pgxpool.Pool, error) {
	// Best effort ensure the target database exists before pooling against it
	ensureDatabaseExists(dbURL)

	ctx := context.Background()

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 15 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	config.ConnConfig.ConnectTimeout = 5 * time.Second
	config.ConnConfig.RuntimeParams["jit"] = "off"
	config.ConnConfig.RuntimeParams["application_name"] = "cuwep_backend"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := validateConnectivity(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database connectivity validation failed: %w", err)
	}

	log.Println("Database setup completed successfully")
	return pool, nil
}

// ensureDatabaseExists connects to the admin 'postgres' database and issues a
// CREATE DATABASE for the target when it is missing. Failures are logged and
// ignored: managed platforms usually pre-create the database.
func ensureDatabaseExists(dbURL string) {
	adminURL, dbName := adminURLAndDBName(dbURL)
	if dbName == "" || dbName == "postgres" {
		return
	}

	adminDB, err := sql.Open("pgx", adminURL)
	if err != nil {
		log.Printf("Note: could not connect to postgres admin db: %v", err)
		return
	}
	defer func() {
		_ = adminDB.Close()
	}()

	if safe, ok := safePgIdent(dbName); ok {
		if _, err := adminDB.Exec("CREATE DATABASE " + safe); err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
			log.Printf("Note: CREATE DATABASE may have failed (continuing if it exists): %v", err)
		}
	} else {
		log.Printf("Warning: Database name '%s' contains unsupported characters; skipping CREATE DATABASE step", dbName)
	}
}

// validateConnectivity performs a lightweight SELECT 1 with a short deadline
func validateConnectivity(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var result int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	log.Println("✅ Database connectivity verified")
	return nil
}

// adminURLAndDBName builds an admin URL pointing to the 'postgres' database and returns the target db name
func adminURLAndDBName(dbURL string) (string, string) {
	u, err := neturl.Parse(dbURL)
	if err != nil {
		return dbURL, ""
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	u.Path = "/postgres"
	return u.String(), dbName
}

// safePgIdent validates and quotes identifier safely for CREATE DATABASE
func safePgIdent(name string) (string, bool) {
	if identRe.MatchString(name) {
		return name, true
	}
	return "", false
}
