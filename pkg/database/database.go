package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nanba/pharmacy-backend/pkg/config"
	"github.com/nanba/pharmacy-backend/pkg/logger"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
	healthTimeout   = time.Second
)

// DB wraps sqlx.DB with transactions and health reporting
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New connects using the service configuration, applying its pool limits.
// PostgreSQL is often still starting when the service comes up, so the
// first connection is retried with linear backoff.
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := open(cfg.DSN(), log)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().
		Str("target", cfg.Redacted()).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("connected to database")

	return db, nil
}

func open(dsn string, log *logger.Logger) (*DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := sqlx.Connect("postgres", dsn)
		if err == nil {
			return Wrap(db, log), nil
		}
		lastErr = err

		if attempt < connectAttempts {
			log.Warn().Err(err).Int("attempt", attempt).Msg("database not reachable, retrying")
			time.Sleep(time.Duration(attempt) * connectBackoff)
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectAttempts, lastErr)
}

// Wrap adopts an existing sqlx handle (sqlmock, testcontainers)
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health pings the database and reports pool usage
func (db *DB) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	err := db.PingContext(ctx)
	stats := db.Stats()

	status := map[string]string{
		"status":     "up",
		"latency_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
		"open_conns": strconv.Itoa(stats.OpenConnections),
		"in_use":     strconv.Itoa(stats.InUse),
		"idle":       strconv.Itoa(stats.Idle),
		"wait_count": strconv.FormatInt(stats.WaitCount, 10),
	}

	if err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}

// Transaction runs fn in a transaction. It commits if fn returns nil and
// rolls back on error or panic; a panic is re-raised after the rollback.
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			db.rollback(tx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		db.rollback(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (db *DB) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil {
		db.logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}
