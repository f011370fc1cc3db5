package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"httpay/config"
	"httpay/logx"
)

// Connect establishes a connection pool to PostgreSQL with a bounded
// ping/retry loop, so a core booting alongside its database does not
// fail on the first refused connection.
func Connect(databaseURL string, cfg *config.DatabaseConfig, tuning *config.DatabaseTuning) (*sql.DB, error) {
	if tuning == nil {
		tuning = config.DefaultDatabaseTuning()
	}
	retryDelay := time.Duration(tuning.ConnectRetryDelayMs) * time.Millisecond

	var sqlDB *sql.DB
	var lastErr error

	for attempt := 0; attempt < tuning.ConnectRetries; attempt++ {
		if attempt > 0 {
			logx.Warn("DB", fmt.Sprintf("retrying database connection (attempt %d/%d) after error: %v", attempt+1, tuning.ConnectRetries, lastErr))
			time.Sleep(retryDelay)
		}

		var err error
		sqlDB, err = sql.Open("postgres", databaseURL)
		if err != nil {
			lastErr = fmt.Errorf("failed to open database connection: %w", err)
			continue
		}

		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			lastErr = fmt.Errorf("failed to ping database: %w", err)
			continue
		}

		if cfg != nil {
			if cfg.MaxOpenConns > 0 {
				sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			}
			if cfg.MaxIdleConns > 0 {
				sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
			}
			if cfg.ConnMaxLifetime > 0 {
				sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
			}
		}

		logx.Info("DB", "database connection established")
		return sqlDB, nil
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", tuning.ConnectRetries, lastErr)
}

// EnsureSchema creates the ledger tables if they do not exist. The CHECK
// and UNIQUE constraints back the invariants the stores rely on: no
// negative balance, no empty payload or key, no duplicate key triple.
func EnsureSchema(ctx context.Context, sqlDB *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS balances (
			account_id BIGINT NOT NULL,
			currency   TEXT   NOT NULL,
			balance    NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0),
			PRIMARY KEY (account_id, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			id      BIGINT PRIMARY KEY,
			payload BYTEA NOT NULL CHECK (octet_length(payload) > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS account_keys (
			seq        BIGSERIAL,
			account_id BIGINT NOT NULL,
			scheme     TEXT   NOT NULL CHECK (scheme <> ''),
			public_key BYTEA  NOT NULL CHECK (octet_length(public_key) > 0),
			UNIQUE (account_id, scheme, public_key)
		)`,
	}

	for _, stmt := range statements {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	logx.Info("DB", "ledger schema ready")
	return nil
}
