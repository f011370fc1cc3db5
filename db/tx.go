package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"

	"httpay/errors"
	"httpay/logx"
)

// SQLSTATE classes the stores care about.
const (
	stateUniqueViolation  = "23505"
	stateNotNullViolation = "23502"
	stateCheckViolation   = "23514"
	stateSerialization    = "40001"
	stateDeadlock         = "40P01"
)

const defaultTxRetries = 10

// SQLState extracts the Postgres SQLSTATE from err, or "" if err did not
// originate in the driver.
func SQLState(err error) string {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func IsUniqueViolation(err error) bool { return SQLState(err) == stateUniqueViolation }

func IsConstraintViolation(err error) bool {
	switch SQLState(err) {
	case stateUniqueViolation, stateNotNullViolation, stateCheckViolation:
		return true
	}
	return false
}

// isRetryableState reports a write-write conflict the transaction runner
// resolves by rerunning the whole unit.
func isRetryableState(err error) bool {
	switch SQLState(err) {
	case stateSerialization, stateDeadlock:
		return true
	}
	return false
}

// RunInTx executes fn inside a database transaction. The transaction is
// rolled back on any error, so a failing unit never leaves partial
// effect. Serialization failures and deadlocks rerun fn from scratch up
// to retries times; every other error is returned to the caller for
// mapping (constraint violations carry business meaning for the stores).
func RunInTx(ctx context.Context, sqlDB *sql.DB, retries int, fn func(tx *sql.Tx) error) error {
	if retries <= 0 {
		retries = defaultTxRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		err := runOnce(ctx, sqlDB, fn)
		if err == nil {
			return nil
		}
		if !isRetryableState(err) {
			return err
		}
		lastErr = err
		logx.Debug("DB", fmt.Sprintf("transaction conflict (attempt %d/%d): %v", attempt+1, retries, err))
	}

	return errors.Storage(fmt.Sprintf("transaction aborted after %d conflicts", retries), lastErr)
}

func runOnce(ctx context.Context, sqlDB *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Storage("failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			logx.Error("DB", "rollback failed: ", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
