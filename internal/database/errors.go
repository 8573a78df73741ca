package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/smarttransit/booking-engine/internal/domain"
)

// PostgreSQL SQLSTATE codes the engine reacts to
const (
	sqlStateLockNotAvailable     = "55P03"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateSerializationFailure = "40001"
	sqlStateUniqueViolation      = "23505"
)

// sqlState extracts the SQLSTATE from either driver's error type
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsLockTimeout reports whether err is a lock-wait timeout
func IsLockTimeout(err error) bool {
	return sqlState(err) == sqlStateLockNotAvailable
}

// classifyError turns a raw store error into a retryable PersistenceError
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch sqlState(err) {
	case sqlStateLockNotAvailable:
		return domain.PersistenceError{Op: op, Msg: "seat lock wait timed out", Err: err}
	case sqlStateDeadlockDetected:
		return domain.PersistenceError{Op: op, Msg: "deadlock detected", Err: err}
	case sqlStateSerializationFailure:
		return domain.PersistenceError{Op: op, Msg: "concurrent update", Err: err}
	case sqlStateUniqueViolation:
		return domain.PersistenceError{Op: op, Msg: "duplicate key", Err: err}
	default:
		return domain.PersistenceError{Op: op, Msg: "store failure", Err: err}
	}
}
