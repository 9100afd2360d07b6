package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlstateUniqueViolation   = "23505"
	sqlstateCheckViolation    = "23514"
	sqlstateSerializationFail = "40001"
	sqlstateDeadlockDetected  = "40P01"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateUniqueViolation
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateCheckViolation
}

// isRetryableConflict reports whether the error is a transient transaction
// conflict worth retrying rather than a business failure.
func isRetryableConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlstateSerializationFail || pgErr.Code == sqlstateDeadlockDetected
}
