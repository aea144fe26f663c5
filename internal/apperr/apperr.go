// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// Callers must treat this as "already exists", not as a failure.
var ErrDuplicate = errors.New("duplicate key")

// uniqueViolation is the Postgres error code for a unique constraint violation.
const uniqueViolation = "23505"

// FromInsert maps a Postgres unique violation to ErrDuplicate and passes
// everything else through unchanged.
func FromInsert(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// IsDuplicate reports whether err is a uniqueness violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsNotFound reports whether err is a missing-record condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
