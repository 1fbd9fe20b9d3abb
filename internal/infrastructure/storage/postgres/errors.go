package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrRowsNotAffected reports a write that matched no row, usually a stale version.
var ErrRowsNotAffected = errors.New("no rows affected")

// SQLSTATE codes the repositories translate into domain errors.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally on a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return hasCode(err, CodeUniqueViolation, constraint)
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, CodeForeignKeyViolation, "")
}

func hasCode(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
