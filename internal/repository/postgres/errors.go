package postgres

import (
	"database/sql"

	"github.com/lib/pq"

	"minerva/pkg/errors"
)

// pq error codes we map onto domain errors
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

// wrapError maps storage-layer failures onto the coordination error kinds:
// missing rows and broken references are final, everything else is treated
// as a transient storage failure the caller may retry.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return errors.Wrap(errors.ErrNotFound, message)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeForeignKeyViolation:
			return errors.Wrap(errors.ErrNotFound, message)
		case codeUniqueViolation:
			return errors.Wrap(errors.ErrAlreadyExists, message)
		}
	}
	return errors.Newf("%s: %w: %v", message, errors.ErrUnavailable, err)
}
