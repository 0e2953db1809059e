package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// PostgreSQL error codes mapped to domain errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// mapError translates driver errors into auth sentinels. Errors that do not
// match are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return auth.ErrConflict
		case codeForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}
