package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/fiberline/backoffice/ports"
)

// ErrNotFound is returned when an entity is not found.
var ErrNotFound = ports.ErrNotFound

// ErrDuplicate is returned when a unique constraint is violated.
var ErrDuplicate = ports.ErrDuplicate

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimeZero treats the zero time as NULL, for optional date columns held
// as plain time.Time (e.g. an unconfigured anchor date).
func nullTimeZero(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
