package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/pianotech/tournee/internal/domain"
)

const dateLayout = "2006-01-02"

// parseNullableTime parses a sql.NullString into a *time.Time using the given layout.
// Returns nil if the value is NULL, empty, or fails to parse.
func parseNullableTime(s sql.NullString, layout string) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(layout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullableTimeToString converts a *time.Time to a value suitable for SQLite storage.
// Returns nil (SQL NULL) if the pointer is nil, otherwise returns the formatted string.
func nullableTimeToString(t *time.Time, layout string) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(layout)
}

// nullableString maps nil to SQL NULL.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringFromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// boolToInt converts a Go bool to an integer (0 or 1) for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatSeen keeps nanoseconds so back-to-back refreshes get distinct stamps.
func formatSeen(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s, column string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &domain.PersistenceError{Op: "parsing " + column, Err: err}
	}
	return t, nil
}

// persistErr wraps a driver failure, passing domain errors through unchanged.
func persistErr(op string, err error, ids ...string) error {
	var nf *domain.NotFoundError
	var ce *domain.ConflictError
	if errors.As(err, &nf) || errors.As(err, &ce) {
		return err
	}
	return &domain.PersistenceError{Op: op, IDs: ids, Err: err}
}
