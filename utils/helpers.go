package utils

import (
	"database/sql"
	"time"
)

// NilIfInvalid returns nil if sql.NullTime is invalid, otherwise returns the time
func NilIfInvalid(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}

// FormatNullTime formats a sql.NullTime as RFC3339 string or empty string if invalid
func FormatNullTime(t sql.NullTime) string {
	if t.Valid {
		return t.Time.Format(time.RFC3339)
	}
	return ""
}
