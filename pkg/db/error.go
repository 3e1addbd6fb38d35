package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique-constraint violation,
// normalized across the supported dialects.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsTransient reports whether err looks like a store-level failure that is
// safe to retry from scratch: timeouts, dropped connections, serialization
// conflicts. Validation and state errors never match.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"deadlock detected",                // postgres 40P01
		"could not serialize access",       // postgres 40001
		"Error 1213",                       // mysql deadlock
		"database is locked",               // sqlite busy
		"driver: bad connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
