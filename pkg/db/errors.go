package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation matches both the postgres error text and,
// for sqlite-backed tests, the sqlite constraint message.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "duplicate key value") {
		return constraint == "" || strings.Contains(msg, constraint)
	}
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	return false
}
