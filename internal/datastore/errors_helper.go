package datastore

import (
	"context"
	"database/sql/driver"
	"net"
	"strings"

	"gorm.io/gorm"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

const component = "datastore"

// ErrNotFound is returned (wrapped) when an expected row is missing.
var ErrNotFound = errors.NewStd("record not found")

// mapError converts a driver or GORM error into a categorized error.
// Connection, lock and deadline failures are transient; constraint
// violations and missing rows are consistency errors.
func mapError(err error, operation string, kv ...any) error {
	if err == nil {
		return nil
	}

	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFoundError(operation, kv...)
	case isTransient(err):
		return dbError(err, operation, errors.PriorityHigh, kv...)
	case isConstraintViolation(err):
		return conflictError(err, operation, "constraint", kv...)
	default:
		return dbError(err, operation, errors.PriorityMedium, kv...)
	}
}

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, kv ...any) error {
	category := errors.CategoryDatabase
	if errors.Is(err, context.DeadlineExceeded) {
		category = errors.CategoryTimeout
	}

	builder := errors.New(err).
		Component(component).
		Category(category).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	return withPairs(builder, kv).Build()
}

// conflictError creates a conflict error for constraint violations
func conflictError(err error, operation, conflictType string, kv ...any) error {
	builder := errors.New(err).
		Component(component).
		Category(errors.CategoryConflict).
		Priority(errors.PriorityMedium).
		Context("operation", operation).
		Context("conflict_type", conflictType)

	return withPairs(builder, kv).Build()
}

// notFoundError creates a not found error wrapping ErrNotFound
func notFoundError(operation string, kv ...any) error {
	builder := errors.New(ErrNotFound).
		Component(component).
		Category(errors.CategoryNotFound).
		Priority(errors.PriorityLow).
		Context("operation", operation)

	return withPairs(builder, kv).Build()
}

func withPairs(builder *errors.ErrorBuilder, kv []any) *errors.ErrorBuilder {
	for i := 0; i < len(kv)-1; i += 2 {
		if key, ok := kv[i].(string); ok {
			builder = builder.Context(key, kv[i+1])
		}
	}
	return builder
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, gorm.ErrInvalidDB) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"database is locked",
		"too many connections",
		"deadlock",
		"server closed the connection",
		"sql: database is closed",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "foreign key constraint")
}
