package errors

import (
	"context"
	"fmt"
)

// Kind is the coarse failure class the pipeline branches on.
type Kind string

const (
	// KindTransient covers pool, connection and timeout failures. Retryable.
	KindTransient Kind = "transient_infrastructure"
	// KindExternalService covers collaborator calls that failed or returned a malformed payload.
	KindExternalService Kind = "external_service"
	// KindValidation covers collaborator output that could not be normalized.
	KindValidation Kind = "validation"
	// KindConsistency covers claim race losers and missing expected entities.
	KindConsistency Kind = "consistency"
	// KindUnknown is returned for errors that carry no category.
	KindUnknown Kind = "unknown"
)

// KindOf classifies err into one of the pipeline failure kinds.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var ee *EnhancedError
	if As(err, &ee) {
		if k := ee.Kind(); k != KindUnknown {
			return k
		}
	}

	if Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	return KindUnknown
}

func kindForCategory(c ErrorCategory) Kind {
	switch c {
	case CategoryDatabase, CategoryTimeout, CategoryNetwork, CategoryJobQueue:
		return KindTransient
	case CategoryIntegration, CategoryAudio, CategoryFileIO, CategoryHTTP:
		return KindExternalService
	case CategoryValidation:
		return KindValidation
	case CategoryConflict, CategoryNotFound, CategoryState:
		return KindConsistency
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether err is a transient infrastructure failure.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// Transient wraps an infrastructure failure (pool, connection, timeout).
func Transient(err error, component, operation string) *EnhancedError {
	category := CategoryDatabase
	if Is(err, context.DeadlineExceeded) {
		category = CategoryTimeout
	}
	return New(err).
		Component(component).
		Category(category).
		Priority(PriorityHigh).
		Operation(operation).
		Build()
}

// External wraps a failed collaborator call.
func External(err error, component, service string) *EnhancedError {
	return New(err).
		Component(component).
		Category(CategoryIntegration).
		Context("service", service).
		Build()
}

// Invalid creates a validation error for collaborator output.
func Invalid(component, format string, args ...any) *EnhancedError {
	return New(fmt.Errorf(format, args...)).
		Component(component).
		Category(CategoryValidation).
		Build()
}

// Consistency wraps a consistency violation for the given entity.
func Consistency(err error, component, entity string) *EnhancedError {
	return New(err).
		Component(component).
		Category(CategoryConflict).
		Context("entity", entity).
		Build()
}
