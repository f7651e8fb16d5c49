// Package errors wraps failures with the component, category and context the
// worker needs to classify them. Categories fold into the four pipeline
// failure kinds (see Kind). Built errors are forwarded to Sentry when a
// telemetry reporter is installed.
//
// The package shadows the standard library errors package, so callers import
// only this one.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory names the subsystem or failure mode of an error.
type ErrorCategory string

// CategorizedError lets foreign error types declare their own category.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

// Infrastructure categories. They classify as KindTransient.
const (
	CategoryDatabase ErrorCategory = "database"
	CategoryNetwork  ErrorCategory = "network"
	CategoryTimeout  ErrorCategory = "timeout"
	CategoryJobQueue ErrorCategory = "job-queue"
)

// Collaborator categories. They classify as KindExternalService.
const (
	CategoryIntegration ErrorCategory = "integration" // LLM, transcription, embeddings
	CategoryHTTP        ErrorCategory = "http-request"
	CategoryAudio       ErrorCategory = "audio-processing"
	CategoryFileIO      ErrorCategory = "file-io"
)

// Data categories.
const (
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not-found"
	CategoryConflict   ErrorCategory = "conflict"
	CategoryState      ErrorCategory = "state"
)

// Categories outside the pipeline failure kinds.
const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryMQTTPublish   ErrorCategory = "mqtt-publish"
	CategoryCancellation  ErrorCategory = "cancellation"
	CategoryGeneric       ErrorCategory = "generic"
)

// Priorities override the Sentry level derived from the category.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ComponentUnknown is recorded when the caller did not name a component.
const ComponentUnknown = "unknown"

var reportingActive atomic.Bool

// EnhancedError is an error annotated by a builder.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Priority  string
	Context   map[string]any
	Timestamp time.Time

	component string
	mu        sync.RWMutex
	reported  bool
}

func (ee *EnhancedError) Error() string {
	if ee.Err != nil {
		return ee.Err.Error()
	}
	return string(ee.Category)
}

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError by category, otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// Kind classifies the error into a pipeline failure kind.
func (ee *EnhancedError) Kind() Kind {
	return kindForCategory(ee.Category)
}

// GetComponent returns the component that built the error.
func (ee *EnhancedError) GetComponent() string { return ee.component }

// GetPriority returns the explicit priority, or "" when none was set.
func (ee *EnhancedError) GetPriority() string { return ee.Priority }

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// MarkReported records that telemetry has seen this error.
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	ee.reported = true
	ee.mu.Unlock()
}

// IsReported reports whether telemetry has seen this error.
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts a builder around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts a builder around a formatted error; %w is honored.
func Newf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{err: fmt.Errorf(format, args...)}
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets an explicit priority. Unrecognized values become medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case "":
	case PriorityLow, PriorityMedium, PriorityHigh:
		eb.priority = priority
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context attaches a key/value pair. Values reach Sentry scrubbed.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any, 4)
	}
	eb.context[key] = value
	return eb
}

// Operation records the store or collaborator operation that failed.
func (eb *ErrorBuilder) Operation(op string) *ErrorBuilder {
	return eb.Context("operation", op)
}

// Timing records the operation with its elapsed time in milliseconds.
func (eb *ErrorBuilder) Timing(op string, elapsed time.Duration) *ErrorBuilder {
	return eb.Operation(op).Context("duration_ms", elapsed.Milliseconds())
}

// Build returns the error and hands it to the telemetry reporter, if any.
// Without an explicit category the wrapped error's category is inherited.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: eb.component,
	}
	if ee.component == "" {
		ee.component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = inheritCategory(eb.err)
	}
	if reportingActive.Load() {
		reportToTelemetry(ee)
	}
	return ee
}

func inheritCategory(err error) ErrorCategory {
	var enhanced *EnhancedError
	if stderrors.As(err, &enhanced) && enhanced.Category != "" {
		return enhanced.Category
	}
	var categorized CategorizedError
	if stderrors.As(err, &categorized) {
		return categorized.ErrorCategory()
	}
	return CategoryGeneric
}

// NewStd is errors.New from the standard library.
func NewStd(text string) error { return stderrors.New(text) }

// Is is errors.Is from the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is errors.As from the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join is errors.Join from the standard library.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// Unwrap is errors.Unwrap from the standard library.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// IsCategory reports whether err carries an EnhancedError of category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhanced *EnhancedError
	return stderrors.As(err, &enhanced) && enhanced.Category == category
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
