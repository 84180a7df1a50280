package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors - these represent business rule violations
var (
	// Authentication & Authorization
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("action forbidden")
	ErrUnauthorized       = errors.New("unauthorized")

	// Generic categories. Entity-specific errors wrap these so callers
	// can match either the precise error or the category.
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource conflict")
	ErrInternal   = errors.New("internal server error")
	ErrBadRequest = errors.New("bad request")

	ErrRateLimited = errors.New("rate limit exceeded")

	ErrPasswordTooWeak = errors.New("password does not meet requirements")

	// Not found
	ErrUserNotFound         = fmt.Errorf("user: %w", ErrNotFound)
	ErrOrganizationNotFound = fmt.Errorf("organization: %w", ErrNotFound)
	ErrProjectNotFound      = fmt.Errorf("project: %w", ErrNotFound)
	ErrTaskNotFound         = fmt.Errorf("task: %w", ErrNotFound)
	ErrCommentNotFound      = fmt.Errorf("comment: %w", ErrNotFound)

	// Conflicts
	ErrUserExists = fmt.Errorf("user already exists: %w", ErrConflict)
	ErrSlugTaken  = fmt.Errorf("organization slug already exists: %w", ErrConflict)

	// Event delivery. Local to the event bus, never returned to a publisher.
	ErrChannelDelivery = errors.New("subscriber channel unreachable")
	ErrBusClosed       = errors.New("event bus closed")
	// ErrSubscriptionClosed ends a session whose subscription went away
	// underneath it.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

// NewValidationErrors creates an empty collection of field errors
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

// Add records a validation error for field
func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

// HasErrors reports whether any field failed validation
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Fields returns the names of the invalid fields in sorted order.
func (v *ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v.Errors))
	for field := range v.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors (%s)",
		len(v.Errors), strings.Join(v.Fields(), ", "))
}

// IsValidation reports whether err carries field validation errors.
func IsValidation(err error) bool {
	var v *ValidationErrors
	return errors.As(err, &v)
}
