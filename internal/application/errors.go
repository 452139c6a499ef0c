package application

import "errors"

var (
	// ErrUnauthenticated is returned when no verified principal accompanies a call.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrForbidden is returned when the acting principal lacks the role or ownership for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested classroom does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned for duplicate join codes and duplicate memberships.
	ErrConflict = errors.New("application: conflict")
	// ErrInvalidState is returned when an action does not apply to the current membership state.
	ErrInvalidState = errors.New("application: invalid state")
	// ErrInternal is returned when the store fails. The cause is logged, never returned.
	ErrInternal = errors.New("application: internal error")
)

// serviceError pairs a sentinel kind with a message that is safe to display.
// cause holds the store failure behind an internal error for logging only.
type serviceError struct {
	kind    error
	message string
	cause   error
}

func newServiceError(kind error, message string) error {
	return &serviceError{kind: kind, message: message}
}

func newInternalError(message string, cause error) error {
	return &serviceError{kind: ErrInternal, message: message, cause: cause}
}

// errorCause returns the underlying store failure of an internal error, if any.
func errorCause(err error) error {
	var sErr *serviceError
	if errors.As(err, &sErr) {
		return sErr.cause
	}
	return nil
}

func (e *serviceError) Error() string {
	return e.message
}

func (e *serviceError) Unwrap() error {
	return e.kind
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// Message returns the display message for err, falling back to a generic text
// when err does not belong to the service taxonomy.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var sErr *serviceError
	if errors.As(err, &sErr) {
		return sErr.message
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "invalid input"
	}
	return "internal error"
}
