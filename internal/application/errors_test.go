package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestServiceError_UnwrapsToKind(t *testing.T) {
	t.Parallel()

	err := newServiceError(ErrConflict, "already a member of this classroom")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected errors.Is to match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is not to match unrelated sentinel")
	}
	if got := err.Error(); got != "already a member of this classroom" {
		t.Fatalf("expected display message, got %q", got)
	}

	wrapped := fmt.Errorf("join: %w", err)
	if got := Message(wrapped); got != "already a member of this classroom" {
		t.Fatalf("expected Message to see through wrapping, got %q", got)
	}
}

func TestMessage_DoesNotLeakUnknownErrors(t *testing.T) {
	t.Parallel()

	if got := Message(nil); got != "" {
		t.Fatalf("expected empty message for nil, got %q", got)
	}
	if got := Message(errors.New("SQL logic error: no such table: classrooms")); got != "internal error" {
		t.Fatalf("expected generic message for foreign error, got %q", got)
	}
	if got := Message(&ValidationError{FieldErrors: map[string]string{"code": "code is required"}}); got != "invalid input" {
		t.Fatalf("expected invalid input message, got %q", got)
	}
}
