package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case checks that errors.Is() identifies the sentinel behind a constructor,
// even when the AppError has been wrapped again by a caller.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"NotFound wraps ErrNotFound", NotFound("assignment", "abc123"), ErrNotFound, true},
		{"InvalidArgument wraps ErrInvalidArgument", InvalidArgument("page", "page must be at least 1"), ErrInvalidArgument, true},
		{"Unauthenticated wraps ErrUnauthenticated", Unauthenticated("log in"), ErrUnauthenticated, true},
		{"Forbidden wraps ErrForbidden", Forbidden("not yours"), ErrForbidden, true},
		{"Unauthorized wraps ErrUnauthorized", Unauthorized("not the owner"), ErrUnauthorized, true},
		{"Conflict wraps ErrConflict", Conflict("assignment", "abc123"), ErrConflict, true},
		{"Storage wraps ErrStorage", Storage("listing assignments", errors.New("disk full")), ErrStorage, true},
		{"wrapped twice still matches", fmt.Errorf("service: %w", NotFound("submission", "x")), ErrNotFound, true},
		{"Forbidden is not Unauthenticated", Forbidden("not yours"), ErrUnauthenticated, false},
		{"Unauthorized is not Forbidden", Unauthorized("not the owner"), ErrForbidden, false},
		{"NotFound is not InvalidArgument", NotFound("assignment", "abc123"), ErrInvalidArgument, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{"NotFound message includes resource and id", NotFound("assignment", "abc123"), "assignment not found with id abc123"},
		{"InvalidArgument uses custom message", InvalidArgument("limit", "limit must be at least 1"), "limit must be at least 1"},
		{"Conflict message includes resource and id", Conflict("assignment", "abc123"), "assignment abc123 was modified concurrently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestStorage_KeepsCauseButHidesItPublicly(t *testing.T) {
	err := Storage("deleting assignment", context.DeadlineExceeded)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is should reach the underlying cause")
	}
	if got := err.Public(); got != "deleting assignment failed" {
		t.Errorf("Public() = %q, want %q", got, "deleting assignment failed")
	}
	if got := err.Error(); got != "deleting assignment failed: context deadline exceeded" {
		t.Errorf("Error() = %q", got)
	}
}

func TestInvalidFields(t *testing.T) {
	single := InvalidFields([]FieldError{{Field: "email", Message: "email is required"}})
	if single.Field != "email" || single.Message != "email is required" {
		t.Errorf("single field error = %+v", single)
	}

	multi := InvalidFields([]FieldError{
		{Field: "page", Message: "page must be 1 or greater"},
		{Field: "limit", Message: "limit must be 1 or greater"},
	})
	if multi.Field != "" {
		t.Errorf("Field = %q, want empty for multi-field errors", multi.Field)
	}
	if len(multi.Fields) != 2 {
		t.Errorf("len(Fields) = %d, want 2", len(multi.Fields))
	}
	if !errors.Is(multi, ErrInvalidArgument) {
		t.Error("InvalidFields should wrap ErrInvalidArgument")
	}
}
