package apperror

import (
	"errors"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("bookmark", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("url", "url is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("bookmark", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("not your bookmark"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "NotFound does not match ErrValidation",
			err:       NotFound("bookmark", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
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
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("bookmark", "abc123"),
			wantMessage: "bookmark not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("url", "url is required"),
			wantMessage: "url is required",
		},
		{
			name:        "Forbidden uses custom message",
			err:         Forbidden("not your bookmark"),
			wantMessage: "not your bookmark",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("bookmark", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("title", "title too long")
	if err.Field != "title" {
		t.Errorf("Field = %q, want %q", err.Field, "title")
	}
}
