package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// Each case checks that errors.Is() identifies the error kind, including
// through an fmt.Errorf("...: %w") wrapper as the repository layer produces.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("recipe", 12),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("name", "name is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("allergy", "Gluten"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "HasDependents wraps ErrDependents",
			err:       HasDependents("ingredient category", 3),
			target:    ErrDependents,
			wantMatch: true,
		},
		{
			name:      "wrapped HasDependents still matches",
			err:       fmt.Errorf("sqlite: removing allergy 3: %w", HasDependents("allergy", 3)),
			target:    ErrDependents,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid name or password"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "HasDependents does NOT match ErrConflict",
			err:       HasDependents("allergy", 3),
			target:    ErrConflict,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("recipe", 12),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "plain storage error matches nothing",
			err:       errors.New("disk I/O error"),
			target:    ErrDependents,
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
			err:         NotFound("recipe", 12),
			wantMessage: "recipe 12 not found",
		},
		{
			name:        "NotFound accepts a name as key",
			err:         NotFound("user", "alice"),
			wantMessage: "user alice not found",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "Conflict message includes resource and key",
			err:         Conflict("allergy", "Gluten"),
			wantMessage: "allergy Gluten already exists",
		},
		{
			name:        "HasDependents message names the entity",
			err:         HasDependents("ingredient category", 3),
			wantMessage: "cannot delete ingredient category 3: still referenced",
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
	err := HasDependents("allergy", 1)
	if unwrapped := err.Unwrap(); unwrapped != ErrDependents {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrDependents)
	}
}

func TestErrorsAsExtractsMessage(t *testing.T) {
	wrapped := fmt.Errorf("service: saving recipe: %w", ValidationFailed("amount", "amount must not be negative"))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() did not find *AppError in chain")
	}
	if appErr.Field != "amount" {
		t.Errorf("Field = %q, want %q", appErr.Field, "amount")
	}
	if appErr.Message != "amount must not be negative" {
		t.Errorf("Message = %q", appErr.Message)
	}
}
