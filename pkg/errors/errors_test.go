package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestConstructorStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("Slot"), CodeNotFound, http.StatusNotFound},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"validation", Validation("bad payload", nil), CodeValidation, http.StatusBadRequest},
		{"conflict", Conflict("already claimed"), CodeConflict, http.StatusConflict},
		{"forbidden", Forbidden("managers only"), CodeForbidden, http.StatusForbidden},
		{"internal", Internal("boom", errors.New("x")), CodeInternal, http.StatusInternalServerError},
		{"unavailable", Unavailable("question service"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestWithReason(t *testing.T) {
	err := Conflict("slot overlaps").WithReason(ReasonOverlap)

	if err.Details["reason"] != ReasonOverlap {
		t.Errorf("expected reason %q, got %v", ReasonOverlap, err.Details["reason"])
	}

	// WithReason must not clobber existing details.
	err = NotFoundWithID("Slot", "abc").WithReason(ReasonInvalidStatus)
	if err.Details["id"] != "abc" {
		t.Errorf("expected id detail to survive, got %v", err.Details["id"])
	}
	if err.Details["reason"] != ReasonInvalidStatus {
		t.Errorf("expected reason %q, got %v", ReasonInvalidStatus, err.Details["reason"])
	}
}

func TestAsAppError(t *testing.T) {
	original := Conflict("already claimed")
	if got := AsAppError(original); got != original {
		t.Error("expected the same AppError back")
	}

	plain := errors.New("some failure")
	converted := AsAppError(plain)
	if converted.Code != CodeInternal {
		t.Errorf("expected plain errors to convert to %s, got %s", CodeInternal, converted.Code)
	}
	if !errors.Is(converted, plain) {
		t.Error("expected the original error to remain in the chain")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("write conflict")
	err := Internal("transaction failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}
