package errors

import (
	"fmt"
	"testing"
)

func TestDaybookError_Error(t *testing.T) {
	err := &DaybookError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "summary not found",
	}

	expected := "NOT_FOUND: summary not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("date must be YYYY-MM-DD")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "date must be YYYY-MM-DD" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("summary", "2026-10-01")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "2026-10-01" {
		t.Errorf("Details[identifier] = %v", err.Details["identifier"])
	}
	if err.Message != "summary not found: 2026-10-01" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewAPIError(t *testing.T) {
	err := NewAPIError(503, `{"error":"overloaded"}`)

	if err.Code != ErrAPI {
		t.Errorf("Code = %q, want %q", err.Code, ErrAPI)
	}
	if err.Details["upstream_status"] != 503 {
		t.Errorf("upstream_status = %v, want 503", err.Details["upstream_status"])
	}
	if err.Details["body"] != `{"error":"overloaded"}` {
		t.Errorf("body = %v", err.Details["body"])
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", NewAPIError(429, ""), true},
		{"wrapped 429", fmt.Errorf("day 2026-10-01: %w", NewAPIError(429, "slow down")), true},
		{"500", NewAPIError(500, ""), false},
		{"parse error", NewParseError("no candidates"), false},
		{"plain error", fmt.Errorf("dial tcp: timeout"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.err); got != tt.want {
				t.Errorf("IsRateLimited() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpstreamStatus(t *testing.T) {
	if got := UpstreamStatus(NewAPIError(404, "")); got != 404 {
		t.Errorf("UpstreamStatus = %d, want 404", got)
	}
	if got := UpstreamStatus(NewInternal(nil)); got != 0 {
		t.Errorf("UpstreamStatus(internal) = %d, want 0", got)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}

	err = NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
}

func TestIs(t *testing.T) {
	err := NewNotFound("summary", "x")

	if !Is(err, ErrNotFound) {
		t.Error("Is(err, ErrNotFound) = false, want true")
	}
	if Is(err, ErrInvalidRequest) {
		t.Error("Is(err, ErrInvalidRequest) = true, want false")
	}
	if !Is(fmt.Errorf("wrap: %w", err), ErrNotFound) {
		t.Error("Is should see through wrapping")
	}
	if Is(fmt.Errorf("regular error"), ErrNotFound) {
		t.Error("Is(regular error) = true, want false")
	}
	if Is(nil, ErrNotFound) {
		t.Error("Is(nil) = true, want false")
	}
}
