package models

import (
	"errors"
	"strings"
	"testing"
)

func TestCrawlError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewCrawlError(ErrCodeBrowserCrash, "failed to launch browser", inner)

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to reach the wrapped error")
	}
	if !strings.Contains(err.Error(), ErrCodeBrowserCrash) {
		t.Errorf("error string missing code: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error string missing wrapped cause: %s", err.Error())
	}
}

func TestCrawlError_WithoutCause(t *testing.T) {
	err := NewCrawlError(ErrCodeSessionState, "session is not running", nil)
	want := "SESSION_STATE: session is not running"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if errors.Unwrap(err) != nil {
		t.Error("expected nil unwrap when no cause is set")
	}
}

func TestValidationError_AggregatesAllViolations(t *testing.T) {
	verr := &ValidationError{
		Missing: []string{"url"},
		Extra:   []string{"colour"},
		Mismatched: []TypeMismatch{
			{Field: "limit", Expected: TypeInt, Actual: "string", Value: "ten"},
		},
	}

	if !verr.Any() {
		t.Fatal("Any() = false for a populated ValidationError")
	}

	msg := verr.Error()
	for _, want := range []string{
		"missing required fields: url",
		"unknown fields: colour",
		"limit should be int, but got string (value: ten)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}

func TestValidationError_Empty(t *testing.T) {
	verr := &ValidationError{}
	if verr.Any() {
		t.Error("Any() = true for an empty ValidationError")
	}
}
