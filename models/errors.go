package models

import (
	"fmt"
	"strings"
)

// Error codes used across the crawl pipeline.
const (
	ErrCodeValidation   = "INVALID_TASK_ARGS"
	ErrCodeSessionState = "SESSION_STATE"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeInteraction  = "INTERACTION_FAILED"
	ErrCodeTask         = "TASK_FAILED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// CrawlError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CrawlError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(code, message string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, Err: err}
}

// TypeMismatch describes one field whose runtime type does not match the
// schema's declared type.
type TypeMismatch struct {
	Field    string
	Expected FieldType
	Actual   string // runtime type name
	Value    any
}

func (m TypeMismatch) String() string {
	return fmt.Sprintf("%s should be %s, but got %s (value: %v)", m.Field, m.Expected, m.Actual, m.Value)
}

// ValidationError aggregates every violation found in one argument set, so a
// single failed validation surfaces all problems in the batch rather than
// just the first one encountered.
type ValidationError struct {
	Missing    []string
	Extra      []string
	Mismatched []TypeMismatch
}

// Any reports whether at least one violation was recorded.
func (e *ValidationError) Any() bool {
	return len(e.Missing) > 0 || len(e.Extra) > 0 || len(e.Mismatched) > 0
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unknown fields: "+strings.Join(e.Extra, ", "))
	}
	for _, m := range e.Mismatched {
		parts = append(parts, m.String())
	}
	if len(parts) == 0 {
		return "invalid task args"
	}
	return "invalid task args: " + strings.Join(parts, "; ")
}
