package models

import (
	"math"
	"time"
)

// Args is one task's argument set, as supplied by the batch caller.
type Args map[string]any

// String returns the string value of key, or "" when the key is absent or
// holds a different type.
func (a Args) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value of key. JSON decoding produces float64 for
// all numbers, so integral floats are accepted too. Fractional or
// out-of-range values yield 0 rather than a silently truncated number.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return 0
		}
		return int(v)
	case float64:
		if v != math.Trunc(v) || v < math.MinInt || v >= math.MaxInt {
			return 0
		}
		return int(v)
	}
	return 0
}

// Bool returns the boolean value of key, or false when absent.
func (a Args) Bool(key string) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return false
}

// FieldType declares the expected runtime type of a task argument.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeStringSlice
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeStringSlice:
		return "[]string"
	}
	return "unknown"
}

// Matches reports whether v is an acceptable runtime value for the type.
// Numeric matching is permissive about the carrier type (JSON decodes every
// number to float64, YAML to int) but strict about the value: an int field
// rejects fractional floats.
func (t FieldType) Matches(v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return n == math.Trunc(n)
		case float32:
			return float64(n) == math.Trunc(float64(n))
		}
		return false
	case TypeFloat:
		switch v.(type) {
		case float32, float64, int, int8, int16, int32, int64:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeStringSlice:
		switch s := v.(type) {
		case []string:
			return true
		case []any:
			for _, e := range s {
				if _, ok := e.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	}
	return false
}

// Fields maps argument names to their expected types.
type Fields map[string]FieldType

// Task is one unit of work for the orchestrator. It is created from a
// caller-supplied argument set, consumed by exactly one worker, and
// discarded once it reaches a terminal state.
type Task struct {
	ID       string
	Args     Args
	LogPath  string
	MaxRetry int
	Verbose  bool
	Headless bool
}

// TaskStatus is the terminal state of a task.
type TaskStatus string

const (
	// TaskFinished means the crawl body completed within the retry budget.
	TaskFinished TaskStatus = "finished"
	// TaskExhausted means every attempt failed; details are in the task log.
	TaskExhausted TaskStatus = "retry_exhausted"
)

// TaskResult records the terminal state of one task.
type TaskResult struct {
	ID       string
	Status   TaskStatus
	Attempts int
	LogPath  string
	Duration time.Duration
}

// BatchSummary is the aggregate outcome of one ParallelCrawl run. Per-task
// failure detail lives in the per-task log files, not here.
type BatchSummary struct {
	RunID    string
	Total    int
	Finished int
	Failed   int
	Duration time.Duration
	Results  []TaskResult
}
