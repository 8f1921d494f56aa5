// Package crawl defines the Crawler contract and runs crawler batches:
// argument validation, per-task logging, retries with fresh sessions, and a
// bounded worker pool.
package crawl

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"

	"github.com/use-agent/wallaby/models"
)

// maxTaskIDLength caps generated task identifiers so they remain usable as
// file names.
const maxTaskIDLength = 120

// Session is the slice of browser lifecycle the orchestrator needs. It is
// satisfied by *browser.Session and by fakes in tests.
type Session interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

// Crawler is one site-specific crawl implementation. The orchestrator calls
// NewSession and Crawl once per attempt, so Crawl must not assume any state
// survives from a previous attempt.
type Crawler interface {
	// Name identifies the crawler in logs and task IDs.
	Name() string

	// RequiredFields maps argument names every task must supply to their
	// expected types.
	RequiredFields() models.Fields

	// OptionalFields maps argument names a task may supply to their
	// expected types. It must not overlap RequiredFields.
	OptionalFields() models.Fields

	// TaskID derives a stable, filesystem-safe identifier from validated
	// task arguments. Equal arguments must produce equal IDs.
	TaskID(args models.Args) string

	// NewSession builds a fresh, unstarted session for one attempt.
	NewSession(headless bool, logger *slog.Logger) (Session, error)

	// Crawl performs the task against a started session. Returning an
	// error (or panicking) marks the attempt failed.
	Crawl(ctx context.Context, sess Session, args models.Args, logger *slog.Logger) error
}

// AllFields merges a crawler's required and optional field declarations.
func AllFields(c Crawler) models.Fields {
	req, opt := c.RequiredFields(), c.OptionalFields()
	all := make(models.Fields, len(req)+len(opt))
	for k, v := range req {
		all[k] = v
	}
	for k, v := range opt {
		all[k] = v
	}
	return all
}

// DefaultTaskID builds a deterministic identifier from the sorted key=value
// pairs of args. The readable prefix is sanitized and truncated; an fnv32a
// suffix keeps distinct argument sets distinct after truncation.
func DefaultTaskID(args models.Args) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	joined := strings.Join(parts, "_")

	h := fnv.New32a()
	h.Write([]byte(joined))

	slug := sanitizeID(joined)
	if len(slug) > maxTaskIDLength {
		slug = slug[:maxTaskIDLength]
	}
	return fmt.Sprintf("%s-%08x", slug, h.Sum32())
}

func sanitizeID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
