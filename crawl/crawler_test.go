package crawl

import (
	"strings"
	"testing"

	"github.com/use-agent/wallaby/models"
)

func TestDefaultTaskID_Deterministic(t *testing.T) {
	args := models.Args{"url": "https://example.com/a?q=1", "limit": 10}

	id1 := DefaultTaskID(args)
	id2 := DefaultTaskID(models.Args{"limit": 10, "url": "https://example.com/a?q=1"})
	if id1 != id2 {
		t.Errorf("same args produced different IDs: %q vs %q", id1, id2)
	}
}

func TestDefaultTaskID_DistinctArgs(t *testing.T) {
	a := DefaultTaskID(models.Args{"url": "https://example.com/a"})
	b := DefaultTaskID(models.Args{"url": "https://example.com/b"})
	if a == b {
		t.Errorf("different args produced the same ID: %q", a)
	}
}

func TestDefaultTaskID_FilesystemSafe(t *testing.T) {
	id := DefaultTaskID(models.Args{"url": "https://example.com/a b/c?q=x&r=y"})

	if strings.ContainsAny(id, "/\\?&<>:*| ") {
		t.Errorf("ID contains unsafe characters: %q", id)
	}
	// Readable slug plus 8 hex chars and a dash; truncation keeps it
	// within file name limits.
	if len(id) > maxTaskIDLength+9 {
		t.Errorf("ID too long (%d): %q", len(id), id)
	}
}

func TestDefaultTaskID_TruncationKeepsDistinct(t *testing.T) {
	long := strings.Repeat("x", 300)
	a := DefaultTaskID(models.Args{"url": long + "a"})
	b := DefaultTaskID(models.Args{"url": long + "b"})
	if a == b {
		t.Error("truncated IDs collided for distinct args")
	}
}

func TestAllFields_Merges(t *testing.T) {
	c := &schemaCrawler{
		required: models.Fields{"a": models.TypeInt},
		optional: models.Fields{"b": models.TypeString},
	}

	all := AllFields(c)
	if len(all) != 2 {
		t.Fatalf("expected 2 merged fields, got %d", len(all))
	}
	if all["a"] != models.TypeInt || all["b"] != models.TypeString {
		t.Errorf("unexpected merge result: %v", all)
	}
}
