package crawl

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/use-agent/wallaby/models"
)

// schemaCrawler is a no-op crawler carrying just the field declarations.
type schemaCrawler struct {
	required models.Fields
	optional models.Fields
}

func (s *schemaCrawler) Name() string                   { return "schema" }
func (s *schemaCrawler) RequiredFields() models.Fields  { return s.required }
func (s *schemaCrawler) OptionalFields() models.Fields  { return s.optional }
func (s *schemaCrawler) TaskID(args models.Args) string { return DefaultTaskID(args) }
func (s *schemaCrawler) NewSession(bool, *slog.Logger) (Session, error) {
	return nil, errors.New("schemaCrawler has no sessions")
}
func (s *schemaCrawler) Crawl(context.Context, Session, models.Args, *slog.Logger) error {
	return nil
}

func TestValidateArgs_Valid(t *testing.T) {
	c := &schemaCrawler{
		required: models.Fields{"a": models.TypeInt},
		optional: models.Fields{"b": models.TypeString},
	}

	if err := ValidateArgs(c, models.Args{"a": 1}); err != nil {
		t.Errorf("required-only args rejected: %v", err)
	}
	if err := ValidateArgs(c, models.Args{"a": 1, "b": "x"}); err != nil {
		t.Errorf("required plus optional args rejected: %v", err)
	}
}

func TestValidateArgs_TypeMismatch(t *testing.T) {
	c := &schemaCrawler{required: models.Fields{"a": models.TypeInt}}

	err := ValidateArgs(c, models.Args{"a": "x"})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *models.ValidationError, got %v", err)
	}
	if len(verr.Mismatched) != 1 || verr.Mismatched[0].Field != "a" {
		t.Errorf("expected one mismatch on field a, got %+v", verr.Mismatched)
	}
	if verr.Mismatched[0].Actual != "string" {
		t.Errorf("expected runtime type string, got %q", verr.Mismatched[0].Actual)
	}
}

func TestValidateArgs_ExtraField(t *testing.T) {
	c := &schemaCrawler{required: models.Fields{"a": models.TypeInt}}

	err := ValidateArgs(c, models.Args{"a": 1, "c": 2})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *models.ValidationError, got %v", err)
	}
	if len(verr.Extra) != 1 || verr.Extra[0] != "c" {
		t.Errorf("expected extra field c, got %v", verr.Extra)
	}
	if len(verr.Missing) != 0 || len(verr.Mismatched) != 0 {
		t.Errorf("unexpected violations: %+v", verr)
	}
}

func TestValidateArgs_MissingField(t *testing.T) {
	c := &schemaCrawler{required: models.Fields{"a": models.TypeInt}}

	err := ValidateArgs(c, models.Args{})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *models.ValidationError, got %v", err)
	}
	if len(verr.Missing) != 1 || verr.Missing[0] != "a" {
		t.Errorf("expected missing field a, got %v", verr.Missing)
	}
}

func TestValidateArgs_AggregatesAllViolations(t *testing.T) {
	c := &schemaCrawler{
		required: models.Fields{"url": models.TypeString, "limit": models.TypeInt},
	}

	err := ValidateArgs(c, models.Args{"limit": "ten", "colour": "red"})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *models.ValidationError, got %v", err)
	}
	if len(verr.Missing) != 1 || verr.Missing[0] != "url" {
		t.Errorf("Missing = %v, want [url]", verr.Missing)
	}
	if len(verr.Extra) != 1 || verr.Extra[0] != "colour" {
		t.Errorf("Extra = %v, want [colour]", verr.Extra)
	}
	if len(verr.Mismatched) != 1 || verr.Mismatched[0].Field != "limit" {
		t.Errorf("Mismatched = %+v, want one entry for limit", verr.Mismatched)
	}
}

func TestValidateArgs_SortedViolations(t *testing.T) {
	c := &schemaCrawler{
		required: models.Fields{"b": models.TypeString, "a": models.TypeString, "c": models.TypeString},
	}

	err := ValidateArgs(c, models.Args{"z": 1, "y": 2})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *models.ValidationError, got %v", err)
	}
	for i := 1; i < len(verr.Missing); i++ {
		if verr.Missing[i-1] > verr.Missing[i] {
			t.Errorf("Missing not sorted: %v", verr.Missing)
		}
	}
	for i := 1; i < len(verr.Extra); i++ {
		if verr.Extra[i-1] > verr.Extra[i] {
			t.Errorf("Extra not sorted: %v", verr.Extra)
		}
	}
}

func TestValidateArgs_OverlappingDeclarationIsInternalError(t *testing.T) {
	c := &schemaCrawler{
		required: models.Fields{"a": models.TypeInt},
		optional: models.Fields{"a": models.TypeInt},
	}

	err := ValidateArgs(c, models.Args{"a": 1})
	var cerr *models.CrawlError
	if !errors.As(err, &cerr) || cerr.Code != models.ErrCodeInternal {
		t.Errorf("expected internal CrawlError for overlapping declarations, got %v", err)
	}
}
