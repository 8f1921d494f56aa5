// Package extract pulls data out of pages: attribute and text harvesting
// from the live DOM, plus snapshot helpers that turn captured HTML into
// scoped fragments, readable articles and Markdown.
package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/use-agent/wallaby/models"
)

// Extractor reads values from a live page.
type Extractor struct {
	page *rod.Page
	log  *slog.Logger
}

// NewExtractor wraps page. A nil logger falls back to slog.Default().
func NewExtractor(page *rod.Page, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{page: page, log: log}
}

// Attr returns the named attribute of the first element matching selector.
// A matched element without the attribute yields an empty string.
func (e *Extractor) Attr(ctx context.Context, selector, name string) (string, error) {
	el, err := e.page.Context(ctx).Element(selector)
	if err != nil {
		return "", models.NewCrawlError(models.ErrCodeInteraction, "element for attribute extraction not found", err)
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// Attrs returns the named attribute for every element matching selector.
// Elements without the attribute contribute an empty string, so the result
// is positionally aligned with the matched elements.
func (e *Extractor) Attrs(ctx context.Context, selector, name string) ([]string, error) {
	els, err := e.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeInteraction, "failed to query elements for attribute extraction", err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		v, err := el.Attribute(name)
		if err != nil {
			return nil, err
		}
		if v == nil {
			out = append(out, "")
			continue
		}
		out = append(out, *v)
	}
	return out, nil
}

// ClassList returns the class names of the first element matching selector.
func (e *Extractor) ClassList(ctx context.Context, selector string) ([]string, error) {
	raw, err := e.Attr(ctx, selector, "class")
	if err != nil {
		return nil, err
	}
	return strings.Fields(raw), nil
}

// Texts returns the visible text of every element matching selector.
func (e *Extractor) Texts(ctx context.Context, selector string) ([]string, error) {
	els, err := e.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeInteraction, "failed to query elements for text extraction", err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		t, err := el.Text()
		if err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(t))
	}
	return out, nil
}

// HTML returns the full serialized HTML of the current page.
func (e *Extractor) HTML(ctx context.Context) (string, error) {
	return e.page.Context(ctx).HTML()
}
