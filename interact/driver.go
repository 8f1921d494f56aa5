// Package interact drives a rendered page toward a desired state: it scrolls
// lazy-loading pages until their content stops growing and clicks trigger
// elements until a target becomes visible. It talks to the browser through
// small capability interfaces, so tests can substitute scripted fakes and
// callers can scope operations to a page or to a single scroll container.
package interact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// Counter reports how many elements currently match a CSS selector.
type Counter interface {
	Count(ctx context.Context, selector string) (int, error)
}

// Scrollable is the scroll surface of a page or of a single scroll container.
// Offsets are in whatever unit the underlying driver reports (pixels).
type Scrollable interface {
	ScrollBy(ctx context.Context, dx, dy int) error
	ScrollTo(ctx context.Context, x, y int) error
	ScrollToBottom(ctx context.Context) error
	ScrollToTop(ctx context.Context) error
	ScrollTop(ctx context.Context) (float64, error)
	ScrollHeight(ctx context.Context) (float64, error)
}

// Clickable covers the operations the click retrier needs.
type Clickable interface {
	IsVisible(ctx context.Context, selector string) (bool, error)
	ScrollIntoView(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
}

// ScrollDriver is what a Scroller needs from the browser.
type ScrollDriver interface {
	Counter
	Scrollable
}

// Driver is the full page capability implemented by the rod adapters in the
// browser package.
type Driver interface {
	Counter
	Scrollable
	Clickable
}

var errEmptySelector = errors.New("empty selector")

// ValidSelector checks that s parses as a CSS selector, so a typo fails
// before any browser round trip.
func ValidSelector(s string) error {
	if strings.TrimSpace(s) == "" {
		return errEmptySelector
	}
	if _, err := cascadia.Parse(s); err != nil {
		return fmt.Errorf("invalid selector %q: %w", s, err)
	}
	return nil
}
