package browser

import (
	"context"
	"errors"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/wallaby/interact"
	"github.com/use-agent/wallaby/models"
)

var (
	_ interact.Driver = (*PageDriver)(nil)
	_ interact.Driver = (*ElementDriver)(nil)
)

// PageDriver adapts a rod page to the interaction capability interfaces.
// Scrolling moves the window; counting, visibility and clicks query the
// whole document.
type PageDriver struct {
	page *rod.Page
}

// NewPageDriver wraps page in a window-scoped driver.
func NewPageDriver(page *rod.Page) *PageDriver {
	return &PageDriver{page: page}
}

func (d *PageDriver) Count(ctx context.Context, selector string) (int, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, models.NewCrawlError(models.ErrCodeInteraction, "failed to count elements", err)
	}
	return len(els), nil
}

func (d *PageDriver) ScrollBy(ctx context.Context, dx, dy int) error {
	_, err := d.page.Context(ctx).Eval(`(x, y) => window.scrollBy(x, y)`, dx, dy)
	return err
}

func (d *PageDriver) ScrollTo(ctx context.Context, x, y int) error {
	_, err := d.page.Context(ctx).Eval(`(x, y) => window.scrollTo(x, y)`, x, y)
	return err
}

func (d *PageDriver) ScrollToBottom(ctx context.Context) error {
	_, err := d.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (d *PageDriver) ScrollToTop(ctx context.Context) error {
	return d.ScrollTo(ctx, 0, 0)
}

func (d *PageDriver) ScrollTop(ctx context.Context) (float64, error) {
	res, err := d.page.Context(ctx).Eval(`() => window.scrollY`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

func (d *PageDriver) ScrollHeight(ctx context.Context) (float64, error) {
	res, err := d.page.Context(ctx).Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

func (d *PageDriver) IsVisible(ctx context.Context, selector string) (bool, error) {
	el, err := lookup(d.page.Context(ctx), selector)
	if err != nil || el == nil {
		return false, err
	}
	return el.Visible()
}

func (d *PageDriver) ScrollIntoView(ctx context.Context, selector string) error {
	el, err := lookup(d.page.Context(ctx), selector)
	if err != nil {
		return err
	}
	if el == nil {
		return models.NewCrawlError(models.ErrCodeInteraction, "element to scroll into view not found", nil)
	}
	return el.ScrollIntoView()
}

func (d *PageDriver) Click(ctx context.Context, selector string) error {
	el, err := lookup(d.page.Context(ctx), selector)
	if err != nil {
		return err
	}
	if el == nil {
		return models.NewCrawlError(models.ErrCodeInteraction, "element to click not found", nil)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *PageDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	p := d.page.Context(ctx)
	if timeout > 0 {
		p = p.Timeout(timeout)
	}
	el, err := p.Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

// ElementDriver scrolls inside one scrollable element instead of the window.
// Counting, visibility and clicks still query the whole document, so nested
// selectors keep working the same way they do with PageDriver.
type ElementDriver struct {
	*PageDriver
	elem *rod.Element
}

// NewElementDriver wraps elem in an element-scoped driver on page.
func NewElementDriver(page *rod.Page, elem *rod.Element) *ElementDriver {
	return &ElementDriver{PageDriver: NewPageDriver(page), elem: elem}
}

func (d *ElementDriver) ScrollBy(ctx context.Context, dx, dy int) error {
	_, err := d.elem.Context(ctx).Eval(`(x, y) => { this.scrollLeft += x; this.scrollTop += y; }`, dx, dy)
	return err
}

func (d *ElementDriver) ScrollTo(ctx context.Context, x, y int) error {
	_, err := d.elem.Context(ctx).Eval(`(x, y) => { this.scrollLeft = x; this.scrollTop = y; }`, x, y)
	return err
}

func (d *ElementDriver) ScrollToBottom(ctx context.Context) error {
	_, err := d.elem.Context(ctx).Eval(`() => { this.scrollTop = this.scrollHeight; }`)
	return err
}

func (d *ElementDriver) ScrollToTop(ctx context.Context) error {
	return d.ScrollTo(ctx, 0, 0)
}

func (d *ElementDriver) ScrollTop(ctx context.Context) (float64, error) {
	res, err := d.elem.Context(ctx).Eval(`() => this.scrollTop`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

func (d *ElementDriver) ScrollHeight(ctx context.Context) (float64, error) {
	res, err := d.elem.Context(ctx).Eval(`() => this.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

// lookup finds selector without rod's default retry loop. A missing element
// is reported as (nil, nil) so callers can treat absence as a normal state.
func lookup(page *rod.Page, selector string) (*rod.Element, error) {
	el, err := page.Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return el, nil
}
