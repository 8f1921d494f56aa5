package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/wallaby/models"
)

// visibleWaitTimeout bounds the post-click wait for the target element. A
// timeout here is not a failure, just "not yet, click again".
const visibleWaitTimeout = 5 * time.Second

// Sentinel causes for click-retry failures, wrapped in a CrawlError with
// code ErrCodeInteraction.
var (
	// ErrTriggerNotFound means the element to click is not on the page at
	// all. Retrying cannot make a missing element appear, so this fails the
	// run immediately.
	ErrTriggerNotFound = errors.New("trigger element not visible")

	// ErrNeverVisible means the retry budget ran out before the target
	// element became visible.
	ErrNeverVisible = errors.New("target never became visible")
)

// Clicker clicks a trigger element until a target element becomes visible.
type Clicker struct {
	drv Clickable
	log *slog.Logger
}

// NewClicker creates a Clicker over the given driver. A nil logger falls
// back to slog.Default().
func NewClicker(drv Clickable, log *slog.Logger) *Clicker {
	if log == nil {
		log = slog.Default()
	}
	return &Clicker{drv: drv, log: log}
}

// ClickUntilVisible clicks clickSelector until visibleSelector becomes
// visible, making at most maxRetry attempts. Each attempt scrolls the
// trigger into view, clicks it, and waits up to five seconds for the target;
// the wait timing out just moves on to the next attempt. A trigger that is
// not visible fails immediately with ErrTriggerNotFound.
func (c *Clicker) ClickUntilVisible(ctx context.Context, clickSelector, visibleSelector string, maxRetry int) error {
	if err := ValidSelector(clickSelector); err != nil {
		return models.NewCrawlError(models.ErrCodeInteraction, "click selector rejected", err)
	}
	if err := ValidSelector(visibleSelector); err != nil {
		return models.NewCrawlError(models.ErrCodeInteraction, "visible selector rejected", err)
	}

	c.log.Debug("clicking until target becomes visible",
		"click", clickSelector, "visible", visibleSelector, "maxRetry", maxRetry)

	attempts := 0
	for attempts < maxRetry {
		visible, err := c.drv.IsVisible(ctx, visibleSelector)
		if err != nil {
			return err
		}
		if visible {
			c.log.Debug("target became visible", "attempts", attempts, "maxRetry", maxRetry)
			return nil
		}

		triggerVisible, err := c.drv.IsVisible(ctx, clickSelector)
		if err != nil {
			return err
		}
		if !triggerVisible {
			c.log.Error("cannot find the clicking element", "selector", clickSelector)
			return models.NewCrawlError(models.ErrCodeInteraction,
				fmt.Sprintf("cannot find the clicking element %q", clickSelector), ErrTriggerNotFound)
		}

		if err := c.drv.ScrollIntoView(ctx, clickSelector); err != nil {
			return err
		}
		if err := c.drv.Click(ctx, clickSelector); err != nil {
			return err
		}
		if err := c.drv.WaitVisible(ctx, visibleSelector, visibleWaitTimeout); err != nil {
			c.log.Debug("target not visible yet", "selector", visibleSelector, "error", err)
		}
		attempts++
	}

	visible, err := c.drv.IsVisible(ctx, visibleSelector)
	if err != nil {
		return err
	}
	if !visible {
		c.log.Error("target never became visible",
			"selector", visibleSelector, "attempts", attempts, "maxRetry", maxRetry)
		return models.NewCrawlError(models.ErrCodeInteraction,
			fmt.Sprintf("cannot make %q visible after %d tries", visibleSelector, maxRetry), ErrNeverVisible)
	}
	c.log.Debug("target became visible", "attempts", attempts, "maxRetry", maxRetry)
	return nil
}
