package interact

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/wallaby/models"
)

// Defaults for scroll stabilization, tuned for lazy-loading pages.
const (
	DefaultLoadWait           = 40 * time.Millisecond
	DefaultSameTopThreshold   = 20
	DefaultSameCountThreshold = 10
	DefaultCountCheckEvery    = 5
	DefaultLogEvery           = 100
)

// Callback runs once per scroll cycle, after the scroll step. Returning an
// error aborts the run; this is also the hook for callers that need a hard
// cycle cap, since the loop itself has no wall-clock or cycle limit.
type Callback func(ctx context.Context) error

// ScrollConfig tunes one stabilization run. The zero value is usable: every
// field falls back to its default, except ScrollStep and Target whose zero
// values mean "jump to bottom" and "no target" respectively.
type ScrollConfig struct {
	// ScrollStep is the number of pixels to scroll per cycle. Zero or
	// negative jumps to the bottom of the scroll container each cycle.
	ScrollStep int

	// LoadWait is how long to pause after each scroll so asynchronous
	// content can render.
	LoadWait time.Duration

	// SameTopThreshold stops the run after this many consecutive scroll
	// offset readings equal to the previous one.
	SameTopThreshold int

	// SameCountThreshold stops a selector run after this many consecutive
	// polls in which the matched-element count did not change. It is kept
	// separate from SameTopThreshold on purpose: the two signals stabilize
	// at different rates.
	SameCountThreshold int

	// Target stops a selector run as soon as the matched-element count
	// reaches it. Zero means no target.
	Target int

	// CountCheckEvery re-queries the selector count every N cycles.
	CountCheckEvery int

	// LogEvery emits a progress line whenever the count has grown by at
	// least this much since the last progress line.
	LogEvery int

	// Callbacks run after every scroll step.
	Callbacks []Callback
}

func (c ScrollConfig) withDefaults() ScrollConfig {
	if c.LoadWait <= 0 {
		c.LoadWait = DefaultLoadWait
	}
	if c.SameTopThreshold <= 0 {
		c.SameTopThreshold = DefaultSameTopThreshold
	}
	if c.SameCountThreshold <= 0 {
		c.SameCountThreshold = DefaultSameCountThreshold
	}
	if c.CountCheckEvery <= 0 {
		c.CountCheckEvery = DefaultCountCheckEvery
	}
	if c.LogEvery <= 0 {
		c.LogEvery = DefaultLogEvery
	}
	return c
}

// Scroller repeatedly scrolls a page (or one scroll container) and decides,
// from two independent convergence signals, when it has finished producing
// new content:
//
//   - the scroll offset holding still for SameTopThreshold consecutive
//     readings, which covers pages without an enumerable selector;
//   - the matched-element count holding still for SameCountThreshold
//     consecutive polls, which covers virtualized lists whose offset
//     saturates long before rendering finishes.
//
// Both signals run concurrently and the run stops on whichever fires first.
type Scroller struct {
	drv ScrollDriver
	log *slog.Logger
}

// NewScroller creates a Scroller over the given driver. A nil logger falls
// back to slog.Default().
func NewScroller(drv ScrollDriver, log *slog.Logger) *Scroller {
	if log == nil {
		log = slog.Default()
	}
	return &Scroller{drv: drv, log: log}
}

// Stabilize scrolls until the scroll offset stops changing.
func (s *Scroller) Stabilize(ctx context.Context, cfg ScrollConfig) error {
	s.log.Info("scrolling until offset stabilizes",
		"scrollStep", cfg.ScrollStep, "loadWait", cfg.LoadWait, "sameTopThreshold", cfg.SameTopThreshold)
	_, err := s.run(ctx, "", cfg)
	return err
}

// StabilizeOnSelector scrolls until the number of elements matching selector
// stops growing (or Target is reached, or the offset stabilizes first) and
// returns the final matched count.
func (s *Scroller) StabilizeOnSelector(ctx context.Context, selector string, cfg ScrollConfig) (int, error) {
	if err := ValidSelector(selector); err != nil {
		return 0, models.NewCrawlError(models.ErrCodeInteraction, "scroll stabilization selector rejected", err)
	}
	s.log.Info("scrolling until selector count stabilizes",
		"selector", selector, "target", cfg.Target, "scrollStep", cfg.ScrollStep, "loadWait", cfg.LoadWait)
	return s.run(ctx, selector, cfg)
}

// run is one stabilization loop. State is local to the invocation and
// discarded on return. There is deliberately no maximum-cycle cap; callers
// that need one supply a counting callback that returns an error.
func (s *Scroller) run(ctx context.Context, selector string, cfg ScrollConfig) (int, error) {
	cfg = cfg.withDefaults()

	var (
		lastTop     float64
		haveTop     bool
		sameTop     int
		count       int
		lastCount   int
		sameCount   int
		logBase     int
		pollCounter int
	)

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		if selector != "" {
			pollCounter++
			if pollCounter >= cfg.CountCheckEvery {
				pollCounter = 0

				n, err := s.drv.Count(ctx, selector)
				if err != nil {
					return count, err
				}
				count = n

				if n == lastCount {
					sameCount++
					s.log.Debug("selector count unchanged",
						"count", n, "streak", sameCount, "threshold", cfg.SameCountThreshold)
				} else {
					sameCount = 0
					lastCount = n
				}

				if sameCount >= cfg.SameCountThreshold {
					s.log.Info("selector count stabilized", "count", n, "streak", sameCount)
					return count, nil
				}
				if cfg.Target > 0 && n >= cfg.Target {
					s.log.Info("target element count reached", "count", n, "target", cfg.Target)
					return count, nil
				}
				if n-logBase >= cfg.LogEvery {
					s.log.Info("still loading elements", "count", n, "target", cfg.Target)
					logBase = n
				}
			}
		}

		var err error
		if cfg.ScrollStep > 0 {
			err = s.drv.ScrollBy(ctx, 0, cfg.ScrollStep)
		} else {
			err = s.drv.ScrollToBottom(ctx)
		}
		if err != nil {
			return count, err
		}

		for _, cb := range cfg.Callbacks {
			if err := cb(ctx); err != nil {
				return count, err
			}
		}

		select {
		case <-time.After(cfg.LoadWait):
		case <-ctx.Done():
			return count, ctx.Err()
		}

		top, err := s.drv.ScrollTop(ctx)
		if err != nil {
			return count, err
		}
		// Exact comparison: offsets are whatever the driver reports and a
		// stalled page reports the same value every time.
		if haveTop && top == lastTop {
			sameTop++
			s.log.Debug("scroll offset unchanged",
				"top", top, "streak", sameTop, "threshold", cfg.SameTopThreshold)
			if sameTop >= cfg.SameTopThreshold {
				s.log.Info("scroll offset stabilized", "top", top, "streak", sameTop)
				return count, nil
			}
		} else {
			sameTop = 0
		}
		lastTop, haveTop = top, true
	}
}
