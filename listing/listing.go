// Package listing ships a generic listing-page crawler: navigate to a URL,
// optionally expand a collapsed section, scroll until the item list
// stabilizes, then extract and persist the items.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	nurl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/wallaby/browser"
	"github.com/use-agent/wallaby/config"
	"github.com/use-agent/wallaby/crawl"
	"github.com/use-agent/wallaby/extract"
	"github.com/use-agent/wallaby/interact"
	"github.com/use-agent/wallaby/models"
)

const expandClickRetries = 5

// Crawler collects items from a scroll-loaded listing page.
type Crawler struct {
	cfg config.BrowserConfig
	out string
}

// New builds a listing crawler writing its artifacts under outputDir.
func New(cfg config.BrowserConfig, outputDir string) *Crawler {
	return &Crawler{cfg: cfg, out: outputDir}
}

func (c *Crawler) Name() string { return "listing" }

func (c *Crawler) RequiredFields() models.Fields {
	return models.Fields{
		"url":           models.TypeString,
		"item_selector": models.TypeString,
	}
}

func (c *Crawler) OptionalFields() models.Fields {
	return models.Fields{
		"attr":             models.TypeString, // item attribute to harvest; empty means text
		"expand_click":     models.TypeString,
		"expand_visible":   models.TypeString,
		"content_selector": models.TypeString, // scopes the markdown rendition
		"limit":            models.TypeInt,
		"scroll_step":      models.TypeInt,
		"load_wait_ms":     models.TypeInt,
		"save_markdown":    models.TypeBool,
	}
}

// TaskID prefers a slug of the target URL's host and path, falling back to
// the generic argument hash when the URL does not parse.
func (c *Crawler) TaskID(args models.Args) string {
	u, err := nurl.Parse(args.String("url"))
	if err != nil || u.Host == "" {
		return crawl.DefaultTaskID(args)
	}
	slug := u.Host + strings.ReplaceAll(u.Path, "/", "-")
	slug = strings.Trim(slug, "-")
	return c.Name() + "-" + slug
}

func (c *Crawler) NewSession(headless bool, logger *slog.Logger) (crawl.Session, error) {
	cfg := c.cfg
	cfg.Headless = headless
	return browser.NewSession(cfg, logger), nil
}

// Crawl drives one listing task end to end. Arguments are validated by the
// orchestrator before this is called.
func (c *Crawler) Crawl(ctx context.Context, sess crawl.Session, args models.Args, logger *slog.Logger) error {
	bs, ok := sess.(*browser.Session)
	if !ok {
		return models.NewCrawlError(models.ErrCodeInternal, "listing crawler requires a browser session", nil)
	}

	url := args.String("url")
	itemSelector := args.String("item_selector")

	if err := bs.Navigate(ctx, url); err != nil {
		return err
	}

	drv, err := bs.Driver()
	if err != nil {
		return err
	}

	// Some listings hide the scrollable region behind a "show all" control.
	if clickSel := args.String("expand_click"); clickSel != "" {
		visibleSel := args.String("expand_visible")
		if visibleSel == "" {
			visibleSel = itemSelector
		}
		clicker := interact.NewClicker(drv, logger)
		if err := clicker.ClickUntilVisible(ctx, clickSel, visibleSel, expandClickRetries); err != nil {
			return err
		}
	}

	scfg := interact.ScrollConfig{
		Target:     args.Int("limit"),
		ScrollStep: args.Int("scroll_step"),
		LoadWait:   time.Duration(args.Int("load_wait_ms")) * time.Millisecond,
	}

	scroller := interact.NewScroller(drv, logger)
	count, err := scroller.StabilizeOnSelector(ctx, itemSelector, scfg)
	if err != nil {
		return err
	}
	logger.Info("listing stabilized", "items", count)

	ex := extract.NewExtractor(bs.Page(), logger)

	var values []string
	if attr := args.String("attr"); attr != "" {
		values, err = ex.Attrs(ctx, itemSelector, attr)
	} else {
		values, err = ex.Texts(ctx, itemSelector)
	}
	if err != nil {
		return err
	}

	rawHTML, err := ex.HTML(ctx)
	if err != nil {
		return err
	}

	taskID := c.TaskID(args)
	snapPath, err := extract.SaveHTML(c.out, taskID, rawHTML)
	if err != nil {
		return err
	}
	logger.Info("snapshot saved", "path", snapPath)

	if args.Bool("save_markdown") {
		md, mdErr := extract.RenderMarkdown(rawHTML, url, args.String("content_selector"))
		if mdErr != nil {
			logger.Warn("markdown conversion failed, keeping HTML snapshot only", "error", mdErr)
		} else {
			mdPath := filepath.Join(c.out, taskID+".md")
			if wErr := os.WriteFile(mdPath, []byte(md), 0o644); wErr != nil {
				return fmt.Errorf("write markdown: %w", wErr)
			}
			logger.Info("markdown saved", "path", mdPath)
		}
	}

	outPath := filepath.Join(c.out, taskID+".json")
	payload, err := json.MarshalIndent(map[string]any{
		"url":    url,
		"count":  len(values),
		"values": values,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		return fmt.Errorf("write values: %w", err)
	}
	logger.Info("values saved", "path", outPath, "count", len(values))
	return nil
}
