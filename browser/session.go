// Package browser owns the lifetime of one automation session: one browser
// process, one incognito context, one page. A session is exclusively owned
// by the task that created it and is never shared across workers.
package browser

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/wallaby/config"
	"github.com/use-agent/wallaby/models"
	"github.com/ysmood/gson"
)

// domStableWait is how long the DOM must hold still after navigation before
// we consider the page loaded enough to interact with.
const domStableWait = 300 * time.Millisecond

// launchFunc spawns a browser and returns its page plus a teardown closure.
// It is a field on Session so tests can substitute a stub.
type launchFunc func(ctx context.Context, cfg config.BrowserConfig, log *slog.Logger) (*rod.Page, func() error, error)

// Session is one isolated browser session. Start and Stop are idempotent:
// starting a running session or stopping a stopped one logs a warning and
// does nothing.
type Session struct {
	cfg config.BrowserConfig
	log *slog.Logger

	launch launchFunc

	mu       sync.Mutex
	page     *rod.Page
	teardown func() error
	running  bool
}

// NewSession creates an unstarted session. A nil logger falls back to
// slog.Default().
func NewSession(cfg config.BrowserConfig, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{cfg: cfg, log: log, launch: launchRod}
}

// Start launches the browser and prepares the page. Calling Start on a
// running session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("session already running, no need to start again")
		return nil
	}

	s.log.Info("starting session", "headless", s.cfg.Headless,
		"viewport", [2]int{s.cfg.ViewportWidth, s.cfg.ViewportHeight})

	page, teardown, err := s.launch(ctx, s.cfg, s.log)
	if err != nil {
		return err
	}

	s.page = page
	s.teardown = teardown
	s.running = true
	s.log.Info("session started")
	return nil
}

// Stop tears the browser down. Calling Stop on a stopped session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.log.Warn("session is not running, no need to stop")
		return nil
	}

	s.log.Info("stopping session")
	var err error
	if s.teardown != nil {
		err = s.teardown()
	}
	s.page = nil
	s.teardown = nil
	s.running = false

	if err != nil {
		s.log.Warn("session teardown reported an error", "error", err)
		return err
	}
	s.log.Info("session stopped")
	return nil
}

// IsRunning reports whether the session has a live browser.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Page exposes the underlying rod page for advanced use. It is nil while
// the session is not running.
func (s *Session) Page() *rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Navigate drives the page to url and waits for the DOM to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}

	s.log.Info("navigating", "url", url)
	p := page.Context(ctx)
	if s.cfg.NavigationTimeout > 0 {
		p = p.Timeout(s.cfg.NavigationTimeout)
	}
	if err := p.Navigate(url); err != nil {
		return models.NewCrawlError(models.ErrCodeNavigation, "navigation to target URL failed", err)
	}
	if err := p.WaitDOMStable(domStableWait, 0.1); err != nil {
		s.log.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

// Back navigates to the previous page in the session history.
func (s *Session) Back(ctx context.Context) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}
	s.log.Info("navigating back")
	return page.Context(ctx).NavigateBack()
}

// Driver returns the page-scoped interaction driver for the live page.
func (s *Session) Driver() (*PageDriver, error) {
	page, err := s.livePage()
	if err != nil {
		return nil, err
	}
	return NewPageDriver(page), nil
}

func (s *Session) livePage() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.page == nil {
		return nil, models.NewCrawlError(models.ErrCodeSessionState,
			"operation requested while session is not running", nil)
	}
	return s.page, nil
}

// launchRod is the production launchFunc: launcher -> browser -> incognito
// context -> page, with stealth, viewport, user agent and extra headers
// applied before any navigation.
func launchRod(ctx context.Context, cfg config.BrowserConfig, log *slog.Logger) (*rod.Page, func() error, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, models.NewCrawlError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	log.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, models.NewCrawlError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	teardown := func() error {
		err := browser.Close()
		l.Cleanup()
		return err
	}

	// Fresh incognito context: no cookie or storage bleed between sessions.
	inc, err := browser.Incognito()
	if err != nil {
		_ = teardown()
		return nil, nil, models.NewCrawlError(models.ErrCodeBrowserCrash, "failed to create incognito context", err)
	}

	page, err := inc.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = teardown()
		return nil, nil, models.NewCrawlError(models.ErrCodeBrowserCrash, "failed to create page", err)
	}

	// Stealth must be injected before the first navigation to take effect.
	if cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			log.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		if vpErr := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportWidth,
			Height:            cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); vpErr != nil {
			log.Warn("failed to set viewport", "error", vpErr)
		}
	}

	// Configured UA wins; otherwise randomize to avoid the HeadlessChrome
	// default that headless launches announce.
	ua := cfg.UserAgent
	if ua == "" {
		ua = randomUserAgent()
	}
	if uaErr := (proto.NetworkSetUserAgentOverride{UserAgent: ua}).Call(page); uaErr != nil {
		log.Warn("failed to override user agent", "error", uaErr, "userAgent", ua)
	}

	if len(cfg.ExtraHeaders) > 0 {
		if hdrErr := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(cfg.ExtraHeaders),
		}).Call(page); hdrErr != nil {
			log.Warn("failed to set extra headers", "error", hdrErr)
		}
	}

	return page, teardown, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
