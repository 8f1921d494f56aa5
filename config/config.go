package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser BrowserConfig
	Crawl   CrawlConfig
	Log     LogConfig
}

// BrowserConfig controls the Rod browser session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL applied to every session.
	DefaultProxy string

	// ViewportWidth and ViewportHeight set the page viewport.
	ViewportWidth  int // default: 1360
	ViewportHeight int // default: 900

	// Stealth injects the stealth script before navigation.
	Stealth bool // default: true

	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string

	// ExtraHeaders are sent with every request of the session.
	// Not read from the environment; set programmatically.
	ExtraHeaders map[string]string

	// NavigationTimeout is the max time for a single navigation.
	NavigationTimeout time.Duration // default: 30s
}

// CrawlConfig controls batch crawling.
type CrawlConfig struct {
	// LogDir is where per-task log files are written.
	LogDir string // default: "logs"

	// OutputDir is where crawlers write snapshots and extracted data.
	OutputDir string // default: "output"

	// MaxRetry is the per-task attempt budget.
	MaxRetry int // default: 5

	// Workers is the worker pool size for parallel crawls.
	Workers int // default: 1

	// Verbose mirrors per-task logs to the console.
	Verbose bool // default: false

	// LaunchesPerSecond throttles browser session launches across the
	// whole pool. Zero disables throttling.
	LaunchesPerSecond float64 // default: 0

	// LaunchBurst is the token-bucket burst for session launches.
	LaunchBurst int // default: 1
}

// LogConfig controls structured logging of the process itself (per-task
// logs are configured by the orchestrator, not here).
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          envBoolOr("WALLABY_HEADLESS", true),
			NoSandbox:         envBoolOr("WALLABY_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("WALLABY_BROWSER_BIN"),
			DefaultProxy:      os.Getenv("WALLABY_PROXY"),
			ViewportWidth:     envIntOr("WALLABY_VIEWPORT_WIDTH", 1360),
			ViewportHeight:    envIntOr("WALLABY_VIEWPORT_HEIGHT", 900),
			Stealth:           envBoolOr("WALLABY_STEALTH", true),
			UserAgent:         os.Getenv("WALLABY_USER_AGENT"),
			NavigationTimeout: envDurationOr("WALLABY_NAV_TIMEOUT", 30*time.Second),
		},
		Crawl: CrawlConfig{
			LogDir:            envOr("WALLABY_LOG_DIR", "logs"),
			OutputDir:         envOr("WALLABY_OUTPUT_DIR", "output"),
			MaxRetry:          envIntOr("WALLABY_MAX_RETRY", 5),
			Workers:           envIntOr("WALLABY_WORKERS", 1),
			Verbose:           envBoolOr("WALLABY_VERBOSE", false),
			LaunchesPerSecond: envFloatOr("WALLABY_LAUNCH_RPS", 0),
			LaunchBurst:       envIntOr("WALLABY_LAUNCH_BURST", 1),
		},
		Log: LogConfig{
			Level:  envOr("WALLABY_LOG_LEVEL", "info"),
			Format: envOr("WALLABY_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
