package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	LLM       LLMConfig
	Collector CollectorConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how each attempt's browser session is started.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path. Empty lets rod
	// download and manage its own Chromium.
	BrowserBin string

	// RemoteURL is the DevTools WebSocket URL of an already running Chrome.
	// When set, each attempt opens an incognito context there instead of
	// launching a new process.
	RemoteURL string

	// Proxy is passed to the launched browser.
	Proxy string

	// Stealth creates pages through go-rod/stealth.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// ScraperConfig controls the scrape attempt and the retry loop around it.
type ScraperConfig struct {
	// MaxRetries is the total number of attempts per job (not retries
	// after the first).
	MaxRetries int // default: 3

	// BackoffUnit is the time unit of the 2^n backoff.
	BackoffUnit time.Duration // default: 1s

	// NavigationTimeout bounds navigation plus the network-idle wait.
	NavigationTimeout time.Duration // default: 60s

	// PopupTimeout is the bounded wait for each pop-up selector.
	PopupTimeout time.Duration // default: 5s

	// ExtractTimeout bounds the wait for the page body.
	ExtractTimeout time.Duration // default: 10s

	// IdleWindow is how long the network must be quiet to count as idle.
	IdleWindow time.Duration // default: 500ms

	// HTMLMode selects how HTML is condensed before it is sent to the model:
	// "raw", "markdown", "sanitized" or "readability". default: "raw"
	HTMLMode string

	// ContentSelector optionally narrows the HTML sent to the model.
	ContentSelector string

	// SelectorsFile is an optional TOML file overriding Selectors.
	SelectorsFile string

	// Selectors are the pop-up selector lists, filled by Load.
	Selectors Selectors
}

// LLMConfig controls the summarizer's chat completion call.
type LLMConfig struct {
	// APIKey is read from OPENAI_API_KEY. It is not validated at startup.
	APIKey      string
	BaseURL     string        // default: "https://api.openai.com/v1"
	Model       string        // default: "gpt-4o"
	Temperature float64       // default: 0.2
	MaxTokens   int           // default: 2048
	TopP        float64       // default: 1
	MaxChars    int           // default: 10000
	Timeout     time.Duration // default: 120s
}

// CollectorConfig controls delivery of results to the downstream collector.
type CollectorConfig struct {
	URL     string
	Secret  string        // optional HMAC-SHA256 signing key
	Timeout time.Duration // default: 10s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per identity.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultCollectorURL is the collector endpoint the service posts to unless
// WEBSCRAPER_COLLECTOR_URL overrides it.
const DefaultCollectorURL = "https://playground.mprompto.com:3000/api/v1/demo/clients/load-cleaned-text"

// Load reads configuration from environment variables with sane defaults.
// The selector file, if configured, is parsed and validated here.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: envOr("WEBSCRAPER_HOST", "0.0.0.0"),
			Port: envIntOr("WEBSCRAPER_PORT", 8000),
			Mode: envOr("WEBSCRAPER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("WEBSCRAPER_HEADLESS", true),
			NoSandbox:  envBoolOr("WEBSCRAPER_NO_SANDBOX", true),
			BrowserBin: os.Getenv("WEBSCRAPER_BROWSER_BIN"),
			RemoteURL:  os.Getenv("WEBSCRAPER_CDP_URL"),
			Proxy:      os.Getenv("WEBSCRAPER_PROXY"),
			Stealth:    envBoolOr("WEBSCRAPER_STEALTH", false),
			BlockedResourceTypes: envSliceOr("WEBSCRAPER_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Scraper: ScraperConfig{
			MaxRetries:        envIntOr("WEBSCRAPER_MAX_RETRIES", 3),
			BackoffUnit:       envDurationOr("WEBSCRAPER_BACKOFF_UNIT", time.Second),
			NavigationTimeout: envDurationOr("WEBSCRAPER_NAV_TIMEOUT", 60*time.Second),
			PopupTimeout:      envDurationOr("WEBSCRAPER_POPUP_TIMEOUT", 5*time.Second),
			ExtractTimeout:    envDurationOr("WEBSCRAPER_EXTRACT_TIMEOUT", 10*time.Second),
			IdleWindow:        envDurationOr("WEBSCRAPER_IDLE_WINDOW", 500*time.Millisecond),
			HTMLMode:          envOr("WEBSCRAPER_HTML_MODE", "raw"),
			ContentSelector:   os.Getenv("WEBSCRAPER_CONTENT_SELECTOR"),
			SelectorsFile:     os.Getenv("WEBSCRAPER_SELECTORS_FILE"),
			Selectors:         DefaultSelectors(),
		},
		LLM: LLMConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			BaseURL:     envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       envOr("WEBSCRAPER_LLM_MODEL", "gpt-4o"),
			Temperature: envFloatOr("WEBSCRAPER_LLM_TEMPERATURE", 0.2),
			MaxTokens:   envIntOr("WEBSCRAPER_LLM_MAX_TOKENS", 2048),
			TopP:        envFloatOr("WEBSCRAPER_LLM_TOP_P", 1),
			MaxChars:    envIntOr("WEBSCRAPER_LLM_MAX_CHARS", 10000),
			Timeout:     envDurationOr("WEBSCRAPER_LLM_TIMEOUT", 120*time.Second),
		},
		Collector: CollectorConfig{
			URL:     envOr("WEBSCRAPER_COLLECTOR_URL", DefaultCollectorURL),
			Secret:  os.Getenv("WEBSCRAPER_COLLECTOR_SECRET"),
			Timeout: envDurationOr("WEBSCRAPER_COLLECTOR_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("WEBSCRAPER_AUTH_ENABLED", false),
			APIKeys: envSliceOr("WEBSCRAPER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("WEBSCRAPER_RATE_RPS", 1.0),
			Burst:             envIntOr("WEBSCRAPER_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("WEBSCRAPER_LOG_LEVEL", "info"),
			Format: envOr("WEBSCRAPER_LOG_FORMAT", "json"),
		},
	}

	if cfg.Scraper.SelectorsFile != "" {
		sel, err := LoadSelectors(cfg.Scraper.SelectorsFile)
		if err != nil {
			return nil, err
		}
		cfg.Scraper.Selectors = sel
	}
	if err := cfg.Scraper.Selectors.Validate(); err != nil {
		return nil, err
	}
	if cfg.Scraper.ContentSelector != "" {
		if err := validateSelector(cfg.Scraper.ContentSelector); err != nil {
			return nil, err
		}
	}
	return cfg, nil
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

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
