package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Scraper.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Scraper.MaxRetries)
	}
	if cfg.Scraper.BackoffUnit != time.Second {
		t.Errorf("BackoffUnit = %v, want 1s", cfg.Scraper.BackoffUnit)
	}
	if cfg.Scraper.NavigationTimeout != 60*time.Second {
		t.Errorf("NavigationTimeout = %v, want 60s", cfg.Scraper.NavigationTimeout)
	}
	if cfg.Scraper.PopupTimeout != 5*time.Second {
		t.Errorf("PopupTimeout = %v, want 5s", cfg.Scraper.PopupTimeout)
	}
	if cfg.Scraper.ExtractTimeout != 10*time.Second {
		t.Errorf("ExtractTimeout = %v, want 10s", cfg.Scraper.ExtractTimeout)
	}
	if cfg.LLM.MaxChars != 10000 {
		t.Errorf("LLM.MaxChars = %d, want 10000", cfg.LLM.MaxChars)
	}
	if cfg.Collector.URL != DefaultCollectorURL {
		t.Errorf("Collector.URL = %q", cfg.Collector.URL)
	}
	if len(cfg.Scraper.Selectors.Consent) != 3 || len(cfg.Scraper.Selectors.SignIn) != 3 {
		t.Errorf("unexpected default selectors: %+v", cfg.Scraper.Selectors)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WEBSCRAPER_MAX_RETRIES", "5")
	t.Setenv("WEBSCRAPER_BACKOFF_UNIT", "10ms")
	t.Setenv("WEBSCRAPER_BLOCKED_RESOURCES", "Image, Stylesheet ,")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scraper.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Scraper.MaxRetries)
	}
	if cfg.Scraper.BackoffUnit != 10*time.Millisecond {
		t.Errorf("BackoffUnit = %v, want 10ms", cfg.Scraper.BackoffUnit)
	}
	if got := strings.Join(cfg.Browser.BlockedResourceTypes, "|"); got != "Image|Stylesheet" {
		t.Errorf("BlockedResourceTypes = %q", got)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.LLM.APIKey)
	}
}

func TestLoad_InvalidContentSelector(t *testing.T) {
	t.Setenv("WEBSCRAPER_CONTENT_SELECTOR", "div[")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid content selector")
	}
}

func TestLoadSelectors_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.toml")
	content := `consent = ["#onetrust-accept-btn-handler"]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sel, err := LoadSelectors(path)
	if err != nil {
		t.Fatalf("LoadSelectors: %v", err)
	}
	if len(sel.Consent) != 1 || sel.Consent[0] != "#onetrust-accept-btn-handler" {
		t.Errorf("Consent = %v", sel.Consent)
	}
	if len(sel.SignIn) != len(DefaultSelectors().SignIn) {
		t.Errorf("SignIn should keep defaults, got %v", sel.SignIn)
	}
}

func TestLoadSelectors_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.toml")
	if err := os.WriteFile(path, []byte(`signin = ["x"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSelectors(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_SelectorsFileValidated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.toml")
	if err := os.WriteFile(path, []byte(`sign_in = ["button[aria-label="]`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEBSCRAPER_SELECTORS_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for malformed selector")
	}
}

func TestSelectors_ValidateDefaults(t *testing.T) {
	if err := DefaultSelectors().Validate(); err != nil {
		t.Fatalf("default selectors must be valid CSS: %v", err)
	}
}
