package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berserkarray/webscraperv2/api"
	"github.com/berserkarray/webscraperv2/cleaner"
	"github.com/berserkarray/webscraperv2/config"
	"github.com/berserkarray/webscraperv2/engine"
	"github.com/berserkarray/webscraperv2/llm"
	"github.com/berserkarray/webscraperv2/scraper"
	"github.com/berserkarray/webscraperv2/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "webscraper: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	logger := slog.Default()
	logger.Info("webscraper starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"max_retries", cfg.Scraper.MaxRetries,
		"html_mode", cfg.Scraper.HTMLMode,
		"remote_browser", cfg.Browser.RemoteURL != "",
	)
	if cfg.LLM.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; summarization will fail until it is provided")
	}

	// ── 3. Browser sessions (one per attempt) ───────────────────────
	launcher := scraper.NewRodLauncher(cfg.Browser, logger)
	defer func() {
		if err := launcher.Close(); err != nil {
			logger.Warn("failed to close remote browser connection", "error", err)
		}
	}()
	sc := scraper.New(launcher, cfg.Scraper, logger)

	// ── 4. Summarizer ───────────────────────────────────────────────
	llmClient := llm.NewClient(&http.Client{Timeout: cfg.LLM.Timeout}, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	summarizer := llm.NewSummarizer(llmClient, llm.SummarizerConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		TopP:        cfg.LLM.TopP,
		MaxChars:    cfg.LLM.MaxChars,
	}, logger)

	condenser, err := cleaner.NewCondenser(cfg.Scraper.HTMLMode, cfg.Scraper.ContentSelector)
	if err != nil {
		logger.Error("invalid html mode", "error", err)
		os.Exit(1)
	}

	// ── 5. Retry orchestrator and collector ─────────────────────────
	orch := engine.New(sc, summarizer, engine.Options{
		MaxRetries:  cfg.Scraper.MaxRetries,
		BackoffUnit: cfg.Scraper.BackoffUnit,
		Condenser:   condenser,
		Logger:      logger,
	})
	collector := webhook.NewClient(cfg.Collector.URL, cfg.Collector.Secret, cfg.Collector.Timeout, logger)

	// ── 6. Router and HTTP server ───────────────────────────────────
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	router := api.NewRouter(rootCtx, cfg, api.Deps{
		Runner:    orch,
		Deliverer: collector,
		Logger:    logger,
		StartTime: time.Now(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String(), "active_jobs", orch.ActiveJobs())

	// A scrape can outlive this window (navigation alone may take a
	// minute); Shutdown then returns and the process exits anyway.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server forced shutdown", "error", err)
	} else {
		logger.Info("HTTP server drained gracefully")
	}

	logger.Info("webscraper stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
