package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/berserkarray/webscraperv2/config"
	"github.com/berserkarray/webscraperv2/models"
)

// Session is one browser session holding a single page. A session is
// created per attempt and must be closed before the next attempt starts.
type Session interface {
	// Navigate loads url and waits until the network has been idle for
	// idle. It returns when ctx expires.
	Navigate(ctx context.Context, url string, idle time.Duration) error

	// WaitElement blocks until an element matches selector or ctx is done.
	WaitElement(ctx context.Context, selector string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// HTML returns the full rendered markup.
	HTML(ctx context.Context) (string, error)

	// Eval evaluates a JS function expression and returns its string result.
	Eval(ctx context.Context, js string) (string, error)

	// Close releases the page and its browser resources.
	Close() error
}

// Launcher starts fresh browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Scraper performs the browser half of an attempt: launch, navigate, clear
// pop-ups, extract. It is safe for concurrent use; every Fetch owns its own
// session.
type Scraper struct {
	launcher Launcher
	popups   *PopupHandler
	cfg      config.ScraperConfig
	logger   *slog.Logger
}

// New creates a Scraper. A nil logger uses slog.Default().
func New(launcher Launcher, cfg config.ScraperConfig, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		launcher: launcher,
		popups:   NewPopupHandler(RulesFromSelectors(cfg.Selectors), cfg.PopupTimeout, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Fetch runs one browser session against url and returns what it rendered.
//
// Lifecycle:
//
//  1. Launch     – fresh session, never shared with another attempt
//  2. DEFER      – close the session on every exit path, panics included
//  3. Navigate   – bounded by NavigationTimeout, waits for network idle
//  4. Pop-ups    – dismiss consent dialogs, abort on a sign-in wall
//  5. Extract    – body wait, HTML, innerText, title
func (s *Scraper) Fetch(ctx context.Context, url string) (*models.PageSnapshot, error) {
	// ── 1. Launch ────────────────────────────────────────────────────
	sess, err := s.launcher.Launch(ctx)
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}

	// ── 2. Release the session no matter how the attempt ends ───────
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.logger.Warn("browser session close failed, abandoning it",
				"url", url, "error", cerr,
			)
		}
	}()

	// ── 3. Navigate ──────────────────────────────────────────────────
	if err := s.navigate(ctx, sess, url); err != nil {
		return nil, err
	}

	// ── 4. Pop-ups ───────────────────────────────────────────────────
	if err := s.popups.Handle(ctx, sess); err != nil {
		return nil, err
	}

	// ── 5. Extract ───────────────────────────────────────────────────
	return s.extract(ctx, sess, url)
}

func (s *Scraper) navigate(ctx context.Context, sess Session, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	s.logger.Info("navigating", "url", url, "timeout", s.cfg.NavigationTimeout)
	if err := sess.Navigate(navCtx, url, s.cfg.IdleWindow); err != nil {
		return categorizeNavError(err)
	}
	return nil
}

// categorizeNavError wraps raw navigation errors into typed ScrapeErrors.
func categorizeNavError(err error) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, "navigation did not reach network idle in time", err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, "navigation canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, "navigation to target URL failed", err)
	}
}
