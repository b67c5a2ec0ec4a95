package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/berserkarray/webscraperv2/config"
	"github.com/berserkarray/webscraperv2/models"
)

// RodLauncher starts rod-backed sessions. In local mode every session is a
// new Chrome process; in remote mode (RemoteURL set) every session is a new
// incognito context on a shared, already running Chrome.
type RodLauncher struct {
	cfg    config.BrowserConfig
	logger *slog.Logger

	mu     sync.Mutex
	remote *rod.Browser
}

// NewRodLauncher creates a launcher. No browser is started until Launch.
func NewRodLauncher(cfg config.BrowserConfig, logger *slog.Logger) *RodLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RodLauncher{cfg: cfg, logger: logger}
}

// Launch starts a fresh session. A canceled ctx never starts Chrome.
func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCanceled, "browser launch canceled", err)
	}
	if l.cfg.RemoteURL != "" {
		return l.launchRemote(ctx)
	}
	return l.launchLocal(ctx)
}

// Close drops the shared remote connection, if any. Local sessions own
// their processes and are released by Session.Close.
func (l *RodLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remote == nil {
		return nil
	}
	err := l.remote.Close()
	l.remote = nil
	return err
}

func (l *RodLauncher) launchLocal(ctx context.Context) (Session, error) {
	ln := launcher.New().
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)

	if l.cfg.BrowserBin != "" {
		ln = ln.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.Proxy != "" {
		ln = ln.Proxy(l.cfg.Proxy)
	}

	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("disable-setuid-sandbox"))
	ln.Set(flags.Flag("no-first-run"))

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	if err := ctx.Err(); err != nil {
		ln.Kill()
		ln.Cleanup()
		return nil, models.NewScrapeError(models.ErrCodeCanceled, "browser launch canceled", err)
	}

	// Connect under ctx, then detach so Close still works after the request
	// has been canceled.
	conn := rod.New().ControlURL(controlURL).Context(ctx)
	if err := conn.Connect(); err != nil {
		ln.Kill()
		ln.Cleanup()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}
	browser := conn.Context(context.Background())
	l.logger.Debug("browser launched", "controlURL", controlURL)

	sess, err := l.newSession(browser)
	if err != nil {
		_ = browser.Close()
		ln.Kill()
		return nil, err
	}
	sess.launcher = ln
	return sess, nil
}

func (l *RodLauncher) launchRemote(ctx context.Context) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remote == nil {
		b := rod.New().ControlURL(l.cfg.RemoteURL).Context(ctx)
		if err := b.Connect(); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to connect to remote browser", err)
		}
		// The connection is shared across requests; it must not die with ctx.
		l.remote = b.Context(context.Background())
		l.logger.Info("connected to remote browser", "url", l.cfg.RemoteURL)
	}

	incognito, err := l.remote.Incognito()
	if err != nil {
		// The connection may have dropped; reconnect on the next attempt.
		l.remote = nil
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to open incognito context", err)
	}

	sess, err := l.newSession(incognito)
	if err != nil {
		_ = incognito.Close()
		return nil, err
	}
	return sess, nil
}

func (l *RodLauncher) newSession(browser *rod.Browser) (*rodSession, error) {
	var page *rod.Page
	var err error
	if l.cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to open page", err)
	}

	return &rodSession{
		browser: browser,
		page:    page,
		router:  setupHijack(page, l.cfg.BlockedResourceTypes),
	}, nil
}

// rodSession is a Session over one rod page.
type rodSession struct {
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	launcher *launcher.Launcher // nil for remote sessions
}

// Navigate loads target and waits for the page to settle.
func (s *rodSession) Navigate(ctx context.Context, target string, idle time.Duration) error {
	p := s.page.Context(ctx)

	if u, err := url.Parse(target); err == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(p)
	}

	if err := settle(p, s.router != nil, idle, func() error { return p.Navigate(target) }); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *rodSession) WaitElement(ctx context.Context, selector string) error {
	_, err := s.page.Context(ctx).Element(selector)
	return err
}

func (s *rodSession) Click(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) Eval(ctx context.Context, js string) (string, error) {
	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Close stops the hijack router, closes the page and then the browser (or
// incognito context), and finally kills a locally launched process.
func (s *rodSession) Close() error {
	var errs []error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return errors.Join(errs...)
}
