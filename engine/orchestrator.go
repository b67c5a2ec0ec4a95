package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/berserkarray/webscraperv2/models"
)

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures an Orchestrator. Zero values fall back to defaults.
type Options struct {
	// MaxRetries is the total number of attempts. Default: 3.
	MaxRetries int

	// BackoffUnit scales the 2^n backoff. Default: 1s.
	BackoffUnit time.Duration

	// Condenser optionally rewrites HTML before summarization.
	Condenser Condenser

	// Sleep replaces the backoff timer, mainly for tests.
	Sleep SleepFunc

	Logger *slog.Logger
}

// Orchestrator runs the fetch → summarize chain with bounded retries and
// exponential backoff. It holds no per-job state and is safe for
// concurrent use.
type Orchestrator struct {
	fetcher     Fetcher
	summarizer  Summarizer
	condenser   Condenser
	maxRetries  int
	backoffUnit time.Duration
	sleep       SleepFunc
	logger      *slog.Logger

	activeJobs atomic.Int32
}

// New creates an Orchestrator.
func New(fetcher Fetcher, summarizer Summarizer, opts Options) *Orchestrator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:     fetcher,
		summarizer:  summarizer,
		condenser:   opts.Condenser,
		maxRetries:  opts.MaxRetries,
		backoffUnit: opts.BackoffUnit,
		sleep:       opts.Sleep,
		logger:      opts.Logger,
	}
}

// ActiveJobs returns the number of jobs currently inside Run.
func (o *Orchestrator) ActiveJobs() int {
	return int(o.activeJobs.Load())
}

// maxBackoff caps the delay between attempts.
const maxBackoff = 5 * time.Minute

// Backoff returns the delay after failed attempt n: 2^n backoff units,
// saturating at maxBackoff.
func (o *Orchestrator) Backoff(n int) time.Duration {
	d := o.backoffUnit
	if d >= maxBackoff {
		return maxBackoff
	}
	for i := 0; i < n; i++ {
		if d > maxBackoff/2 {
			return maxBackoff
		}
		d *= 2
	}
	return d
}

// Run drives job through Attempting(1..MaxRetries) until an attempt
// succeeds or the attempts are exhausted. Every attempt failure is retried;
// the final error is SCRAPE_FAILED wrapping the last cause.
func (o *Orchestrator) Run(ctx context.Context, job models.ScrapeJob) (*models.Result, error) {
	o.activeJobs.Add(1)
	defer o.activeJobs.Add(-1)

	log := o.logger.With("job_id", job.ID, "url", job.URL)

	for attempt := 1; ; attempt++ {
		log.Info("starting attempt", "state", StateAttempting, "attempt", attempt, "max_retries", o.maxRetries)

		text, err := o.attempt(ctx, job)
		if err == nil {
			log.Info("scrape succeeded", "state", StateSucceeded, "attempt", attempt)
			return &models.Result{PrimaryText: text}, nil
		}

		log.Error("attempt failed", "attempt", attempt, "code", models.CodeOf(err), "error", err)

		if attempt >= o.maxRetries {
			log.Error("scrape failed", "state", StateFailed, "attempts", attempt)
			return nil, models.NewScrapeError(models.ErrCodeScrapeFailed,
				fmt.Sprintf("scraping failed after %d attempts", o.maxRetries), err)
		}

		delay := o.Backoff(attempt)
		log.Info("backing off before retry", "attempt", attempt, "delay", delay)
		if serr := o.sleep(ctx, delay); serr != nil {
			log.Error("scrape aborted during backoff", "state", StateFailed, "error", serr)
			return nil, models.NewScrapeError(models.ErrCodeScrapeFailed,
				fmt.Sprintf("scraping aborted after %d attempts", attempt), err)
		}
	}
}

// attempt is one fetch → summarize cycle. A panic anywhere inside is turned
// into an attempt failure; the fetcher's own deferred close has already
// released the browser session by the time it reaches here.
func (o *Orchestrator) attempt(ctx context.Context, job models.ScrapeJob) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.NewScrapeError(models.ErrCodeInternal, fmt.Sprintf("attempt panicked: %v", r), nil)
		}
	}()

	snap, err := o.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return "", err
	}

	html := snap.HTML
	if o.condenser != nil {
		html = o.condenser.Condense(html, job.URL)
	}

	return o.summarizer.Summarize(ctx, html, snap.VisibleText, job.Term)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
