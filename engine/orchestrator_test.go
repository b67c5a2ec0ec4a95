package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/berserkarray/webscraperv2/models"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	// results[i] is returned for call i; the last entry repeats.
	results []fetchResult
	panicOn int // 1-based call number that panics; 0 disables
}

type fetchResult struct {
	snap *models.PageSnapshot
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*models.PageSnapshot, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n == f.panicOn {
		panic("renderer crashed")
	}
	r := f.results[min(n-1, len(f.results)-1)]
	if r.snap != nil {
		r.snap.URL = url
	}
	return r.snap, r.err
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	html  string
	out   string
	err   error
}

func (s *fakeSummarizer) Summarize(_ context.Context, html, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.html = html
	return s.out, s.err
}

type upperCondenser struct{}

func (upperCondenser) Condense(rawHTML, _ string) string { return strings.ToUpper(rawHTML) }

// recordSleep captures backoff delays without waiting.
type recordSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleep) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testJob = models.ScrapeJob{ID: "1", URL: "https://example.com/p", Term: "Widget XL"}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{snap: &models.PageSnapshot{HTML: "<p>x</p>", VisibleText: "x"}}}}
	s := &fakeSummarizer{out: "Widget XL — $19.99"}
	rs := &recordSleep{}
	o := New(f, s, Options{Sleep: rs.sleep, Logger: quietLogger()})

	res, err := o.Run(context.Background(), testJob)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PrimaryText != "Widget XL — $19.99" || res.SecondaryText != "" {
		t.Errorf("unexpected result: %+v", res)
	}
	if f.calls != 1 || s.calls != 1 {
		t.Errorf("fetch=%d summarize=%d, want 1/1", f.calls, s.calls)
	}
	if len(rs.delays) != 0 {
		t.Errorf("no backoff expected, got %v", rs.delays)
	}
}

func TestRun_RetriesWithExponentialBackoff(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{err: models.NewScrapeError(models.ErrCodeNavigationTimeout, "navigation timed out", nil)}}}
	s := &fakeSummarizer{}
	rs := &recordSleep{}
	o := New(f, s, Options{MaxRetries: 3, BackoffUnit: time.Millisecond, Sleep: rs.sleep, Logger: quietLogger()})

	_, err := o.Run(context.Background(), testJob)
	if models.CodeOf(err) != models.ErrCodeScrapeFailed {
		t.Fatalf("code = %s, want %s", models.CodeOf(err), models.ErrCodeScrapeFailed)
	}
	if !strings.Contains(err.Error(), "scraping failed after 3 attempts") {
		t.Errorf("error = %q", err.Error())
	}
	if !models.HasCode(err, models.ErrCodeNavigationTimeout) {
		t.Error("final error should wrap the last attempt's cause")
	}
	if f.calls != 3 {
		t.Errorf("fetch calls = %d, want 3", f.calls)
	}
	if s.calls != 0 {
		t.Errorf("summarizer must not run after fetch failures, calls=%d", s.calls)
	}

	want := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond}
	if len(rs.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rs.delays, want)
	}
	for i := range want {
		if rs.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rs.delays[i], want[i])
		}
	}
}

func TestRun_RecoversOnSecondAttempt(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{
		{err: errors.New("transient")},
		{snap: &models.PageSnapshot{HTML: "<p>ok</p>", VisibleText: "ok"}},
	}}
	s := &fakeSummarizer{out: "ok"}
	rs := &recordSleep{}
	o := New(f, s, Options{BackoffUnit: time.Millisecond, Sleep: rs.sleep, Logger: quietLogger()})

	res, err := o.Run(context.Background(), testJob)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PrimaryText != "ok" {
		t.Errorf("PrimaryText = %q", res.PrimaryText)
	}
	if f.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", f.calls)
	}
	if len(rs.delays) != 1 || rs.delays[0] != 2*time.Millisecond {
		t.Errorf("delays = %v, want [2ms]", rs.delays)
	}
}

func TestRun_SignInWallExhaustsRetries(t *testing.T) {
	wall := models.NewScrapeError(models.ErrCodeSignInWall, "blocked by sign-in wall", nil)
	f := &fakeFetcher{results: []fetchResult{{err: wall}}}
	s := &fakeSummarizer{}
	rs := &recordSleep{}
	o := New(f, s, Options{Sleep: rs.sleep, Logger: quietLogger()})

	_, err := o.Run(context.Background(), testJob)
	if models.CodeOf(err) != models.ErrCodeScrapeFailed {
		t.Fatalf("code = %s", models.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "sign-in wall") {
		t.Errorf("error should mention the sign-in wall: %q", err.Error())
	}
	if f.calls != 3 {
		t.Errorf("fetch calls = %d, want 3", f.calls)
	}
	if s.calls != 0 {
		t.Error("summarizer must not run when the page is blocked")
	}
}

func TestRun_SummarizerFailureIsRetried(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{snap: &models.PageSnapshot{HTML: "<p>x</p>"}}}}
	s := &fakeSummarizer{err: models.NewScrapeError(models.ErrCodeSummarization, "LLM API returned 500: boom", nil)}
	rs := &recordSleep{}
	o := New(f, s, Options{MaxRetries: 2, Sleep: rs.sleep, Logger: quietLogger()})

	_, err := o.Run(context.Background(), testJob)
	if !models.HasCode(err, models.ErrCodeSummarization) {
		t.Fatalf("expected wrapped summarization error, got %v", err)
	}
	if f.calls != 2 || s.calls != 2 {
		t.Errorf("fetch=%d summarize=%d, want 2/2", f.calls, s.calls)
	}
}

func TestRun_PanicBecomesAttemptFailure(t *testing.T) {
	f := &fakeFetcher{
		panicOn: 1,
		results: []fetchResult{{snap: &models.PageSnapshot{HTML: "<p>x</p>"}}},
	}
	s := &fakeSummarizer{out: "done"}
	rs := &recordSleep{}
	o := New(f, s, Options{Sleep: rs.sleep, Logger: quietLogger()})

	res, err := o.Run(context.Background(), testJob)
	if err != nil {
		t.Fatalf("second attempt should succeed after a panic: %v", err)
	}
	if res.PrimaryText != "done" {
		t.Errorf("PrimaryText = %q", res.PrimaryText)
	}
	if o.ActiveJobs() != 0 {
		t.Errorf("ActiveJobs = %d after Run, want 0", o.ActiveJobs())
	}
}

func TestRun_CondensesHTMLBeforeSummarizing(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{snap: &models.PageSnapshot{HTML: "<p>x</p>"}}}}
	s := &fakeSummarizer{out: "x"}
	o := New(f, s, Options{Condenser: upperCondenser{}, Logger: quietLogger()})

	if _, err := o.Run(context.Background(), testJob); err != nil {
		t.Fatal(err)
	}
	if s.html != "<P>X</P>" {
		t.Errorf("summarizer got %q, want condensed HTML", s.html)
	}
}

func TestRun_CanceledDuringBackoff(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{err: errors.New("fail")}}}
	s := &fakeSummarizer{}
	o := New(f, s, Options{BackoffUnit: time.Hour, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := o.Run(ctx, testJob)
	if models.CodeOf(err) != models.ErrCodeScrapeFailed {
		t.Fatalf("code = %s", models.CodeOf(err))
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff should stop when the context is canceled")
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}
}

func TestBackoff(t *testing.T) {
	o := New(nil, nil, Options{BackoffUnit: time.Second})
	tests := []struct {
		n    int
		want time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{9, maxBackoff},
		{34, maxBackoff},
		{63, maxBackoff},
		{1000, maxBackoff},
	}
	for _, tt := range tests {
		if got := o.Backoff(tt.n); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestBackoff_NeverShrinks(t *testing.T) {
	o := New(nil, nil, Options{BackoffUnit: time.Millisecond})
	prev := time.Duration(0)
	for n := 0; n <= 200; n++ {
		got := o.Backoff(n)
		if got <= 0 || got < prev || got > maxBackoff {
			t.Fatalf("Backoff(%d) = %v after %v", n, got, prev)
		}
		prev = got
	}
	if prev != maxBackoff {
		t.Errorf("Backoff(200) = %v, want %v", prev, maxBackoff)
	}
}
