package scraper

import (
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// domStableDiff is the share of the DOM allowed to change between two
// snapshots for the page to count as stable. Carousels, countdowns and
// tickers keep mutating, so zero never converges on many product pages.
const domStableDiff = 0.1

// idleWaiter is the part of *rod.Page used to decide a page has settled.
type idleWaiter interface {
	WaitRequestIdle(d time.Duration, includes, excludes []string, excludeTypes []proto.NetworkResourceType) func()
	WaitDOMStable(d time.Duration, diff float64) error
}

// settle runs navigate and waits until the page is quiet.
//
// Without request hijacking it waits for network idle; the listener MUST be
// registered before navigate or it misses in-flight requests. Network idle
// conflicts with the hijack router on recent Chromium, so a hijacked page
// waits for a DOM that changes by at most domStableDiff instead.
func settle(p idleWaiter, hijacked bool, idle time.Duration, navigate func() error) error {
	var waitIdle func()
	if !hijacked {
		waitIdle = p.WaitRequestIdle(idle, nil, nil, nil)
	}

	if err := navigate(); err != nil {
		return err
	}

	if waitIdle != nil {
		waitIdle()
		return nil
	}
	return p.WaitDOMStable(idle, domStableDiff)
}
