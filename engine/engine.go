package engine

import (
	"context"

	"github.com/berserkarray/webscraperv2/models"
)

// Fetcher renders a page in a fresh browser session and returns its content.
// The session must be released before Fetch returns. *scraper.Scraper
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.PageSnapshot, error)
}

// Summarizer turns page content into the product text for term.
// *llm.Summarizer implements it.
type Summarizer interface {
	Summarize(ctx context.Context, html, text, term string) (string, error)
}

// Condenser prepares HTML before summarization. *cleaner.Condenser
// implements it.
type Condenser interface {
	Condense(rawHTML, sourceURL string) string
}

// State is a retry-loop state, used in logs.
type State string

const (
	StateAttempting State = "attempting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)
