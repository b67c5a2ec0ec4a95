package models

import "strings"

// ScrapeRequest is the payload for POST /scrape.
type ScrapeRequest struct {
	// ID is an opaque caller-chosen identifier echoed to the collector. Required.
	ID string `json:"id" binding:"required"`

	// URL is the product page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// Term names the product the model should extract. Required.
	Term string `json:"term" binding:"required"`
}

// ToJob converts the request into an immutable ScrapeJob.
func (r *ScrapeRequest) ToJob() ScrapeJob {
	return ScrapeJob{
		ID:   r.ID,
		URL:  strings.TrimSpace(r.URL),
		Term: r.Term,
	}
}

// ScrapeJob is one scrape-and-deliver unit of work for a single URL/term pair.
// It is created per inbound request and discarded when the job completes.
type ScrapeJob struct {
	ID   string
	URL  string
	Term string
}
