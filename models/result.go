package models

// PageSnapshot is the rendered page content captured by a single attempt.
// It is owned by that attempt and never persisted.
type PageSnapshot struct {
	// HTML is the full rendered markup (page.content()).
	HTML string

	// VisibleText is document.body.innerText.
	VisibleText string

	// Title is document.title, best-effort.
	Title string

	// URL is the address that was navigated to.
	URL string
}

// Result is produced once per successful job and handed to the delivery shell.
type Result struct {
	PrimaryText string

	// SecondaryText is reserved by the collector contract and always empty.
	SecondaryText string
}

// CollectorPayload is the JSON body POSTed to the collector endpoint and
// echoed in the /scrape success response.
type CollectorPayload struct {
	ID            string `json:"id"`
	PrimaryText   string `json:"primary_text"`
	SecondaryText string `json:"secondary_text"`
}

// NewCollectorPayload pairs a job ID with its result.
func NewCollectorPayload(id string, r *Result) CollectorPayload {
	return CollectorPayload{
		ID:            id,
		PrimaryText:   r.PrimaryText,
		SecondaryText: r.SecondaryText,
	}
}
