package models

// SuccessMessage is returned in ScrapeResponse.Message once the result has
// been scraped and accepted by the collector.
const SuccessMessage = "Scrape completed and data posted successfully"

// ScrapeResponse is the 200 response for POST /scrape.
type ScrapeResponse struct {
	Message string           `json:"message"`
	Payload CollectorPayload `json:"payload"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Detail is the human-readable error text, including the wrapped cause.
	Detail string `json:"detail"`

	// Code is the machine-readable error code (see errors.go).
	Code string `json:"code,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "busy"
	Uptime     string `json:"uptime"`
	ActiveJobs int    `json:"active_jobs"`
	Version    string `json:"version"`
}
