package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	// Scrape-phase codes. These drive the retry loop.
	ErrCodeNavigationTimeout = "NAVIGATION_TIMEOUT"
	ErrCodeNavigation        = "NAVIGATION_FAILED"
	ErrCodeBrowserLaunch     = "BROWSER_LAUNCH_FAILED"
	ErrCodeSignInWall        = "BLOCKED_BY_SIGN_IN_WALL"
	ErrCodeExtractionTimeout = "EXTRACTION_TIMEOUT"
	ErrCodeExtraction        = "EXTRACTION_FAILED"
	ErrCodeSummarization     = "SUMMARIZATION_FAILED"

	// ErrCodeScrapeFailed is the composed error returned once all attempts
	// are exhausted. It wraps the last phase-specific cause.
	ErrCodeScrapeFailed = "SCRAPE_FAILED"

	// ErrCodeDelivery is raised by the delivery shell when the collector
	// POST fails. It is never retried.
	ErrCodeDelivery = "DELIVERY_FAILED"

	// ErrCodeCanceled marks work abandoned because the request context was
	// canceled (client gone or server shutting down).
	ErrCodeCanceled = "CANCELED"

	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost ScrapeError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether any ScrapeError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var se *ScrapeError
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}

// ToResponse converts an internal error to an API-facing ErrorResponse.
func (e *ScrapeError) ToResponse() ErrorResponse {
	return ErrorResponse{Detail: e.Error(), Code: e.Code}
}
