package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/berserkarray/webscraperv2/api/middleware"
	"github.com/berserkarray/webscraperv2/models"
)

// Runner executes one scrape job with retries. *engine.Orchestrator
// implements it.
type Runner interface {
	Run(ctx context.Context, job models.ScrapeJob) (*models.Result, error)
	ActiveJobs() int
}

// Deliverer posts a finished result to the collector. *webhook.Client
// implements it.
type Deliverer interface {
	Deliver(ctx context.Context, payload models.CollectorPayload) error
}

// Scrape returns a handler for POST /scrape.
//
// Flow:
//  1. Bind and validate {id, url, term}; 400 on schema violations.
//  2. Runner.Run → fetch + summarize with retries; 500 when exhausted.
//  3. Deliverer.Deliver → collector POST; 500 on delivery failure.
//  4. 200 with the delivered payload.
func Scrape(runner Runner, deliverer Deliverer, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Detail: err.Error(),
				Code:   models.ErrCodeInvalidInput,
			})
			return
		}

		job := req.ToJob()
		log := logger.With("request_id", c.GetString(middleware.RequestIDKey), "job_id", job.ID)
		log.Info("scrape requested", "url", job.URL, "term", job.Term)

		result, err := runner.Run(c.Request.Context(), job)
		if err != nil {
			log.Error("scrape failed", "code", models.CodeOf(err), "error", err)
			respondError(c, err)
			return
		}

		payload := models.NewCollectorPayload(job.ID, result)
		if err := deliverer.Deliver(c.Request.Context(), payload); err != nil {
			log.Error("collector delivery failed", "error", err)
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ScrapeResponse{
			Message: models.SuccessMessage,
			Payload: payload,
		})
	}
}

// respondError writes a ScrapeError as {"detail", "code"}. Scrape and
// delivery failures are both server errors.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(scrapeErr), scrapeErr.ToResponse())
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
