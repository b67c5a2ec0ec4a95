package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/berserkarray/webscraperv2/models"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// Health returns a handler for GET /health.
//
// Reports "busy" while at least one scrape job is running.
func Health(runner Runner, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := runner.ActiveJobs()

		status := "healthy"
		if active > 0 {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:     status,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			ActiveJobs: active,
			Version:    Version,
		})
	}
}
