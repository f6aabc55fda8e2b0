package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/fedcat/config"
	"github.com/openshelf/fedcat/models"
)

// Health returns the handler for GET /api/v1/health.
//
// Service booleans reflect configuration presence only; a live probe of the
// legacy catalog would cost a full browser navigation per check.
func Health(cfg *config.Config, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status: "healthy",
			Services: map[string]bool{
				models.SourceLegacy: cfg.LegacyConfigured(),
				models.SourceYCL:    cfg.YCLConfigured(),
			},
			Version: "0.1.0",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
		})
	}
}
