package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agentc22/x402-engine/internal/apierr"
)

// Recovery is the spec §4.Q tail error handler: any panic reaching it is
// converted into a 503 `{error, retryable:true}` with a Retry-After hint,
// grounded on OpenBuilders-giveaway-tool-backend's ErrorHandler
// (gin.CustomRecovery + structured logging), adapted to this repo's
// apierr taxonomy and zerolog logger.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestID := RequestIDFromContext(c)
		log.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Msg("panic recovered")

		c.Header("Retry-After", "5")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, apierr.New(apierr.KindInternal, "Internal error").Body())
	})
}
