package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is both the incoming header honored (so a caller's own
// trace id survives) and the header echoed back on the response.
const RequestIDHeader = "X-Request-Id"

const keyRequestID contextKey = "x402_request_id"

// RequestID assigns (or preserves) a per-request id, grounded on
// OpenBuilders-giveaway-tool-backend's common/middleware RequestID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(string(keyRequestID), id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext returns the id assigned by RequestID, or "" if the
// middleware did not run.
func RequestIDFromContext(c *gin.Context) string {
	v, ok := c.Get(string(keyRequestID))
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
