package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
)

// DevBypassHeader is the header checked against the configured secret.
const DevBypassHeader = "X-Dev-Bypass-Secret"

// DevBypassWarningHeader is set on the response whenever the bypass gate
// matches, so the posture is visible rather than silent (DESIGN.md open
// question decision).
const DevBypassWarningHeader = "X-Dev-Bypass"

// DevBypass returns middleware enforcing spec §4.Q's dev-bypass gate: a
// constant-time comparison of a configured secret against a request header,
// active only when enabled is true. A match marks the request context
// devBypassed and skips both payment middlewares.
func DevBypass(enabled bool, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled || secret == "" {
			c.Next()
			return
		}
		presented := c.GetHeader(DevBypassHeader)
		if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1 {
			MarkDevBypassed(c)
			c.Header(DevBypassWarningHeader, "true")
		}
		c.Next()
	}
}
