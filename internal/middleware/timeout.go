package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// pathPrefixTimeouts implements spec §4.O's per-path-prefix deadlines.
var pathPrefixTimeouts = []struct {
	prefix  string
	timeout time.Duration
}{
	{"/api/llm", 180 * time.Second},
	{"/api/video", 300 * time.Second},
	{"/api/image", 90 * time.Second},
	{"/api/tts", 90 * time.Second},
	{"/api/transcribe", 90 * time.Second},
	{"/api/travel", 60 * time.Second},
	{"/api/ipfs", 60 * time.Second},
}

const defaultTimeout = 30 * time.Second

// TimeoutFor returns the configured deadline for a request path.
func TimeoutFor(path string) time.Duration {
	for _, entry := range pathPrefixTimeouts {
		if strings.HasPrefix(path, entry.prefix) {
			return entry.timeout
		}
	}
	return defaultTimeout
}

// Timeout returns gin middleware that bounds request handling to the
// per-path-prefix deadline of spec §4.O, responding 408 on expiry if a
// response has not already been written.
func Timeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		timeout := TimeoutFor(c.Request.URL.Path)
		started := time.Now()

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		var panicked any
		go func() {
			defer close(done)
			defer func() { panicked = recover() }()
			c.Next()
		}()

		select {
		case <-done:
		case <-ctx.Done():
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
					"error":      "request timed out",
					"retryable":  true,
					"timeout_ms": timeout.Milliseconds(),
					"elapsed_ms": time.Since(started).Milliseconds(),
				})
			}
			<-done
		}
		// Re-raise a handler panic on this goroutine so Recovery sees it.
		if panicked != nil {
			panic(panicked)
		}
	}
}
