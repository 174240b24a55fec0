package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// bodySizeCaps implements spec §4.Q's per-route request body ceiling: a
// 1 MB default, raised for routes that legitimately accept large uploads
// (transcription audio files).
var bodySizeCaps = []struct {
	prefix string
	limit  int64
}{
	{"/api/transcribe", 50 << 20},
}

const defaultBodySizeCap = 1 << 20

// BodySizeCapFor returns the configured request body ceiling for a path.
func BodySizeCapFor(path string) int64 {
	for _, entry := range bodySizeCaps {
		if strings.HasPrefix(path, entry.prefix) {
			return entry.limit
		}
	}
	return defaultBodySizeCap
}

// BodySizeLimit returns gin middleware enforcing BodySizeCapFor via
// http.MaxBytesReader, so an oversized body fails at read time with a
// clear error instead of exhausting memory.
func BodySizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := BodySizeCapFor(c.Request.URL.Path)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
