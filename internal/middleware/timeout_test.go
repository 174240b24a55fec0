package middleware

import (
	"testing"
	"time"
)

func TestTimeoutForKnownPrefixes(t *testing.T) {
	cases := map[string]time.Duration{
		"/api/llm/chat":         180 * time.Second,
		"/api/video/render":     300 * time.Second,
		"/api/image/generate":   90 * time.Second,
		"/api/tts/speak":        90 * time.Second,
		"/api/transcribe/file":  90 * time.Second,
		"/api/travel/search":    60 * time.Second,
		"/api/ipfs/pin":         60 * time.Second,
		"/api/unknown/endpoint": 30 * time.Second,
	}
	for path, want := range cases {
		if got := TimeoutFor(path); got != want {
			t.Errorf("TimeoutFor(%q) = %v, want %v", path, got, want)
		}
	}
}
