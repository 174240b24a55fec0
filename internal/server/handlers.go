package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/upstream"
)

// HandlerRegistry maps a catalog service's upstreamTag to the
// upstream.Handler that knows how to call that provider. Services with no
// registered tag fall back to passthroughHandler, a generic reverse-proxy
// handler driven entirely by catalog metadata.
type HandlerRegistry map[string]upstream.Handler

// passthroughHandler is the default upstream integration used when a
// catalog service carries no custom handler: it forwards the caller's
// input as query parameters (GET) or a JSON body (POST) to a fixed
// upstream URL taken from the service's Extra metadata, and returns the
// upstream's JSON response unmodified. Credential is attached as a Bearer
// token, the shape malwarebo-conductor's provider clients use.
type passthroughHandler struct {
	svc catalog.Service
}

func newPassthroughHandler(svc catalog.Service) passthroughHandler {
	return passthroughHandler{svc: svc}
}

func (h passthroughHandler) Validate(input map[string]any) error {
	if h.svc.Extra["upstreamURL"] == "" {
		return fmt.Errorf("service %s has no upstreamURL configured", h.svc.ID)
	}
	return nil
}

func (h passthroughHandler) CacheKey(input map[string]any) string {
	if h.svc.CacheTTLSecs <= 0 {
		return ""
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return h.svc.ID + ":" + string(raw)
}

func (h passthroughHandler) CacheTTL() time.Duration {
	return time.Duration(h.svc.CacheTTLSecs) * time.Second
}

func (h passthroughHandler) BuildRequest(ctx context.Context, credential string, input map[string]any) (*http.Request, error) {
	target := h.svc.Extra["upstreamURL"]

	var req *http.Request
	var err error
	if h.svc.Method == http.MethodGet {
		u, parseErr := url.Parse(target)
		if parseErr != nil {
			return nil, parseErr
		}
		q := u.Query()
		for k, v := range input {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		body, marshalErr := json.Marshal(input)
		if marshalErr != nil {
			return nil, marshalErr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, err
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	return req, nil
}

func (h passthroughHandler) Normalize(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
