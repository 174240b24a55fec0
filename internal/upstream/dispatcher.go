// Package upstream implements the uniform upstream-handler contract of
// spec §4.P: validate, cache probe, credential acquisition, retrying
// outbound call, response normalization, cache populate, async log, and
// error-taxonomy mapping. The retry/backoff shape is grounded on the
// teacher corpus's provider-executor retry composition
// (malwarebo-conductor/resilience/provider_executor.go), adapted from a
// circuit-breaker wrapper to the spec's simpler bounded-retry requirement.
package upstream

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agentc22/x402-engine/internal/apierr"
	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/creds"
	"github.com/agentc22/x402-engine/internal/ledger"
	"github.com/agentc22/x402-engine/internal/ttlcache"
)

// Handler is the per-endpoint contract an upstream API integration must
// satisfy; Dispatcher supplies everything else (caching, credentials,
// retry, logging, error mapping).
type Handler interface {
	// Validate checks endpoint-specific input parameters.
	Validate(input map[string]any) error
	// CacheKey returns the canonical cache key for a given input, or ""
	// to disable caching for this call.
	CacheKey(input map[string]any) string
	// CacheTTL returns this endpoint's cache lifetime.
	CacheTTL() time.Duration
	// BuildRequest constructs the outbound HTTP request using the
	// acquired credential.
	BuildRequest(ctx context.Context, credential string, input map[string]any) (*http.Request, error)
	// Normalize projects the upstream's JSON response into the stable
	// response shape this endpoint promises callers.
	Normalize(resp *http.Response) (map[string]any, error)
}

// RetryPolicy bounds the outbound-call retry behavior of spec §4.P step 4.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	return p
}

// Dispatcher is the shared plumbing behind every paid route's handler.
type Dispatcher struct {
	cache       *ttlcache.Cache
	creds       *creds.Pool
	ledger      *ledger.Ledger
	httpClient  *http.Client
	retryPolicy RetryPolicy
	uploadSem   chan struct{}
	inflight    singleflight.Group
}

// Config configures a Dispatcher.
type Config struct {
	HTTPClient        *http.Client
	Retry             RetryPolicy
	UploadConcurrency int
}

// NewDispatcher wires a Dispatcher over the shared cache, credential pool,
// and ledger.
func NewDispatcher(cache *ttlcache.Cache, pool *creds.Pool, l *ledger.Ledger, cfg Config) *Dispatcher {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	uploadConcurrency := cfg.UploadConcurrency
	if uploadConcurrency <= 0 {
		uploadConcurrency = 5
	}
	return &Dispatcher{
		cache:       cache,
		creds:       pool,
		ledger:      l,
		httpClient:  client,
		retryPolicy: cfg.Retry.withDefaults(),
		uploadSem:   make(chan struct{}, uploadConcurrency),
	}
}

// AcquireUpload reserves one of the bounded concurrent-upload slots (spec
// §5 backpressure: "excess uploads -> 503 retryable"). It returns false
// immediately if no slot is free.
func (d *Dispatcher) AcquireUpload() bool {
	select {
	case d.uploadSem <- struct{}{}:
		return true
	default:
		return false
	}
}

// ReleaseUpload returns a slot reserved by AcquireUpload.
func (d *Dispatcher) ReleaseUpload() {
	<-d.uploadSem
}

// Dispatch runs the full §4.P pipeline for one paid-route invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, svc catalog.Service, providerTag string, h Handler, input map[string]any) (map[string]any, *apierr.Error) {
	started := time.Now()

	if err := h.Validate(input); err != nil {
		return nil, apierr.Wrap(apierr.KindBadRequest, "invalid input", err)
	}

	cacheKey := h.CacheKey(input)
	if cacheKey != "" && d.cache != nil {
		if cached, ok := d.cache.Get(cacheKey); ok {
			if body, ok := cached.(map[string]any); ok {
				d.logAsync(svc.ID, "", http.StatusOK, time.Since(started))
				return body, nil
			}
		}
	}

	// Concurrent requests for the same cache key share one upstream call
	// instead of each paying for a redundant fetch (thundering-herd guard).
	sfKey := cacheKey
	if sfKey == "" {
		sfKey = providerTag + "|" + newLogID()
	}

	type dispatchResult struct {
		body   map[string]any
		status int
	}

	raw, sfErr, _ := d.inflight.Do(sfKey, func() (any, error) {
		credential, ok := d.creds.Acquire(providerTag)
		if !ok {
			return nil, apierr.New(apierr.KindUpstreamNotConfig, "upstream not configured").WithDetails("provider", providerTag)
		}

		body, status, err := d.callWithRetry(ctx, credential, h, input)
		if err != nil {
			return nil, err
		}

		if cacheKey != "" && d.cache != nil {
			d.cache.Put(cacheKey, body, h.CacheTTL())
		}
		return dispatchResult{body: body, status: status}, nil
	})

	if sfErr != nil {
		apiErr, ok := sfErr.(*apierr.Error)
		if !ok {
			apiErr = apierr.Wrap(apierr.KindInternal, "upstream dispatch failed", sfErr)
		}
		d.logAsync(svc.ID, "", apiErr.Status(), time.Since(started))
		return nil, apiErr
	}

	result := raw.(dispatchResult)
	d.logAsync(svc.ID, "", result.status, time.Since(started))
	return result.body, nil
}

func (d *Dispatcher) callWithRetry(ctx context.Context, credential string, h Handler, input map[string]any) (map[string]any, int, *apierr.Error) {
	policy := d.retryPolicy
	delay := policy.BaseDelay

	var lastErr *apierr.Error
	var lastStatus int

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))
			select {
			case <-ctx.Done():
				return nil, 0, apierr.Wrap(apierr.KindTimeout, "upstream call cancelled", ctx.Err())
			case <-time.After(jittered):
			}
			delay *= 2
		}

		req, buildErr := h.BuildRequest(ctx, credential, input)
		if buildErr != nil {
			return nil, 0, apierr.Wrap(apierr.KindInternal, "failed to build upstream request", buildErr)
		}

		resp, doErr := d.httpClient.Do(req)
		if doErr != nil {
			lastErr = apierr.Wrap(apierr.KindUpstreamUnavailable, "upstream call failed", doErr)
			lastStatus = 0
			continue
		}

		status := resp.StatusCode
		if status >= 500 || status == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = apierr.New(apierr.KindUpstreamUnavailable, "upstream returned a retryable error").WithDetails("status", status)
			lastStatus = status
			continue
		}
		if status >= 400 {
			defer resp.Body.Close()
			return nil, status, apierr.New(apierr.KindBadRequest, "upstream rejected the request").WithDetails("status", status)
		}

		normalized, normErr := h.Normalize(resp)
		resp.Body.Close()
		if normErr != nil {
			return nil, status, apierr.Wrap(apierr.KindInternal, "failed to normalize upstream response", normErr)
		}
		return normalized, status, nil
	}

	if lastErr == nil {
		lastErr = apierr.New(apierr.KindUpstreamUnavailable, "upstream retries exhausted")
	}
	return nil, lastStatus, lastErr
}

func (d *Dispatcher) logAsync(serviceID, payer string, status int, latency time.Duration) {
	if d.ledger == nil {
		return
	}
	d.ledger.LogRequest(ledger.RequestEntry{
		ID:             newLogID(),
		ServiceID:      serviceID,
		Payer:          payer,
		UpstreamStatus: status,
		LatencyMS:      latency.Milliseconds(),
		CreatedAt:      time.Now(),
	})
}
