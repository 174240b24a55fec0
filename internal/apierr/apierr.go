// Package apierr implements the discriminated error taxonomy from spec §7:
// a small sum type mapping a failure kind to an HTTP status and a safe,
// credential-free response body.
package apierr

import (
	"net/http"
)

// Kind enumerates the error taxonomy of spec §7.
type Kind string

const (
	KindPaymentRequired     Kind = "payment_required"
	KindPaymentMissingProof Kind = "payment_missing_proof"
	KindPaymentRejected     Kind = "payment_rejected"
	KindRateLimited         Kind = "rate_limited"
	KindBadRequest          Kind = "bad_request"
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindTimeout             Kind = "timeout"
	KindUpstreamNotConfig   Kind = "upstream_not_configured"
	KindInternal            Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindPaymentRequired:     http.StatusPaymentRequired,
	KindPaymentMissingProof: http.StatusPaymentRequired,
	KindPaymentRejected:     http.StatusPaymentRequired,
	KindRateLimited:         http.StatusTooManyRequests,
	KindBadRequest:          http.StatusBadRequest,
	KindNotFound:            http.StatusNotFound,
	KindUnauthorized:        http.StatusUnauthorized,
	KindUpstreamUnavailable: http.StatusServiceUnavailable,
	KindTimeout:             http.StatusRequestTimeout,
	KindUpstreamNotConfig:   http.StatusBadGateway,
	KindInternal:            http.StatusServiceUnavailable,
}

// Error is the gateway's structured error type. It never carries
// credentials or internal paths in Message; Details is reserved for
// taxonomy-specific fields (reason, network, timeout_ms, etc.) that are
// safe to expose.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for this error's kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusServiceUnavailable
}

// Retryable reports whether the taxonomy entry for this kind is documented
// as retryable in spec §7.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUpstreamUnavailable, KindTimeout, KindInternal:
		return true
	default:
		return false
	}
}

// Body renders the JSON-safe response body for this error, per the shapes
// in spec §7's table.
func (e *Error) Body() map[string]any {
	body := map[string]any{"error": e.Message}
	if e.Retryable() {
		body["retryable"] = true
	}
	for k, v := range e.Details {
		body[k] = v
	}
	return body
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches additional safe response fields.
func (e *Error) WithDetails(kv ...any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e.Details[key] = kv[i+1]
	}
	return e
}
