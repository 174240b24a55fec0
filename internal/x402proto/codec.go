package x402proto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentc22/x402-engine/internal/chains"
)

// ErrNoPaymentHeader is returned when neither accepted header name carries
// a value; callers treat this identically to a malformed header — both
// mean "advertise a 402".
var ErrNoPaymentHeader = errors.New("x402proto: no payment header present")

// ErrMalformedHeader is returned when the header value is present but does
// not decode to a valid PaymentHeader.
var ErrMalformedHeader = errors.New("x402proto: malformed payment header")

// HeaderNames are the two accepted case-insensitive header names (spec §4.K, §6).
var HeaderNames = []string{"payment-signature", "x-payment"}

// ExtractHeaderValue returns the first populated payment header value.
func ExtractHeaderValue(r *http.Request) string {
	for _, name := range HeaderNames {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// DecodePaymentHeader base64-decodes then JSON-parses a payment header
// value. An empty value yields ErrNoPaymentHeader; any decoding failure is
// reported as ErrMalformedHeader, which callers must treat as "no payment
// header" (advertise 402), not as a client error.
func DecodePaymentHeader(raw string) (*PaymentHeader, error) {
	if raw == "" {
		return nil, ErrNoPaymentHeader
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrMalformedHeader
	}
	var hdr PaymentHeader
	if err := json.Unmarshal(decoded, &hdr); err != nil {
		return nil, ErrMalformedHeader
	}
	return &hdr, nil
}

// ParseFromRequest extracts and decodes the payment header from an HTTP
// request in one step.
func ParseFromRequest(r *http.Request) (*PaymentHeader, error) {
	return DecodePaymentHeader(ExtractHeaderValue(r))
}

// ClassifyRail maps a CAIP-2 identifier to the rail it belongs to.
func ClassifyRail(caip2 string) Rail {
	c, err := chains.Lookup(caip2)
	if err != nil {
		return RailUnknown
	}
	switch c.Rail {
	case chains.RailFast:
		return RailFast
	case chains.RailSlowA:
		return RailSlowA
	case chains.RailSlowB:
		return RailSlowB
	default:
		return RailUnknown
	}
}

// ChainsRail converts a classified protocol rail to the chains package's
// rail type, so callers holding a Rail can look up the canonical
// requirement for it via chains.ForRail / RequirementFor.
func (r Rail) ChainsRail() chains.Rail {
	switch r {
	case RailFast:
		return chains.RailFast
	case RailSlowA:
		return chains.RailSlowA
	case RailSlowB:
		return chains.RailSlowB
	default:
		return ""
	}
}

// EncodeHeaderValue base64-JSON-encodes a payment header, used by tests and
// by any client-facing tooling that needs to construct one.
func EncodeHeaderValue(hdr PaymentHeader) (string, error) {
	raw, err := json.Marshal(hdr)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodePaymentRequired base64-JSON-encodes a PaymentRequired body for the
// PAYMENT-REQUIRED header.
func EncodePaymentRequired(body PaymentRequired) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePaymentRequired is the inverse of EncodePaymentRequired, used in
// tests to assert on what the advertiser produced.
func DecodePaymentRequired(raw string) (*PaymentRequired, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	var body PaymentRequired
	if err := json.Unmarshal(decoded, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// DecodeFastRailPayload extracts the {txHash} payload from a fast-rail
// payment header's generic Payload field.
func DecodeFastRailPayload(payload any) (FastRailPayload, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return FastRailPayload{}, false
	}
	txHash, ok := m["txHash"].(string)
	if !ok || txHash == "" {
		return FastRailPayload{}, false
	}
	return FastRailPayload{TxHash: txHash}, true
}
