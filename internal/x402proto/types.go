// Package x402proto implements the wire protocol: the 402 advertisement
// body, the Accept Entry shape, and the payment header codec (spec §4.J,
// §4.K). Types are adapted from the teacher's v2 protocol types, renamed to
// the spec's vocabulary (PAYMENT-REQUIRED header, payment-signature /
// x-payment header names, "payTo"/"asset" field names from spec §6).
package x402proto

// ProtocolVersion is the x402 protocol version this gateway speaks.
const ProtocolVersion = 2

// ResourceInfo describes the protected resource in a 402 response.
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// AcceptEntry is one element of the "accepts" array: a single payment
// option for a given service on a given rail (spec §3 Accept Entry).
type AcceptEntry struct {
	Scheme            string         `json:"scheme"`
	CAIP2             string         `json:"caip2"`
	Amount            string         `json:"amount"`
	Asset             string         `json:"asset"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// PaymentRequired is the body encoded into the PAYMENT-REQUIRED header.
type PaymentRequired struct {
	X402Version int           `json:"x402Version"`
	Error       string        `json:"error"`
	Resource    ResourceInfo  `json:"resource"`
	Accepts     []AcceptEntry `json:"accepts"`
}

// AcceptedSummary is the "accepted" sub-object a client echoes back inside
// its payment header, identifying which AcceptEntry it is paying against.
type AcceptedSummary struct {
	Scheme string `json:"scheme"`
	CAIP2  string `json:"caip2"`
	Amount string `json:"amount"`
	Asset  string `json:"asset"`
	PayTo  string `json:"payTo"`
}

// Matches reports whether a client-echoed AcceptedSummary agrees exactly
// with the AcceptEntry the gateway itself computed for the request.
// Verification must never proceed against client-supplied terms that
// disagree with the gateway's own price and recipient (spec §4.J).
func (a AcceptedSummary) Matches(entry AcceptEntry) bool {
	return a.Scheme == entry.Scheme &&
		a.CAIP2 == entry.CAIP2 &&
		a.Amount == entry.Amount &&
		a.Asset == entry.Asset &&
		a.PayTo == entry.PayTo
}

// FastRailPayload is the rail-specific payload for the fast rail: a single
// transaction hash.
type FastRailPayload struct {
	TxHash string `json:"txHash"`
}

// PaymentHeader is the decoded structure of the payment-signature / x-payment
// header (spec §4.K, §6).
type PaymentHeader struct {
	X402Version int             `json:"x402Version"`
	Accepted    AcceptedSummary `json:"accepted"`
	Payload     any             `json:"payload"`
}

// Rail classifies a decoded payment header by its accepted.caip2 field.
type Rail string

const (
	RailFast    Rail = "fast"
	RailSlowA   Rail = "slow-a"
	RailSlowB   Rail = "slow-b"
	RailUnknown Rail = "unknown"
)
