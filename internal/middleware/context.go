// Package middleware implements the gin pipeline stages of spec §4.L-§4.O:
// fast-rail payment gating, facilitator payment gating, tiered rate
// limiting, and per-route timeouts. Ordering and context-annotation follow
// the teacher's v2/http/gin/middleware.go settlement-interceptor pattern.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/agentc22/x402-engine/internal/catalog"
)

// contextKey namespaces values this package stores on the gin context.
type contextKey string

const (
	keyPaymentInfo  contextKey = "x402_payment_info"
	keyDevBypassed  contextKey = "x402_dev_bypassed"
	keyMatchedRoute contextKey = "x402_matched_service"
)

// PaymentInfo annotates a request once a payment has been verified
// (spec §4.L step 6).
type PaymentInfo struct {
	Payer          string
	CAIP2          string
	AmountBaseUnit string
	ProofKey       string
	Method         string // "direct" (fast rail) or "facilitator" (slow rails)
}

// SetPaymentInfo marks the request context verified.
func SetPaymentInfo(c *gin.Context, info PaymentInfo) {
	c.Set(string(keyPaymentInfo), info)
}

// PaymentFromContext returns the verified payment info, if any.
func PaymentFromContext(c *gin.Context) (PaymentInfo, bool) {
	v, ok := c.Get(string(keyPaymentInfo))
	if !ok {
		return PaymentInfo{}, false
	}
	info, ok := v.(PaymentInfo)
	return info, ok
}

// IsVerified reports whether a payment has already been accepted for this
// request, by any rail.
func IsVerified(c *gin.Context) bool {
	_, ok := PaymentFromContext(c)
	return ok
}

// MarkDevBypassed flags the request as having matched the dev-bypass gate.
func MarkDevBypassed(c *gin.Context) {
	c.Set(string(keyDevBypassed), true)
}

// IsDevBypassed reports whether the dev-bypass gate matched this request.
func IsDevBypassed(c *gin.Context) bool {
	v, ok := c.Get(string(keyDevBypassed))
	return ok && v.(bool)
}

// SetMatchedService records the Service Registry match on the request
// context. FastRail, Facilitator and the server's tier classifier each call
// Registry.Match themselves and then store the result here.
func SetMatchedService(c *gin.Context, svc catalog.Service) {
	c.Set(string(keyMatchedRoute), svc)
}

// MatchedService returns the cached Service Registry match, if any.
func MatchedService(c *gin.Context) (catalog.Service, bool) {
	v, ok := c.Get(string(keyMatchedRoute))
	if !ok {
		return catalog.Service{}, false
	}
	svc, ok := v.(catalog.Service)
	return svc, ok
}
