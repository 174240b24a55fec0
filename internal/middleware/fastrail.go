package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/chains"
	"github.com/agentc22/x402-engine/internal/facilitator"
	"github.com/agentc22/x402-engine/internal/ledger"
	"github.com/agentc22/x402-engine/internal/x402proto"
)

// FastRail returns gin middleware implementing spec §4.L: the fast-rail
// payment gate, which runs before the external-facilitator middleware and
// is the only rail the core verifies itself rather than delegating to a
// remote service. recipients supplies the gateway's own pay-to address for
// the rail; the requirement verified against is always computed from the
// Service Registry and this configuration, never from the client's
// echoed "accepted" summary.
func FastRail(registry *catalog.Registry, fr *facilitator.FastRail, recipients x402proto.Recipients, l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		hdr, err := x402proto.ParseFromRequest(c.Request)
		if err != nil {
			c.Next()
			return
		}
		if x402proto.ClassifyRail(hdr.Accepted.CAIP2) != x402proto.RailFast {
			c.Next()
			return
		}

		svc, ok := registry.Match(c.Request.Method, c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}
		SetMatchedService(c, svc)

		requirement, err := x402proto.RequirementFor(svc, chains.RailFast, recipients)
		if err != nil {
			c.Next()
			return
		}

		if !hdr.Accepted.Matches(requirement) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":   "accepted payment terms do not match the advertised requirement",
				"network": chains.NetworkFast,
			})
			return
		}

		fastPayload, ok := x402proto.DecodeFastRailPayload(hdr.Payload)
		if !ok || !strings.HasPrefix(fastPayload.TxHash, "0x") {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":   "MegaETH-style payments require txHash in payload",
				"network": chains.NetworkFast,
			})
			return
		}

		result, _ := fr.Verify(c.Request.Context(), *hdr, requirement)
		if !result.Valid {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":   "Payment verification failed",
				"reason":  result.Reason,
				"network": chains.NetworkFast,
			})
			return
		}

		SetPaymentInfo(c, PaymentInfo{
			Payer:          result.Payer,
			CAIP2:          chains.NetworkFast,
			AmountBaseUnit: requirement.Amount,
			ProofKey:       fastPayload.TxHash,
			Method:         "direct",
		})

		started := time.Now()
		c.Next()

		if l != nil {
			l.LogRequest(ledger.RequestEntry{
				ID:             newLogID(),
				ServiceID:      "payment-fast",
				Endpoint:       c.Request.URL.Path,
				Payer:          result.Payer,
				CAIP2:          chains.NetworkFast,
				AmountBaseUnit: requirement.Amount,
				UpstreamStatus: c.Writer.Status(),
				LatencyMS:      time.Since(started).Milliseconds(),
				CreatedAt:      time.Now(),
			})
		}
	}
}
