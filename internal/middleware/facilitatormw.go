package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/facilitator"
	"github.com/agentc22/x402-engine/internal/ledger"
	"github.com/agentc22/x402-engine/internal/x402proto"
)

// FacilitatorSet maps a classified rail to the external facilitator that
// settles it (spec §4.M serves slow-rail-A and slow-rail-B).
type FacilitatorSet struct {
	SlowA facilitator.Facilitator
	SlowB facilitator.Facilitator
}

func (fs FacilitatorSet) forRail(rail x402proto.Rail) facilitator.Facilitator {
	switch rail {
	case x402proto.RailSlowA:
		return fs.SlowA
	case x402proto.RailSlowB:
		return fs.SlowB
	default:
		return nil
	}
}

// Facilitator returns gin middleware implementing spec §4.M: the
// permit-based verify/settle gate for the two slow rails. It is a no-op
// once a payment has already been verified (by the fast-rail middleware)
// or the request has been dev-bypassed. recipients supplies the gateway's
// own pay-to address per rail; the requirement handed to the facilitator
// is always the matching accept entry computed from the Service Registry
// and this configuration, never an echo of the client's "accepted"
// summary — a client cannot name its own address or amount.
func Facilitator(registry *catalog.Registry, fs FacilitatorSet, recipients x402proto.Recipients, l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsVerified(c) || IsDevBypassed(c) {
			c.Next()
			return
		}

		hdr, err := x402proto.ParseFromRequest(c.Request)
		if err != nil {
			c.Next()
			return
		}
		rail := x402proto.ClassifyRail(hdr.Accepted.CAIP2)
		if rail != x402proto.RailSlowA && rail != x402proto.RailSlowB {
			c.Next()
			return
		}

		svc, ok := registry.Match(c.Request.Method, c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}
		SetMatchedService(c, svc)

		fac := fs.forRail(rail)
		if fac == nil {
			c.Next()
			return
		}

		requirement, err := x402proto.RequirementFor(svc, rail.ChainsRail(), recipients)
		if err != nil {
			c.Next()
			return
		}

		if !hdr.Accepted.Matches(requirement) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":   "accepted payment terms do not match the advertised requirement",
				"network": requirement.CAIP2,
			})
			return
		}

		result, err := fac.Verify(c.Request.Context(), *hdr, requirement)
		if err != nil || !result.Valid {
			reason := result.Reason
			if reason == "" {
				reason = "facilitator_rejected"
			}
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":   "Payment verification failed",
				"reason":  reason,
				"network": requirement.CAIP2,
			})
			return
		}

		SetPaymentInfo(c, PaymentInfo{
			Payer:          result.Payer,
			CAIP2:          requirement.CAIP2,
			AmountBaseUnit: requirement.Amount,
			Method:         "facilitator",
		})

		started := time.Now()
		c.Next()

		// Slow rails require an explicit settlement step, called after the
		// handler completes; settlement failure never retroactively fails
		// the already-served response (spec §4.M).
		settleResult, settleErr := fac.Settle(c.Request.Context(), *hdr, requirement)
		if settleErr != nil || !settleResult.Success {
			// Observability only: the response was already written.
			log.Warn().Err(settleErr).
				Str("network", requirement.CAIP2).
				Str("reason", settleResult.Reason).
				Msg("payment settlement failed after response was served")
		}

		if l != nil {
			l.LogRequest(ledger.RequestEntry{
				ID:             newLogID(),
				ServiceID:      "payment-facilitator",
				Endpoint:       c.Request.URL.Path,
				Payer:          result.Payer,
				CAIP2:          requirement.CAIP2,
				AmountBaseUnit: requirement.Amount,
				UpstreamStatus: c.Writer.Status(),
				LatencyMS:      time.Since(started).Milliseconds(),
				CreatedAt:      time.Now(),
			})
		}
	}
}
