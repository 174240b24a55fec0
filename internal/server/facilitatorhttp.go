package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentc22/x402-engine/internal/chains"
	"github.com/agentc22/x402-engine/internal/facilitator"
	"github.com/agentc22/x402-engine/internal/x402proto"
)

// railFacilitator resolves the ":rail" path parameter to a Facilitator,
// covering all three rails so the same generic HTTP surface (spec §6
// "Facilitator HTTP surface") serves fast-rail self-verification and the
// two external slow rails alike.
func (s *Server) railFacilitator(rail string) facilitator.Facilitator {
	switch rail {
	case "fast":
		if s.cfg.FastRail == nil {
			return nil
		}
		return s.cfg.FastRail
	case "slow-a":
		return s.cfg.Facilitators.SlowA
	case "slow-b":
		return s.cfg.Facilitators.SlowB
	default:
		return nil
	}
}

func (s *Server) railNetwork(rail string) string {
	switch rail {
	case "fast":
		return chains.NetworkFast
	case "slow-a":
		return chains.NetworkSlowA
	case "slow-b":
		return chains.NetworkSlowB
	default:
		return ""
	}
}

// registerFacilitatorSurface implements spec §6's facilitator HTTP
// surface, grounded on the teacher's v2/http/facilitator.go wire shapes
// (isValid/payer, success/transaction/network).
func (s *Server) registerFacilitatorSurface() {
	group := s.Engine.Group("/facilitator/:rail")

	group.GET("/supported", func(c *gin.Context) {
		fac := s.railFacilitator(c.Param("rail"))
		if fac == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown rail"})
			return
		}
		kinds, err := fac.GetSupported(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "facilitator unavailable", "retryable": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kinds": kinds})
	})

	group.POST("/verify", func(c *gin.Context) {
		fac := s.railFacilitator(c.Param("rail"))
		if fac == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown rail"})
			return
		}
		var req struct {
			Payload     x402proto.PaymentHeader `json:"paymentPayload"`
			Requirement x402proto.AcceptEntry   `json:"paymentRequirements"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}
		result, err := fac.Verify(c.Request.Context(), req.Payload, req.Requirement)
		if err != nil || !result.Valid {
			reason := result.Reason
			if reason == "" {
				reason = "verification_failed"
			}
			c.JSON(http.StatusPaymentRequired, gin.H{"isValid": false, "invalidReason": reason, "invalidMessage": "payment verification failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"isValid": true, "payer": result.Payer})
	})

	group.POST("/settle", func(c *gin.Context) {
		fac := s.railFacilitator(c.Param("rail"))
		if fac == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown rail"})
			return
		}
		var req struct {
			Payload     x402proto.PaymentHeader `json:"paymentPayload"`
			Requirement x402proto.AcceptEntry   `json:"paymentRequirements"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}
		rail := c.Param("rail")
		result, err := fac.Settle(c.Request.Context(), req.Payload, req.Requirement)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "network": s.railNetwork(rail)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": result.Success, "transaction": result.TxHash, "network": s.railNetwork(rail)})
	})

	group.GET("/status", func(c *gin.Context) {
		rail := c.Param("rail")
		network := s.railNetwork(rail)
		chain, err := chains.Lookup(network)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown rail"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"network":    network,
			"connected":  s.railFacilitator(rail) != nil,
			"stablecoin": chain.Stablecoin.Symbol,
		})
	})
}
