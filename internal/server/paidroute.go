package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentc22/x402-engine/internal/apierr"
	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/middleware"
	"github.com/agentc22/x402-engine/internal/x402proto"
)

// registerPaidRoutes attaches, per catalogued service, the exact per-route
// segment of the spec §4.Q pipeline: dev-bypass → fast-rail (§4.L) →
// facilitator (§4.M) → 402 advertiser (§4.J) → upstream dispatcher (§4.P).
// Global concerns (body size, CORS, request id, rate limit, timeout) are
// already applied engine-wide by New.
func (s *Server) registerPaidRoutes() {
	for _, svc := range s.cfg.Registry.All() {
		svc := svc
		chain := gin.HandlersChain{
			middleware.DevBypass(s.cfg.DevBypassEnabled, s.cfg.DevBypassSecret),
			middleware.FastRail(s.cfg.Registry, s.cfg.FastRail, s.cfg.Recipients, s.cfg.Ledger),
			middleware.Facilitator(s.cfg.Registry, s.cfg.Facilitators, s.cfg.Recipients, s.cfg.Ledger),
			s.advertiserGate(svc),
			s.dispatchHandler(svc),
		}
		s.Engine.Handle(svc.Method, svc.Path, chain...)
	}
}

// advertiserGate implements spec §4.J: if the request reaches here without
// having been verified by an upstream rail gate (or dev-bypassed), respond
// 402 with the PAYMENT-REQUIRED advertisement instead of proceeding to the
// upstream dispatcher.
func (s *Server) advertiserGate(svc catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if middleware.IsVerified(c) || middleware.IsDevBypassed(c) {
			c.Next()
			return
		}

		resourceURL := s.cfg.ExternalURL + svc.Path
		body, err := x402proto.BuildAdvertisement(svc, resourceURL, s.cfg.Recipients, s.cfg.MaxTimeoutSeconds)
		if err != nil {
			apiErr := apierr.Wrap(apierr.KindInternal, "failed to build payment advertisement", err)
			c.AbortWithStatusJSON(apiErr.Status(), apiErr.Body())
			return
		}

		encoded, err := x402proto.EncodePaymentRequired(body)
		if err != nil {
			apiErr := apierr.Wrap(apierr.KindInternal, "failed to encode payment advertisement", err)
			c.AbortWithStatusJSON(apiErr.Status(), apiErr.Body())
			return
		}

		c.Header("Access-Control-Expose-Headers", x402proto.HeaderName)
		c.Header(x402proto.HeaderName, encoded)
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{})
	}
}

// dispatchHandler is the terminal handler for a paid route: it collects
// the caller's input (query parameters for GET, JSON body for POST) and
// runs it through the Upstream Dispatcher (spec §4.P).
func (s *Server) dispatchHandler(svc catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := map[string]any{}
		if svc.Method == http.MethodGet {
			for k, v := range c.Request.URL.Query() {
				if len(v) > 0 {
					input[k] = v[0]
				}
			}
		} else if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				apiErr := apierr.Wrap(apierr.KindBadRequest, "malformed request body", err)
				c.JSON(apiErr.Status(), apiErr.Body())
				return
			}
		}

		h, ok := s.cfg.Handlers[svc.UpstreamTag]
		if !ok {
			h = newPassthroughHandler(svc)
		}

		body, apiErr := s.cfg.Dispatcher.Dispatch(c.Request.Context(), svc, svc.UpstreamTag, h, input)
		if apiErr != nil {
			if apiErr.Retryable() {
				c.Header("Retry-After", "2")
			}
			c.JSON(apiErr.Status(), apiErr.Body())
			return
		}
		c.JSON(http.StatusOK, body)
	}
}
