package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentc22/x402-engine/internal/apierr"
	"github.com/agentc22/x402-engine/internal/chains"
)

// registerDiscovery wires the always-free discovery endpoints of spec §6:
// health, the x402 well-known manifest, and the service catalog browse
// routes. None of these carry payment gates — they are the spec's
// "free-route short circuit" in concrete form, since they are simply never
// registered behind FastRail/Facilitator/the 402 advertiser.
func (s *Server) registerDiscovery() {
	s.Engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	manifest := s.buildWellKnownManifest()
	s.Engine.GET("/.well-known/x402.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, manifest)
	})

	s.Engine.GET("/api/services", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"services": s.cfg.Registry.All()})
	})

	s.Engine.GET("/api/services/:id", func(c *gin.Context) {
		svc, ok := s.cfg.Registry.Get(c.Param("id"))
		if !ok {
			err := apierr.New(apierr.KindNotFound, "service not found")
			c.JSON(err.Status(), err.Body())
			return
		}
		c.JSON(http.StatusOK, svc)
	})
}

// buildWellKnownManifest is computed once at startup (spec §6: "Stable
// shape; pre-computed at startup").
func (s *Server) buildWellKnownManifest() gin.H {
	networks := gin.H{}
	for _, c := range chains.All() {
		networks[c.CAIP2] = gin.H{
			"displayName": c.DisplayName,
			"stablecoin":  c.Stablecoin.Symbol,
			"decimals":    c.Stablecoin.Decimals,
			"rail":        string(c.Rail),
		}
	}

	categories := gin.H{}
	routes := gin.H{}
	for _, svc := range s.cfg.Registry.All() {
		if svc.Category != "" {
			if _, ok := categories[svc.Category]; !ok {
				categories[svc.Category] = []string{}
			}
			categories[svc.Category] = append(categories[svc.Category].([]string), svc.ID)
		}
		routes[svc.Method+" "+svc.Path] = svc.ID
	}

	return gin.H{
		"name":        "x402-engine",
		"version":     s.cfg.Version,
		"x402Version": 2,
		"networks":    networks,
		"services":    s.cfg.Registry.All(),
		"routes":      routes,
		"categories":  categories,
		"hint":        "Present a payment-signature or x-payment header with a valid proof to access priced routes.",
	}
}
