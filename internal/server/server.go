// Package server assembles the gin pipeline of spec §4.Q: the fixed
// middleware order, discovery endpoints, the per-rail facilitator HTTP
// surface, and the generic paid-route dispatch handler. Grounded on
// OpenBuilders-giveaway-tool-backend's cmd/server/main.go engine assembly
// and the teacher's v2/http/gin/middleware.go gin adapter pattern.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/facilitator"
	"github.com/agentc22/x402-engine/internal/ledger"
	"github.com/agentc22/x402-engine/internal/middleware"
	"github.com/agentc22/x402-engine/internal/upstream"
	"github.com/agentc22/x402-engine/internal/x402proto"
)

// Recipients configures the pay-to address advertised for each rail.
type Recipients = x402proto.Recipients

// Config wires every dependency the pipeline assembler needs.
type Config struct {
	Registry          *catalog.Registry
	Ledger            *ledger.Ledger
	Dispatcher        *upstream.Dispatcher
	Handlers          HandlerRegistry
	FastRail          *facilitator.FastRail
	Facilitators      middleware.FacilitatorSet
	Recipients        Recipients
	MaxTimeoutSeconds int
	ExternalURL       string
	DevBypassEnabled  bool
	DevBypassSecret   string
	Version           string
	Log               zerolog.Logger
}

// Server owns the assembled gin engine and the dependencies its handlers
// close over.
type Server struct {
	Engine *gin.Engine
	cfg    Config
}

// New builds the gin engine in the fixed middleware order of spec §4.Q and
// registers every route: discovery, the per-rail facilitator surface, and
// one route per catalogued service.
func New(cfg Config) *Server {
	if cfg.MaxTimeoutSeconds <= 0 {
		cfg.MaxTimeoutSeconds = 60
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.Log.GetLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.Recovery(cfg.Log),
		middleware.BodySizeLimit(),
		corsMiddleware(),
		middleware.RequestID(),
		middleware.RateLimit(middleware.NewTieredRateLimiter(), classifyTier(cfg.Registry), middleware.DefaultClientKey),
		middleware.Timeout(),
	)

	s := &Server{Engine: engine, cfg: cfg}
	s.registerDiscovery()
	s.registerFacilitatorSurface()
	s.registerPaidRoutes()
	return s
}

func corsMiddleware() gin.HandlerFunc {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AllowHeaders = append(c.AllowHeaders, "X-Payment", "Payment-Signature", middleware.DevBypassHeader, middleware.RequestIDHeader)
	c.ExposeHeaders = append(c.ExposeHeaders, x402proto.HeaderName, "X-Payment-Response", middleware.RequestIDHeader)
	c.MaxAge = 12 * time.Hour
	return cors.New(c)
}

// classifyTier maps a request's matched catalog entry to a rate-limit tier
// (spec §4.N): unmatched/free routes get TierFree, catalogued routes tagged
// "expensive" get TierExpensive, every other paid route gets TierPaid.
func classifyTier(registry *catalog.Registry) middleware.ClassifyFunc {
	return func(c *gin.Context) middleware.Tier {
		svc, ok := registry.Match(c.Request.Method, c.Request.URL.Path)
		if !ok {
			return middleware.TierFree
		}
		middleware.SetMatchedService(c, svc)
		if svc.Category == "expensive" {
			return middleware.TierExpensive
		}
		return middleware.TierPaid
	}
}
