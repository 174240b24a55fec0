// Command gateway runs the x402 monetizing reverse proxy: it loads the
// service catalog, opens the ledger, wires the three settlement rails, and
// serves the assembled gin pipeline (spec §4.Q).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/chains"
	"github.com/agentc22/x402-engine/internal/config"
	"github.com/agentc22/x402-engine/internal/creds"
	"github.com/agentc22/x402-engine/internal/facilitator"
	"github.com/agentc22/x402-engine/internal/ledger"
	"github.com/agentc22/x402-engine/internal/logging"
	"github.com/agentc22/x402-engine/internal/middleware"
	"github.com/agentc22/x402-engine/internal/onchain"
	"github.com/agentc22/x402-engine/internal/server"
	"github.com/agentc22/x402-engine/internal/ttlcache"
	"github.com/agentc22/x402-engine/internal/upstream"
)

// version is the build-time service version embedded in the
// .well-known/x402.json manifest; overridden via -ldflags in release
// builds.
var version = "dev"

const cleanupInterval = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	log := logging.New("x402-engine", cfg != nil && cfg.Debug)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	chains.ConfigureFast(cfg.FastRailRPCURL, cfg.FastRailContractAddress)

	for caip2, recipient := range map[string]string{
		chains.NetworkFast:  cfg.FastRecipient,
		chains.NetworkSlowA: cfg.SlowARecipient,
		chains.NetworkSlowB: cfg.SlowBRecipient,
	} {
		if err := chains.ValidateRecipient(caip2, recipient); err != nil {
			log.Fatal().Err(err).Str("network", caip2).Msg("invalid recipient address")
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	l, err := ledger.Open(db, ledger.PoolConfig{
		MaxOpenConns: cfg.PoolMaxOpenConns,
		MaxIdleConns: cfg.PoolMaxIdleConns,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ledger")
	}

	catalogFile, err := os.Open(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open service catalog")
	}
	registry, err := catalog.Load(catalogFile)
	catalogFile.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load service catalog")
	}

	verifier, err := onchain.NewVerifier(cfg.FastRailRPCURL, cfg.FastRailContractAddress, chains.NetworkFast, l)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to fast rail RPC")
	}
	fastRail := facilitator.NewFastRail(verifier)

	slowA := &facilitator.External{
		BaseURL:       cfg.FacilitatorURL,
		Authorization: cfg.FacilitatorAuth,
	}
	slowBURL := cfg.FacilitatorBURL
	if slowBURL == "" {
		slowBURL = cfg.FacilitatorURL
	}
	slowB := &facilitator.External{
		BaseURL:       slowBURL,
		Authorization: cfg.FacilitatorBAuth,
	}

	pool := creds.NewPool()
	for tag, secrets := range cfg.ProviderSecrets {
		pool.Register(tag, secrets)
	}

	dispatcher := upstream.NewDispatcher(ttlcache.New(), pool, l, upstream.Config{
		UploadConcurrency: cfg.UploadConcurrency,
	})

	srv := server.New(server.Config{
		Registry:   registry,
		Ledger:     l,
		Dispatcher: dispatcher,
		Handlers:   server.HandlerRegistry{},
		FastRail:   fastRail,
		Facilitators: middleware.FacilitatorSet{
			SlowA: slowA,
			SlowB: slowB,
		},
		Recipients: server.Recipients{
			Fast:  cfg.FastRecipient,
			SlowA: cfg.SlowARecipient,
			SlowB: cfg.SlowBRecipient,
		},
		MaxTimeoutSeconds: 60,
		ExternalURL:       cfg.ExternalURL,
		DevBypassEnabled:  cfg.DevBypassEnabled,
		DevBypassSecret:   cfg.DevBypassSecret,
		Version:           version,
		Log:               log,
	})

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: srv.Engine,
	}

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go runCleanupLoop(cleanupCtx, l, time.Duration(cfg.RequestLogRetain)*24*time.Hour, log)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("gateway listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	stopCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := l.Close(); err != nil {
		log.Error().Err(err).Msg("ledger close failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("database pool close failed")
		}
	}
}

// runCleanupLoop periodically prunes request-log entries older than the
// configured retention window (spec §5 resource hygiene), stopping when
// ctx is cancelled during shutdown.
func runCleanupLoop(ctx context.Context, l *ledger.Ledger, retention time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.CleanupOldRequests(ctx, retention)
			if err != nil {
				log.Error().Err(err).Msg("request log cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("pruned old request log entries")
			}
		}
	}
}
