// Package config loads the gateway's deployment configuration from the
// environment, grounded on OpenBuilders-giveaway-tool-backend's
// internal/common/config (caarlos0/env struct tags + joho/godotenv).
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the gateway's full runtime configuration, populated from
// environment variables (optionally preloaded from a .env file).
type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`
	Port  int  `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	// Recipients, one pay-to address per rail (spec §6 "Required configuration").
	FastRecipient  string `env:"FAST_RECIPIENT,required"`
	SlowARecipient string `env:"SLOW_A_RECIPIENT,required"`
	SlowBRecipient string `env:"SLOW_B_RECIPIENT,required"`

	// Fast rail settlement.
	FastRailRPCURL          string `env:"FAST_RAIL_RPC_URL,required"`
	FastRailContractAddress string `env:"FAST_RAIL_CONTRACT_ADDRESS,required"`

	// External facilitator serving the two slow rails.
	FacilitatorURL    string `env:"FACILITATOR_URL,required"`
	FacilitatorAuth   string `env:"FACILITATOR_AUTH"`
	FacilitatorBAuth  string `env:"FACILITATOR_B_AUTH"`
	FacilitatorBURL   string `env:"FACILITATOR_B_URL"`
	CatalogPath       string `env:"CATALOG_PATH" envDefault:"catalog.json"`
	ExternalURL       string `env:"EXTERNAL_URL" envDefault:"http://localhost:8080"`
	DevBypassEnabled  bool   `env:"DEV_BYPASS_ENABLED" envDefault:"false"`
	DevBypassSecret   string `env:"DEV_BYPASS_SECRET"`
	UploadConcurrency int    `env:"UPLOAD_CONCURRENCY" envDefault:"5"`
	RequestLogRetain  int    `env:"REQUEST_LOG_RETAIN_DAYS" envDefault:"30"`

	// Provider credential pools: each value is a single secret or a
	// comma-separated list (empty ⇒ that provider's endpoints are
	// unavailable → 502, per spec §6).
	ProviderSecrets map[string][]string `env:"-"`

	PoolMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	PoolMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
}

// Load reads a .env file if present (ignored if absent — production
// environments set variables directly) and parses the environment into a
// Config.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ProviderSecrets = loadProviderSecrets()
	return cfg, nil
}

// providerSecretEnvPrefix is the prefix used for per-provider credential
// environment variables, e.g. PROVIDER_SECRETS_WEATHER=key1,key2.
const providerSecretEnvPrefix = "PROVIDER_SECRETS_"
