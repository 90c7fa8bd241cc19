// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package config loads and validates application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: override any setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Server.Port, cfg.Kafka.Brokers, etc. are now populated
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import "time"

// Config holds all application configuration loaded from environment
// variables and config files.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	ClickHouse ClickHouseConfig `koanf:"clickhouse"`
	Cache      CacheConfig      `koanf:"cache"`
	Buffer     BufferConfig     `koanf:"buffer"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	Validation ValidationConfig `koanf:"validation"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Geo        GeoConfig        `koanf:"geo"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`

	// Tenants is the static tenant directory. When empty, basket runs in
	// permissive mode: any non-empty client_id is accepted and origin
	// checks are skipped. Config-file only (no env mapping).
	Tenants []TenantConfig `koanf:"tenants"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - PORT: HTTP listen port (default: 4000)
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: read/write timeout (default: 30s)
//   - ENVIRONMENT: "development", "staging", or "production" (default: production).
//     Per-event schema validation is skipped in development mode.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// KafkaConfig holds broker producer settings.
//
// Environment Variables:
//   - KAFKA_BROKERS: comma-separated broker list. Absence disables the
//     broker entirely and forces fallback-only mode (direct store inserts).
//   - KAFKA_CLIENT_ID: producer client id (default: basket)
//   - KAFKA_PUBLISH_TIMEOUT: per-publish deadline (default: 10s)
//   - KAFKA_MAX_IN_FLIGHT: in-flight publish concurrency cap (default: 15)
//   - KAFKA_RECONNECT_COOLDOWN: minimum wait between reconnect attempts
//     after a failure (default: 60s)
//   - KAFKA_ENSURE_TOPICS: create destination topics at startup (default: true)
type KafkaConfig struct {
	Brokers           []string      `koanf:"brokers"`
	ClientID          string        `koanf:"client_id"`
	PublishTimeout    time.Duration `koanf:"publish_timeout"`
	MaxInFlight       int64         `koanf:"max_in_flight"`
	ReconnectCooldown time.Duration `koanf:"reconnect_cooldown"`
	EnsureTopics      bool          `koanf:"ensure_topics"`
}

// Enabled reports whether a broker is configured. With no brokers every
// publish goes straight to the fallback buffer.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ClickHouseConfig holds analytics store settings.
//
// Environment Variables:
//   - CLICKHOUSE_ADDR: comma-separated native-protocol addresses
//     (default: localhost:9000)
//   - CLICKHOUSE_DATABASE: target database (default: analytics)
//   - CLICKHOUSE_USERNAME: username (default: default)
//   - CLICKHOUSE_PASSWORD: password (default: empty)
//   - CLICKHOUSE_DIAL_TIMEOUT: connection dial timeout (default: 10s)
//   - CLICKHOUSE_SKIP_MIGRATE: skip CREATE TABLE bootstrap (default: false)
type ClickHouseConfig struct {
	Addr        []string      `koanf:"addr"`
	Database    string        `koanf:"database"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	SkipMigrate bool          `koanf:"skip_migrate"`
}

// CacheConfig holds shared-cache settings for the daily salt and the
// dedup window.
//
// Environment Variables:
//   - REDIS_URL: Redis connection URL (e.g. redis://localhost:6379/0).
//     Absence selects the in-process cache: correct for a single replica,
//     no cross-replica dedup agreement.
type CacheConfig struct {
	RedisURL string `koanf:"redis_url"`
}

// BufferConfig holds fallback-buffer settings. The defaults match
// production; tests lower the limits to exercise overflow behavior.
//
// Environment Variables:
//   - BUFFER_FLUSH_INTERVAL: periodic flush interval (default: 5s)
//   - BUFFER_SOFT_LIMIT: queue size that triggers an immediate flush (default: 1000)
//   - BUFFER_HARD_LIMIT: queue size above which events are dropped (default: 10000)
//   - BUFFER_MAX_RETRIES: per-item insert retry cap (default: 3)
type BufferConfig struct {
	FlushInterval time.Duration `koanf:"flush_interval"`
	SoftLimit     int           `koanf:"soft_limit"`
	HardLimit     int           `koanf:"hard_limit"`
	MaxRetries    int           `koanf:"max_retries"`
}

// BreakerConfig holds circuit-breaker settings for the broker publish path.
//
// Environment Variables:
//   - BREAKER_FAILURE_THRESHOLD: consecutive failures before the breaker
//     opens (default: 5)
//   - BREAKER_TIMEOUT: open-state duration before a half-open probe
//     (default: 5s)
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	Timeout          time.Duration `koanf:"timeout"`
}

// ValidationConfig holds payload validation settings.
//
// Environment Variables:
//   - MAX_PAYLOAD_BYTES: maximum request body size in bytes (default: 1048576)
type ValidationConfig struct {
	MaxPayloadBytes int64 `koanf:"max_payload_bytes"`
}

// RateLimitConfig holds the per-tenant rate oracle settings. Denials are
// reported in the response body, never as an HTTP error status.
//
// Environment Variables:
//   - RATE_LIMIT_RPS: sustained requests/second per tenant (default: 1000)
//   - RATE_LIMIT_BURST: burst allowance per tenant (default: 2000)
//   - RATE_LIMIT_DISABLED: disable the oracle entirely (default: false)
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
	Disabled          bool    `koanf:"disabled"`
}

// GeoConfig holds GeoIP enrichment settings.
//
// Environment Variables:
//   - GEOIP_CITY_DB: path to a MaxMind City mmdb file. Absence disables
//     geo lookups; records carry empty country/region/city.
type GeoConfig struct {
	CityDBPath string `koanf:"city_db_path"`
}

// SecurityConfig holds HTTP edge settings.
//
// Environment Variables:
//   - CORS_ORIGINS: comma-separated allowed origins (default: *). The
//     intake echoes the request origin; this list gates echoing.
//   - TRUSTED_PROXIES: comma-separated proxy addresses whose forwarding
//     headers are honored for client IP resolution
type SecurityConfig struct {
	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// TenantConfig describes one entry of the static tenant directory.
type TenantConfig struct {
	ClientID string `koanf:"client_id"`
	Name     string `koanf:"name"`
	Active   bool   `koanf:"active"`
	// AllowedOrigins gates the Origin header for this tenant. Supports
	// exact origins, "*", and "*.domain" wildcards. Empty means any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// DevelopmentMode reports whether the server runs in development mode.
// Schema validation is relaxed in development.
func (c *Config) DevelopmentMode() bool {
	return c.Server.Environment == "development"
}

// Load reads configuration from environment variables and an optional
// config file. Later sources override earlier ones:
//  1. Built-in defaults
//  2. Config file (config.yaml if present, or CONFIG_PATH)
//  3. Environment variables
func Load() (*Config, error) {
	return LoadWithKoanf()
}
