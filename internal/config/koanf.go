// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/basket/config.yaml",
}

// defaultConfig returns built-in defaults as a flat dotted-key map.
// Durations are strings so the same parser handles file and env input.
func defaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"server.port":        4000,
		"server.host":        "0.0.0.0",
		"server.timeout":     "30s",
		"server.environment": "production",

		"kafka.client_id":          "basket",
		"kafka.publish_timeout":    "10s",
		"kafka.max_in_flight":      15,
		"kafka.reconnect_cooldown": "60s",
		"kafka.ensure_topics":      true,

		"clickhouse.addr":         "localhost:9000",
		"clickhouse.database":     "analytics",
		"clickhouse.username":     "default",
		"clickhouse.password":     "",
		"clickhouse.dial_timeout": "10s",
		"clickhouse.skip_migrate": false,

		"cache.redis_url": "",

		"buffer.flush_interval": "5s",
		"buffer.soft_limit":     1000,
		"buffer.hard_limit":     10000,
		"buffer.max_retries":    3,

		"breaker.failure_threshold": 5,
		"breaker.timeout":           "5s",

		"validation.max_payload_bytes": 1048576,

		"rate_limit.requests_per_second": 1000.0,
		"rate_limit.burst":               2000,
		"rate_limit.disabled":            false,

		"geo.city_db_path": "",

		"security.cors_origins":    "*",
		"security.trusted_proxies": "",

		"logging.level":  "info",
		"logging.format": "json",
		"logging.caller": false,
	}
}

// envKeyMap maps environment variable names (lowercased) to config paths.
// Unknown variables are ignored so unrelated environment noise cannot
// leak into the config tree.
var envKeyMap = map[string]string{
	"port":         "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	"kafka_brokers":            "kafka.brokers",
	"kafka_client_id":          "kafka.client_id",
	"kafka_publish_timeout":    "kafka.publish_timeout",
	"kafka_max_in_flight":      "kafka.max_in_flight",
	"kafka_reconnect_cooldown": "kafka.reconnect_cooldown",
	"kafka_ensure_topics":      "kafka.ensure_topics",

	"clickhouse_addr":         "clickhouse.addr",
	"clickhouse_database":     "clickhouse.database",
	"clickhouse_username":     "clickhouse.username",
	"clickhouse_password":     "clickhouse.password",
	"clickhouse_dial_timeout": "clickhouse.dial_timeout",
	"clickhouse_skip_migrate": "clickhouse.skip_migrate",

	"redis_url": "cache.redis_url",

	"buffer_flush_interval": "buffer.flush_interval",
	"buffer_soft_limit":     "buffer.soft_limit",
	"buffer_hard_limit":     "buffer.hard_limit",
	"buffer_max_retries":    "buffer.max_retries",

	"breaker_failure_threshold": "breaker.failure_threshold",
	"breaker_timeout":           "breaker.timeout",

	"max_payload_bytes": "validation.max_payload_bytes",

	"rate_limit_rps":      "rate_limit.requests_per_second",
	"rate_limit_burst":    "rate_limit.burst",
	"rate_limit_disabled": "rate_limit.disabled",

	"geoip_city_db": "geo.city_db_path",

	"cors_origins":    "security.cors_origins",
	"trusted_proxies": "security.trusted_proxies",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// sliceConfigPaths are config paths that accept comma-separated string
// input from env vars and are normalized into []string before unmarshal.
var sliceConfigPaths = []string{
	"kafka.brokers",
	"clickhouse.addr",
	"security.cors_origins",
	"security.trusted_proxies",
}

// LoadWithKoanf loads configuration using layered providers. Later
// layers override earlier ones: defaults, then the config file, then
// environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfig(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	processSliceFields(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// envTransformFunc maps environment variable names to config paths.
// Returning "" drops the variable.
func envTransformFunc(s string) string {
	return envKeyMap[strings.ToLower(s)]
}

// processSliceFields converts comma-separated string values into string
// slices. Env vars always arrive as strings; YAML lists pass through
// untouched. Entries are trimmed and empties dropped, so an empty
// string yields an empty slice rather than [""].
func processSliceFields(k *koanf.Koanf) {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		k.Set(path, parts)
	}
}

// findConfigFile returns the config file path to load, or "" when no
// file is present. CONFIG_PATH takes precedence over the default search
// paths and must exist when set.
func findConfigFile() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
