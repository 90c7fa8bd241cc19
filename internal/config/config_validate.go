// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package config

import (
	"fmt"
	"strings"
)

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

// Validate checks the loaded configuration for internal consistency.
// It is called by Load; call it directly only on hand-built configs.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateKafka,
		c.validateClickHouse,
		c.validateBuffer,
		c.validateBreaker,
		c.validateValidation,
		c.validateRateLimit,
		c.validateLogging,
		c.validateTenants,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("server.environment must be development, staging, or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateKafka() error {
	for _, b := range c.Kafka.Brokers {
		if !strings.Contains(b, ":") {
			return fmt.Errorf("kafka.brokers entry %q must be host:port", b)
		}
	}
	if c.Kafka.Enabled() {
		if c.Kafka.PublishTimeout <= 0 {
			return fmt.Errorf("kafka.publish_timeout must be positive, got %s", c.Kafka.PublishTimeout)
		}
		if c.Kafka.MaxInFlight < 1 {
			return fmt.Errorf("kafka.max_in_flight must be at least 1, got %d", c.Kafka.MaxInFlight)
		}
		if c.Kafka.ReconnectCooldown < 0 {
			return fmt.Errorf("kafka.reconnect_cooldown must not be negative, got %s", c.Kafka.ReconnectCooldown)
		}
	}
	return nil
}

func (c *Config) validateClickHouse() error {
	if len(c.ClickHouse.Addr) == 0 {
		return fmt.Errorf("clickhouse.addr must not be empty")
	}
	for _, a := range c.ClickHouse.Addr {
		if !strings.Contains(a, ":") {
			return fmt.Errorf("clickhouse.addr entry %q must be host:port", a)
		}
	}
	if c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database must not be empty")
	}
	return nil
}

func (c *Config) validateBuffer() error {
	if c.Buffer.FlushInterval <= 0 {
		return fmt.Errorf("buffer.flush_interval must be positive, got %s", c.Buffer.FlushInterval)
	}
	if c.Buffer.SoftLimit < 1 {
		return fmt.Errorf("buffer.soft_limit must be at least 1, got %d", c.Buffer.SoftLimit)
	}
	if c.Buffer.HardLimit < c.Buffer.SoftLimit {
		return fmt.Errorf("buffer.hard_limit (%d) must be at least buffer.soft_limit (%d)", c.Buffer.HardLimit, c.Buffer.SoftLimit)
	}
	if c.Buffer.MaxRetries < 1 {
		return fmt.Errorf("buffer.max_retries must be at least 1, got %d", c.Buffer.MaxRetries)
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be at least 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.Timeout <= 0 {
		return fmt.Errorf("breaker.timeout must be positive, got %s", c.Breaker.Timeout)
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.MaxPayloadBytes < 1 {
		return fmt.Errorf("validation.max_payload_bytes must be at least 1, got %d", c.Validation.MaxPayloadBytes)
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.Disabled {
		return nil
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive, got %g", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be at least 1, got %d", c.RateLimit.Burst)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateTenants() error {
	seen := make(map[string]bool, len(c.Tenants))
	for i, t := range c.Tenants {
		if t.ClientID == "" {
			return fmt.Errorf("tenants[%d].client_id must not be empty", i)
		}
		if seen[t.ClientID] {
			return fmt.Errorf("tenants[%d].client_id %q is duplicated", i, t.ClientID)
		}
		seen[t.ClientID] = true
	}
	return nil
}
