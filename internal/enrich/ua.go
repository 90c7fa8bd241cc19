// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package enrich

import (
	"strings"

	"github.com/mileusna/useragent"

	"github.com/databuddy-analytics/basket/internal/metrics"
)

// UAInfo is the device block of an enrichment. Unrecognized input
// leaves every field empty.
type UAInfo struct {
	BrowserName    string
	BrowserVersion string
	OSName         string
	OSVersion      string
	DeviceType     string
	DeviceBrand    string
	DeviceModel    string
}

// ParseUA parses a User-Agent header. Pure and deterministic; results
// are memoized since a few browser builds dominate any traffic window.
func (e *Enricher) ParseUA(userAgent string) UAInfo {
	if userAgent == "" {
		return UAInfo{}
	}

	if cached, ok := e.ua.Get(userAgent); ok {
		metrics.RecordCacheHit("ua_parse")
		if info, ok := cached.(UAInfo); ok {
			return info
		}
	}
	metrics.RecordCacheMiss("ua_parse")

	info := parseUA(userAgent)
	e.ua.Add(userAgent, info)
	return info
}

func parseUA(userAgent string) UAInfo {
	ua := useragent.Parse(userAgent)

	return UAInfo{
		BrowserName:    ua.Name,
		BrowserVersion: ua.Version,
		OSName:         ua.OS,
		OSVersion:      ua.OSVersion,
		DeviceType:     deviceType(ua),
		DeviceBrand:    deviceBrand(ua.Device),
		DeviceModel:    ua.Device,
	}
}

func deviceType(ua useragent.UserAgent) string {
	switch {
	case ua.Mobile:
		return "mobile"
	case ua.Tablet:
		return "tablet"
	case ua.Desktop:
		return "desktop"
	case ua.Bot:
		return "bot"
	default:
		return ""
	}
}

// deviceBrand derives the vendor from the device model string. The
// parser reports models ("iPhone", "Samsung Galaxy S10") without a
// separate vendor field.
func deviceBrand(device string) string {
	d := strings.ToLower(device)
	switch {
	case d == "":
		return ""
	case strings.Contains(d, "iphone"), strings.Contains(d, "ipad"),
		strings.Contains(d, "ipod"), strings.Contains(d, "mac"):
		return "Apple"
	case strings.Contains(d, "samsung"), strings.Contains(d, "galaxy"):
		return "Samsung"
	case strings.Contains(d, "pixel"):
		return "Google"
	case strings.Contains(d, "huawei"):
		return "Huawei"
	case strings.Contains(d, "xiaomi"), strings.Contains(d, "redmi"):
		return "Xiaomi"
	case strings.Contains(d, "oneplus"):
		return "OnePlus"
	case strings.Contains(d, "motorola"), strings.Contains(d, "moto "):
		return "Motorola"
	case strings.Contains(d, "nokia"):
		return "Nokia"
	default:
		return ""
	}
}
