// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package enrich

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/metrics"
)

// GeoInfo is the location block of an enrichment. AnonymizedIP is the
// truncated network form, the only IP shape that leaves this package.
type GeoInfo struct {
	AnonymizedIP string
	Country      string
	Region       string
	City         string
}

// GeoProvider looks up coarse location for an already-truncated IP.
type GeoProvider interface {
	Lookup(ip net.IP) (country, region, city string, err error)
	Close() error
}

// maxmindProvider reads a local GeoLite2/GeoIP2 City database.
type maxmindProvider struct {
	reader *geoip2.Reader
}

// OpenGeoDatabase opens a MaxMind City database file.
func OpenGeoDatabase(path string) (GeoProvider, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geo database %s: %w", path, err)
	}
	return &maxmindProvider{reader: reader}, nil
}

func (p *maxmindProvider) Lookup(ip net.IP) (string, string, string, error) {
	record, err := p.reader.City(ip)
	if err != nil {
		return "", "", "", err
	}

	country := record.Country.Names["en"]
	var region string
	if len(record.Subdivisions) > 0 {
		region = record.Subdivisions[0].Names["en"]
	}
	city := record.City.Names["en"]
	return country, region, city, nil
}

func (p *maxmindProvider) Close() error {
	return p.reader.Close()
}

// Geo anonymizes an address and resolves its location. The input may
// carry a port (http RemoteAddr form). Unparseable input yields an
// empty GeoInfo; private, loopback, and link-local ranges skip the
// lookup but still report the truncated form.
func (e *Enricher) Geo(remoteAddr string) GeoInfo {
	ip := net.ParseIP(stripPort(remoteAddr))
	if ip == nil {
		return GeoInfo{}
	}

	truncated := TruncateIP(ip)
	info := GeoInfo{AnonymizedIP: truncated.String()}

	if e.geo == nil || !routable(ip) {
		return info
	}

	country, region, city, err := e.geo.Lookup(truncated)
	if err != nil {
		metrics.GeoLookupsTotal.WithLabelValues("error").Inc()
		logging.Debug().Err(err).Msg("geo lookup failed")
		return info
	}

	if country == "" && region == "" && city == "" {
		metrics.GeoLookupsTotal.WithLabelValues("miss").Inc()
		return info
	}
	metrics.GeoLookupsTotal.WithLabelValues("hit").Inc()

	info.Country = country
	info.Region = region
	info.City = city
	return info
}

// TruncateIP masks an address to its /24 (IPv4) or /48 (IPv6) network.
func TruncateIP(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32))
	}
	return ip.Mask(net.CIDRMask(48, 128))
}

// routable reports whether an address can meaningfully be geolocated.
func routable(ip net.IP) bool {
	return !(ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified())
}

// stripPort normalizes "ip:port" and "[ip]:port" remote-addr forms to
// the bare address.
func stripPort(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
