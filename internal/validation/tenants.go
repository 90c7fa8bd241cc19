// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package validation

import (
	"net"
	"strings"

	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/models"
)

// PolicyError is a request-level denial. It maps to an error result in
// the response body, never to an HTTP error status.
type PolicyError struct {
	Code    string
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

// Tenant is one analytics account authorized to submit events.
type Tenant struct {
	ClientID       string
	Name           string
	Active         bool
	AllowedOrigins []string
}

// OriginAllowed reports whether the request origin passes the tenant's
// allowlist. An empty allowlist accepts any origin, and an absent
// Origin header (server-side SDKs) always passes. Entries may be exact
// origins, "*", or "*.domain" wildcards; hosts are compared with
// scheme and port stripped.
func (t *Tenant) OriginAllowed(origin string) bool {
	if len(t.AllowedOrigins) == 0 || origin == "" {
		return true
	}

	host := originHost(origin)
	for _, allowed := range t.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.HasPrefix(allowed, "*.") {
			// Wildcard covers subdomains only; the apex needs its own entry.
			suffix := strings.ToLower(allowed[1:])
			if strings.HasSuffix(host, suffix) {
				return true
			}
			continue
		}
		if originHost(allowed) == host {
			return true
		}
	}
	return false
}

// originHost lowercases an origin and strips scheme, port, and path.
func originHost(origin string) string {
	s := strings.ToLower(strings.TrimSpace(origin))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return strings.Trim(s, "[]")
}

// TenantDirectory resolves client ids to tenants. With no tenants
// configured the directory is permissive: any non-empty client id
// resolves to a synthetic active tenant with an open origin allowlist,
// which keeps single-tenant deployments zero-config.
type TenantDirectory struct {
	tenants    map[string]*Tenant
	permissive bool
}

// NewTenantDirectory builds a directory from the configured tenant list.
func NewTenantDirectory(cfgs []config.TenantConfig) *TenantDirectory {
	d := &TenantDirectory{
		tenants:    make(map[string]*Tenant, len(cfgs)),
		permissive: len(cfgs) == 0,
	}
	for _, c := range cfgs {
		d.tenants[c.ClientID] = &Tenant{
			ClientID:       c.ClientID,
			Name:           c.Name,
			Active:         c.Active,
			AllowedOrigins: c.AllowedOrigins,
		}
	}
	return d
}

// Lookup resolves a client id. In permissive mode every non-empty id
// resolves.
func (d *TenantDirectory) Lookup(clientID string) (*Tenant, bool) {
	if clientID == "" {
		return nil, false
	}
	if t, ok := d.tenants[clientID]; ok {
		return t, true
	}
	if d.permissive {
		return &Tenant{ClientID: clientID, Active: true}, true
	}
	return nil, false
}

// Authorize runs the request-level tenant checks: the client id must
// resolve, the tenant must be active, and the origin must pass the
// allowlist. Returns nil and the tenant on success.
func (d *TenantDirectory) Authorize(clientID, origin string) (*Tenant, *PolicyError) {
	if clientID == "" {
		return nil, &PolicyError{
			Code:    models.CodeAuthFailed,
			Message: "Missing client_id",
		}
	}
	tenant, ok := d.Lookup(clientID)
	if !ok {
		return nil, &PolicyError{
			Code:    models.CodeAuthFailed,
			Message: "Unknown client_id",
		}
	}
	if !tenant.Active {
		return nil, &PolicyError{
			Code:    models.CodeAuthFailed,
			Message: "Tenant is inactive",
		}
	}
	if !tenant.OriginAllowed(origin) {
		return nil, &PolicyError{
			Code:    models.CodeAuthFailed,
			Message: "Origin not allowed for this tenant",
		}
	}
	return tenant, nil
}
