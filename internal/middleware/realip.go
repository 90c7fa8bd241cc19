// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package middleware

import (
	"net"
	"net/http"
	"strings"
)

// RealIP resolves the originating client address from forwarding
// headers and rewrites r.RemoteAddr with it. Geo enrichment and access
// logs downstream then see the client, not the load balancer.
//
// With an empty trusted list every peer's headers are honored, which
// matches the common one-proxy deployment. With a non-empty list only
// connections from the listed proxy addresses may override the peer
// address; headers from anyone else are ignored as spoofable.
func RealIP(trustedProxies []string) func(http.Handler) http.Handler {
	trusted := make(map[string]struct{}, len(trustedProxies))
	for _, p := range trustedProxies {
		if p = strings.TrimSpace(p); p != "" {
			trusted[p] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedIP(r); ip != "" && peerTrusted(r.RemoteAddr, trusted) {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedIP extracts the client address from X-Forwarded-For
// (leftmost entry) or X-Real-IP.
func forwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}

func peerTrusted(remoteAddr string, trusted map[string]struct{}) bool {
	if len(trusted) == 0 {
		return true
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	_, ok := trusted[host]
	return ok
}
