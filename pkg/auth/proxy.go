package auth

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies lists the networks whose X-Forwarded-For and X-Real-IP headers are believed.
// The zero value trusts nobody and every request is attributed to its direct peer.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies parses CIDRs or bare IP addresses
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var proxies TrustedProxies
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}

		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		proxies = append(proxies, network)
	}
	return proxies, nil
}

// Trusts reports whether addr belongs to a trusted proxy network
func (tp TrustedProxies) Trusts(addr string) bool {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return false
	}
	for _, network := range tp {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the client address of r. Forwarding headers are only consulted when the
// direct peer is trusted; X-Forwarded-For is walked from the right, skipping trusted hops.
func (tp TrustedProxies) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !tp.Trusts(peer) {
		return peer
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !tp.Trusts(hop) {
				return hop
			}
		}
		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
