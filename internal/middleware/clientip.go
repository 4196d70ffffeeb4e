package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies are the networks whose X-Forwarded-For entries are believed.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts CIDRs and bare addresses.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q is not an ip or cidr", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		out = append(out, network)
	}
	return out, nil
}

func (p TrustedProxies) trusts(ip net.IP) bool {
	for _, network := range p {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address, or when the peer is a trusted proxy the
// right-most X-Forwarded-For hop that is not itself trusted. Entries left of
// that hop are client supplied and ignored.
func (p TrustedProxies) ClientIP(r *http.Request) string {
	remote := remoteHost(r.RemoteAddr)
	ip := net.ParseIP(remote)
	if ip == nil || !p.trusts(ip) {
		return remote
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		hop := net.ParseIP(strings.TrimSpace(hops[i]))
		if hop == nil {
			break
		}
		client = hop.String()
		if !p.trusts(hop) {
			break
		}
	}
	return client
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
