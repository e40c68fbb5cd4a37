package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// The fetcher only ever visits URLs that arrived from a search provider, but
// those are still attacker-influenced. Candidates are screened twice: once on
// the URL before a request is built, and again at dial time after DNS
// resolution, so a public hostname cannot be pointed at an internal address.

var errURLBlocked = errors.New("url is not fetchable")

var blockedNets = mustParsePrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::/128",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
)

func mustParsePrefixes(raw ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(raw))
	for _, p := range raw {
		out = append(out, netip.MustParsePrefix(p))
	}
	return out
}

func validateFetchURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	switch {
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		return nil, fmt.Errorf("%w: scheme %q", errURLBlocked, parsed.Scheme)
	case parsed.Hostname() == "":
		return nil, fmt.Errorf("%w: missing host", errURLBlocked)
	}
	if port := parsed.Port(); port != "" && port != "80" && port != "443" {
		return nil, fmt.Errorf("%w: port %s", errURLBlocked, port)
	}
	if reason := hostBlockReason(parsed.Hostname()); reason != "" {
		return nil, fmt.Errorf("%w: %s", errURLBlocked, reason)
	}
	return parsed, nil
}

// hostBlockReason reports why a hostname must not be fetched, or "" when it
// looks routable. Non-IP hostnames are re-checked after resolution.
func hostBlockReason(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if host == "" {
		return "empty hostname"
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return "localhost"
	}
	for _, suffix := range []string{".local", ".internal", ".lan", ".home.arpa"} {
		if strings.HasSuffix(host, suffix) {
			return "internal hostname"
		}
	}
	if addr, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil && isPrivateIP(addr) {
		return "non-routable address"
	}
	return ""
}

func isPrivateIP(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	addr = addr.Unmap()
	for _, prefix := range blockedNets {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// secureDialContext wraps a dialer so every connection re-validates the
// resolved addresses, catching DNS rebinding between URL check and dial.
func secureDialContext(base *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	if base == nil {
		base = &net.Dialer{}
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			host = address
		}
		if reason := hostBlockReason(host); reason != "" {
			return nil, fmt.Errorf("%w: %s", errURLBlocked, reason)
		}

		ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("%w: host %q did not resolve", errURLBlocked, host)
		}
		for _, addr := range ips {
			if isPrivateIP(addr) {
				return nil, fmt.Errorf("%w: %q resolves to a non-routable address", errURLBlocked, host)
			}
		}
		return base.DialContext(ctx, network, address)
	}
}
