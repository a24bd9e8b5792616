// Package safeurl vets audit targets submitted over the API and MCP: only
// http(s) URLs whose host does not resolve to loopback, link-local or
// private ranges are accepted.
package safeurl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ErrSSRF is returned when a URL targets a private or loopback address.
var ErrSSRF = errors.New("safeurl: target is a private or loopback address")

// ErrInvalid is returned for unparsable URLs and URLs without a host.
var ErrInvalid = errors.New("safeurl: invalid URL")

// ErrScheme is returned for anything but http and https.
var ErrScheme = errors.New("safeurl: only http and https targets are allowed")

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Guard validates target URLs.
type Guard struct {
	resolver     Resolver
	allowPrivate bool
}

// New returns a Guard using the default resolver. With allowPrivate only
// the scheme and host checks apply.
func New(allowPrivate bool) *Guard {
	return &Guard{resolver: net.DefaultResolver, allowPrivate: allowPrivate}
}

// WithResolver replaces the resolver.
func (g *Guard) WithResolver(r Resolver) *Guard {
	g.resolver = r
	return g
}

// Check parses raw and rejects unsafe targets. The normalised URL is
// returned on success.
func (g *Guard) Check(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrScheme
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: no host", ErrInvalid)
	}
	if g.allowPrivate {
		return u.String(), nil
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		if private(ip) {
			return "", ErrSSRF
		}
		return u.String(), nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return "", ErrSSRF
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		// Unresolvable hosts fail at navigation anyway.
		return u.String(), nil
	}
	for _, a := range addrs {
		if private(a) {
			return "", ErrSSRF
		}
	}
	return u.String(), nil
}

func private(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
