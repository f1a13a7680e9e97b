package wuapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

const (
	ProxyModeOff    = "off"
	ProxyModeRotate = "rotate"
)

func NormalizeProxyMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ProxyModeOff:
		return ProxyModeOff
	case ProxyModeRotate:
		return ProxyModeRotate
	default:
		return ProxyModeOff
	}
}

func NormalizeProxyList(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, p := range raw {
		v := strings.TrimSpace(p)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ValidateProxyURL rejects proxy values the transport could not dial. Checked
// when a proxy enters the settings, not just at client construction, so a typo
// surfaces at add time instead of mid-scrape.
func ValidateProxyURL(raw string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fmt.Errorf("proxy URL is empty")
	}
	u, err := url.Parse(v)
	if err != nil {
		return fmt.Errorf("invalid proxy %q: %w", v, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid proxy %q: scheme and host are required", v)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "socks5", "socks5h":
		return nil
	default:
		return fmt.Errorf("invalid proxy %q: unsupported scheme %q", v, u.Scheme)
	}
}

// proxyRotation hands proxies out round-robin, one per outgoing request.
type proxyRotation struct {
	mode    string
	proxies []*url.URL
	next    atomic.Uint64
}

func newProxyRotation(mode string, raw []string) (*proxyRotation, error) {
	normMode := NormalizeProxyMode(mode)
	list := NormalizeProxyList(raw)

	if normMode != ProxyModeRotate {
		return &proxyRotation{mode: ProxyModeOff}, nil
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("proxy mode %q requires at least one proxy", ProxyModeRotate)
	}

	proxies := make([]*url.URL, 0, len(list))
	for _, p := range list {
		if err := ValidateProxyURL(p); err != nil {
			return nil, err
		}
		u, _ := url.Parse(p)
		proxies = append(proxies, u)
	}
	return &proxyRotation{mode: ProxyModeRotate, proxies: proxies}, nil
}

func (r *proxyRotation) proxyFunc(_ *http.Request) (*url.URL, error) {
	if r.mode != ProxyModeRotate || len(r.proxies) == 0 {
		return nil, nil
	}
	n := r.next.Add(1)
	return r.proxies[int((n-1)%uint64(len(r.proxies)))], nil
}
