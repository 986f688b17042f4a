package netutil

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// localBypassHosts expands the conventional "<local>" bypass entry.
var localBypassHosts = []string{"localhost", "127.0.0.1", "::1"}

// ProxyFunc builds a transport proxy function from a policy string.
//
//	""/"none"  - direct connection
//	"system"   - environment proxy settings (HTTP_PROXY / HTTPS_PROXY / NO_PROXY)
//	otherwise  - fixed proxy URL, optionally "url|bypass1,bypass2"
func ProxyFunc(policy string) func(*http.Request) (*url.URL, error) {
	policy = strings.TrimSpace(policy)
	switch strings.ToLower(policy) {
	case "", "none":
		return nil
	case "system":
		return http.ProxyFromEnvironment
	}

	raw := policy
	var bypass []string
	if i := strings.IndexByte(raw, '|'); i >= 0 {
		for _, b := range strings.Split(raw[i+1:], ",") {
			b = strings.TrimSpace(b)
			if b == "" {
				continue
			}
			if b == "<local>" {
				bypass = append(bypass, localBypassHosts...)
				continue
			}
			bypass = append(bypass, b)
		}
		raw = raw[:i]
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	proxyURL, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return func(r *http.Request) (*url.URL, error) {
		host := r.URL.Hostname()
		for _, b := range bypass {
			if matchBypass(host, b) {
				return nil, nil
			}
		}
		return proxyURL, nil
	}
}

func matchBypass(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)
	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(host, pattern)
	}
	if ip := net.ParseIP(host); ip != nil {
		if _, cidr, err := net.ParseCIDR(pattern); err == nil {
			return cidr.Contains(ip)
		}
	}
	return false
}
