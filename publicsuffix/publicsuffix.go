// Package publicsuffix normalizes hosts and URLs to registrable domains
// using the public suffix list from golang.org/x/net.
package publicsuffix

import (
	"net"
	"net/url"
	"strings"

	"github.com/fwojciec/leadscout"
	psl "golang.org/x/net/publicsuffix"
)

// Domain returns the registrable domain (eTLD+1) of a URL or bare host,
// lowercased and without "www." or port. IP addresses and single-label hosts
// such as localhost are returned as-is.
func Domain(raw string) (string, error) {
	host := hostOf(raw)
	if host == "" {
		return "", leadscout.Errorf(leadscout.EINVALID, "no host in %q", raw)
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}
	d, err := psl.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", leadscout.Errorf(leadscout.EINVALID, "no registrable domain in %q", raw)
	}
	return d, nil
}

// SameSite reports whether two URLs or hosts share a registrable domain.
func SameSite(a, b string) bool {
	da, err := Domain(a)
	if err != nil {
		return false
	}
	db, err := Domain(b)
	if err != nil {
		return false
	}
	return da == db
}

// Canonical returns the canonical form of an absolute http(s) URL: lowercase
// scheme and host, no default port, no fragment and no trailing slash.
func Canonical(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", leadscout.Errorf(leadscout.EINVALID, "invalid URL %q", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", leadscout.Errorf(leadscout.EINVALID, "unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return "", leadscout.Errorf(leadscout.EINVALID, "no host in %q", raw)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), nil
}

// Root returns the https root URL of a domain name or URL.
func Root(raw string) string {
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return "https://" + strings.TrimSuffix(strings.ToLower(raw), "/")
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	return strings.TrimPrefix(host, "www.")
}
