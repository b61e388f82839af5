package pagewalk

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ResolveURL resolves href against base and returns an absolute URL without
// its fragment. It returns "" when either side cannot be parsed.
func ResolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u := b.ResolveReference(ref)
	u.Fragment = ""
	return u.String()
}

// SameSite reports whether a and b share a registrable domain (eTLD+1).
// Paginated listings frequently hop between subdomains of one site
// (www./m./search.), which a strict same-origin check would reject.
func SameSite(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	ha, hb := strings.ToLower(ua.Hostname()), strings.ToLower(ub.Hostname())
	if ha == "" || hb == "" {
		return false
	}
	if ha == hb {
		return true
	}
	sa, err := publicsuffix.EffectiveTLDPlusOne(ha)
	if err != nil {
		return false
	}
	sb, err := publicsuffix.EffectiveTLDPlusOne(hb)
	if err != nil {
		return false
	}
	return sa == sb
}

// CanonicalURL normalizes a URL for visited-set membership: lower-cased
// scheme and host, default ports and fragments dropped, empty path as "/".
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPort(scheme) {
		host += ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	key := scheme + "://" + host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
