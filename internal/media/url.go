package media

import (
	"net/url"
	"regexp"
	"strings"
)

type Platform string

const (
	YouTube   Platform = "youtube"
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	Twitter   Platform = "twitter"
	Unknown   Platform = "unknown"
)

// SupportedDomains maps every accepted host to the platform serving it.
var SupportedDomains = map[string]Platform{
	"youtube.com":   YouTube,
	"youtu.be":      YouTube,
	"facebook.com":  Facebook,
	"fb.watch":      Facebook,
	"instagram.com": Instagram,
	"twitter.com":   Twitter,
	"x.com":         Twitter,
}

var (
	reHTTP = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"]+`)
	reBare = regexp.MustCompile(`(?i)\b(?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[^\s<>"]*)?`)
)

// ExtractURL returns the first link in a chat message. Explicit http(s)
// links win; otherwise a bare "youtu.be/abc" style token is accepted when it
// names a supported host, and gets an https scheme.
func ExtractURL(text string) (string, bool) {
	if m := reHTTP.FindString(text); m != "" {
		return trimPunct(m), true
	}
	for _, m := range reBare.FindAllString(text, -1) {
		candidate := "https://" + trimPunct(m)
		if IsSupported(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// IsSupported reports whether raw is an http(s) URL on a supported host or
// one of its subdomains.
func IsSupported(raw string) bool {
	return PlatformOf(raw) != Unknown
}

func PlatformOf(raw string) Platform {
	host, ok := hostOf(raw)
	if !ok {
		return Unknown
	}
	for domain, p := range SupportedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return p
		}
	}
	return Unknown
}

// Names lists the platforms for user-facing text, in a fixed order.
func Names() []string {
	return []string{"YouTube", "Facebook", "Instagram", "Twitter/X"}
}

func hostOf(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	for _, p := range []string{"www.", "m.", "mobile."} {
		host = strings.TrimPrefix(host, p)
	}
	return host, true
}

func trimPunct(s string) string {
	return strings.TrimRight(s, ".,;:!?)]}'")
}
