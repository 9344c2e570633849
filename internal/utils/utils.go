package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ignoredPrefixes carry no fetchable network resource.
var ignoredPrefixes = []string{
	"data:",
	"javascript:",
	"about:",
	"blob:",
	"mailto:",
	"tel:",
	"#",
}

// IsIgnorable reports whether a reference should never be fetched or mapped.
func IsIgnorable(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return true
	}
	for _, p := range ignoredPrefixes {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}
	return false
}

// ResolveReference joins ref against base and drops the fragment. Protocol-relative
// references take the scheme of base.
func ResolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	abs := b.ResolveReference(r)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), nil
}

// IsHTTP reports whether rawURL uses a scheme the downloader can fetch.
func IsHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Shorten trims long URLs for log and console lines.
func Shorten(s string, max int) string {
	if len(s) <= max || max < 4 {
		return s
	}
	return s[:max-3] + "..."
}
