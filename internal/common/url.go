package common

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin returns the scheme+host identity of a URL ("https://example.com"),
// used as the template-group key. Returns "" for unparseable input.
func Origin(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s", parsed.Scheme, strings.ToLower(parsed.Host))
}

// Domain returns the lowercase host of a URL, the rate limiter's keying unit.
// Unparseable URLs share the "" domain so they still pass the global gate.
func Domain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// AbsoluteURL resolves a possibly-relative href against a base URL and keeps
// only http(s) results. Returns "" when the href cannot be used as a crawl
// target (fragments, javascript:, mailto:, malformed input).
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}
