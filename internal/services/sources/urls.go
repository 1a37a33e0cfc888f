package sources

import (
	"net/url"
	"regexp"
	"strings"
)

// urlPattern finds absolute http(s) URLs in plain text or markdown.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// trailingJunk is punctuation that closes a sentence or markdown construct,
// not part of the URL itself.
const trailingJunk = ".,;:!?)]}'\"`"

// extractURLs pulls absolute http(s) URLs out of free text, in order of
// first appearance, deduplicated.
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, match := range matches {
		match = strings.TrimRight(match, trailingJunk)
		parsed, err := url.Parse(match)
		if err != nil || parsed.Host == "" {
			continue
		}
		if seen[match] {
			continue
		}
		seen[match] = true
		urls = append(urls, match)
	}
	return urls
}
