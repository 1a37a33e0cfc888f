package oracle

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/indago/internal/common"
)

// extractCandidateLinks harvests anchor hrefs from HTML, absolutized against
// pageURL, deduplicated in document order, capped at limit. These feed the
// relevance prompt so the model picks from real links instead of inventing
// them.
func extractCandidateLinks(html, pageURL string, limit int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		resolved := common.AbsoluteURL(pageURL, href)
		if resolved == "" || seen[resolved] {
			return true
		}
		seen[resolved] = true
		links = append(links, resolved)
		return limit <= 0 || len(links) < limit
	})
	return links
}

// pageTitle returns the document title, trimmed, or "".
func pageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// sanitizeNextURLs absolutizes and filters the model's chosen links, capping
// at max. Anything that does not resolve to http(s) is dropped.
func sanitizeNextURLs(urls []string, pageURL string, max int) []string {
	seen := make(map[string]bool)
	var cleaned []string
	for _, raw := range urls {
		resolved := common.AbsoluteURL(pageURL, raw)
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		cleaned = append(cleaned, resolved)
		if max > 0 && len(cleaned) >= max {
			break
		}
	}
	return cleaned
}
