package oracle

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCandidateLinks(t *testing.T) {
	html := `<html><body>
		<a href="/products/1">Product one</a>
		<a href="https://other.example.org/page">External</a>
		<a href="/products/1">Duplicate</a>
		<a href="#top">Anchor</a>
		<a href="mailto:sales@example.com">Mail</a>
		<a href="products/2">Relative</a>
	</body></html>`

	links := extractCandidateLinks(html, "https://example.com/catalog/", 10)

	assert.Equal(t, []string{
		"https://example.com/products/1",
		"https://other.example.org/page",
		"https://example.com/catalog/products/2",
	}, links)
}

func TestExtractCandidateLinksHonorsLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, `<a href="/page/%d">p</a>`, i)
	}
	sb.WriteString("</body></html>")

	links := extractCandidateLinks(sb.String(), "https://example.com", 30)
	assert.Len(t, links, 30)
	assert.Equal(t, "https://example.com/page/0", links[0])
}

func TestSanitizeNextURLs(t *testing.T) {
	urls := []string{
		"/next",
		"https://example.com/next",
		"javascript:void(0)",
		"https://example.com/other",
		"",
	}

	cleaned := sanitizeNextURLs(urls, "https://example.com/start", 5)
	assert.Equal(t, []string{
		"https://example.com/next",
		"https://example.com/other",
	}, cleaned)
}

func TestSanitizeNextURLsCapsAtMax(t *testing.T) {
	urls := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g"}

	cleaned := sanitizeNextURLs(urls, "https://example.com", 5)
	assert.Len(t, cleaned, 5)
	assert.Equal(t, "https://example.com/e", cleaned[4])
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "Product Catalog", pageTitle("<html><head><title> Product Catalog </title></head><body></body></html>"))
	assert.Equal(t, "", pageTitle("<html><body>no title</body></html>"))
}
