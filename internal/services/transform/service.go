package transform

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
)

// Service converts fetched HTML into markdown before it reaches the oracle.
// Markdown keeps the page structure while cutting most of the token weight.
type Service struct {
	logger arbor.ILogger
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
	entities     = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// HTMLToMarkdown converts HTML to markdown, resolving relative links against
// baseURL. Conversion failures and empty output fall back to tag stripping;
// the caller always gets usable text.
func (s *Service) HTMLToMarkdown(html, baseURL string) string {
	if html == "" {
		return ""
	}

	converter := md.NewConverter(baseURL, true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, stripping tags")
		return stripTags(html)
	}

	if strings.TrimSpace(converted) == "" {
		s.logger.Debug().
			Int("html_length", len(html)).
			Msg("Markdown conversion produced empty output, stripping tags")
		return stripTags(html)
	}
	return converted
}

// IsHTML reports whether content looks like markup. Text extracted from PDFs
// skips conversion entirely.
func (s *Service) IsHTML(content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.Contains(trimmed, "<") && strings.Contains(trimmed, ">")
}

func stripTags(html string) string {
	stripped := tagPattern.ReplaceAllString(html, "")
	stripped = spacePattern.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(entities.Replace(stripped))
}
