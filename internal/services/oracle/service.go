package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/services/transform"
)

// Per-operation snippet limits, applied after the global max_oracle_chars
// cap. Relevance sees the most content because it drives navigation;
// titles need only the opening of the page.
const (
	relevanceSnippetLimit  = 5000
	extractionSnippetLimit = 10000
	titleSnippetLimit      = 1000
	candidateLinkLimit     = 30
)

// Service is the content oracle. It owns prompt construction, content
// truncation, response parsing, and provider throttling; the provider
// only moves prompts and bytes over the wire.
type Service struct {
	provider  provider
	transform *transform.Service
	throttle  *rate.Limiter
	maxChars  int
	logger    arbor.ILogger
}

var (
	_ interfaces.ContentOracle   = (*Service)(nil)
	_ interfaces.EmbeddingOracle = (*Service)(nil)
)

// NewService builds the oracle for the configured provider.
func NewService(cfg *common.Config, logger arbor.ILogger) (*Service, error) {
	var (
		prov      provider
		rateLimit string
		err       error
	)

	switch cfg.Oracle.Provider {
	case common.OracleProviderGemini:
		prov, err = newGeminiProvider(&cfg.Gemini, logger)
		rateLimit = cfg.Gemini.RateLimit
	case common.OracleProviderClaude:
		prov, err = newClaudeProvider(&cfg.Claude, logger)
		rateLimit = cfg.Claude.RateLimit
	default:
		return nil, fmt.Errorf("unknown oracle provider: %s", cfg.Oracle.Provider)
	}
	if err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(rateLimit)
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("invalid %s rate limit %q", prov.Name(), rateLimit)
	}

	logger.Info().
		Str("provider", prov.Name()).
		Str("rate_limit", rateLimit).
		Int("max_chars", cfg.Crawler.MaxOracleChars).
		Msg("Content oracle initialized")

	return &Service{
		provider:  prov,
		transform: transform.NewService(logger),
		throttle:  rate.NewLimiter(rate.Every(interval), 1),
		maxChars:  cfg.Crawler.MaxOracleChars,
		logger:    logger,
	}, nil
}

// ProviderName reports which backend is answering oracle calls.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// GenerateSchema asks the provider to design the record shape for the
// objective. Failures propagate: a session cannot run without a schema.
func (s *Service) GenerateSchema(ctx context.Context, objective string) (string, error) {
	raw, err := s.complete(ctx, schemaPrompt(objective), nil)
	if err != nil {
		return "", fmt.Errorf("schema generation failed: %w", err)
	}

	schema := CleanJSONResponse(raw)
	if schema == "" {
		return "", fmt.Errorf("schema generation returned no JSON")
	}

	s.logger.Info().Int("schema_chars", len(schema)).Msg("Record schema generated")
	return schema, nil
}

// ScoreRelevance judges one page against the objective and proposes up to
// five follow-up URLs. Provider and parse failures degrade to a negative
// verdict so one bad response never kills the session.
func (s *Service) ScoreRelevance(ctx context.Context, objective, content, pageURL string) (*interfaces.RelevanceResult, error) {
	var candidates []string
	if s.transform.IsHTML(content) {
		candidates = extractCandidateLinks(content, pageURL, candidateLinkLimit)
		content = s.transform.HTMLToMarkdown(content, pageURL)
	}
	snippet := s.snippet(content, relevanceSnippetLimit)

	raw, err := s.complete(ctx, relevancePrompt(objective, pageURL, snippet, candidates), nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Relevance call failed, treating page as irrelevant")
		return &interfaces.RelevanceResult{Relevant: false, Reason: "Error", NextURLs: []string{}}, nil
	}

	payload, err := parseRelevance(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Unparseable relevance response, treating page as irrelevant")
		return &interfaces.RelevanceResult{Relevant: false, Reason: "Error", NextURLs: []string{}}, nil
	}

	return &interfaces.RelevanceResult{
		Relevant: payload.IsRelevant,
		Reason:   payload.Reason,
		NextURLs: sanitizeNextURLs(payload.NextURLs, pageURL, 5),
	}, nil
}

// Extract pulls schema-shaped records out of page content. The screenshot,
// when present, lets the provider disambiguate cluttered layouts. Failures
// degrade to an empty batch.
func (s *Service) Extract(ctx context.Context, content, schema string, screenshot []byte) ([]map[string]interface{}, error) {
	if s.transform.IsHTML(content) {
		content = s.transform.HTMLToMarkdown(content, "")
	}
	snippet := s.snippet(content, extractionSnippetLimit)

	raw, err := s.complete(ctx, extractionPrompt(schema, snippet), screenshot)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().Err(err).Msg("Extraction call failed, returning no records")
		return []map[string]interface{}{}, nil
	}

	records, err := parseRecords(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Unparseable extraction response, returning no records")
		return []map[string]interface{}{}, nil
	}

	return records, nil
}

// GenerateTitle names the session from its first relevant page. Any failure
// falls back to a fixed placeholder.
func (s *Service) GenerateTitle(ctx context.Context, objective, content string) (string, error) {
	if s.transform.IsHTML(content) {
		content = s.transform.HTMLToMarkdown(content, "")
	}
	snippet := s.snippet(content, titleSnippetLimit)

	raw, err := s.complete(ctx, titlePrompt(objective, snippet), nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn().Err(err).Msg("Title generation failed, using placeholder")
		return "Untitled Session", nil
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	if title == "" {
		return "Untitled Session", nil
	}
	return title, nil
}

// EmbedTexts returns one embedding per input text.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := s.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	return s.provider.Embed(ctx, texts)
}

// complete throttles and delegates one completion to the provider.
func (s *Service) complete(ctx context.Context, prompt string, screenshot []byte) (string, error) {
	if err := s.throttle.Wait(ctx); err != nil {
		return "", err
	}
	return s.provider.Complete(ctx, prompt, screenshot)
}

// snippet applies the global cap, then the per-operation limit. Cuts land
// on rune boundaries so a truncated page never sends a partial UTF-8
// sequence into a prompt.
func (s *Service) snippet(content string, limit int) string {
	if s.maxChars > 0 && len(content) > s.maxChars {
		content = cutAtRune(content, s.maxChars)
	}
	if limit > 0 && len(content) > limit {
		content = cutAtRune(content, limit)
	}
	return content
}

// cutAtRune truncates s to at most n bytes without splitting a rune.
func cutAtRune(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
