package exporter

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ternarybob/indago/internal/models"
)

// dedupe applies key-based deduplication, then semantic deduplication when
// enabled and an embedder is wired.
func (s *Service) dedupe(ctx context.Context, records []*models.ExtractedRecord) []*models.ExtractedRecord {
	clean := dedupeByKey(records)
	if !s.cfg.SemanticDedup || s.embedder == nil || len(clean) < 2 {
		return clean
	}
	return s.dedupeSemantic(ctx, clean)
}

// dedupeByKey keeps the first record seen for each unique key. Name keys are
// a weak identity and compare case-insensitively; records with no identifying
// field always survive.
func dedupeByKey(records []*models.ExtractedRecord) []*models.ExtractedRecord {
	seen := make(map[string]bool)
	out := make([]*models.ExtractedRecord, 0, len(records))
	for _, record := range records {
		field, value := record.UniqueKey()
		if field == "" {
			out = append(out, record)
			continue
		}
		if field == "name" {
			value = strings.ToLower(value)
		}
		key := field + ":" + value
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, record)
	}
	return out
}

// dedupeSemantic drops records whose embedding sits above the similarity
// threshold against an already-kept record. Embedding failures degrade to the
// key-deduplicated input rather than failing the finalize.
func (s *Service) dedupeSemantic(ctx context.Context, records []*models.ExtractedRecord) []*models.ExtractedRecord {
	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = embeddingText(record.Fields)
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Embedding failed, skipping semantic deduplication")
		return records
	}
	if len(vectors) != len(records) {
		s.logger.Warn().
			Int("records", len(records)).
			Int("vectors", len(vectors)).
			Msg("Embedding count mismatch, skipping semantic deduplication")
		return records
	}

	kept := make([]*models.ExtractedRecord, 0, len(records))
	var keptVectors [][]float32
	dropped := 0
	for i, record := range records {
		duplicate := false
		for _, vector := range keptVectors {
			if cosineSimilarity(vectors[i], vector) > s.cfg.DedupThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped++
			continue
		}
		kept = append(kept, record)
		keptVectors = append(keptVectors, vectors[i])
	}

	if dropped > 0 {
		s.logger.Info().Int("dropped", dropped).Msg("Semantic deduplication dropped near-duplicates")
	}
	return kept
}

// embeddingText flattens a record into the text that gets embedded: field
// values ordered by field name, metadata and nils excluded.
func embeddingText(fields map[string]any) string {
	names := make([]string, 0, len(fields))
	for name, value := range fields {
		if name == "_metadata" || value == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%v", fields[name]))
	}
	return strings.Join(parts, " ")
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
