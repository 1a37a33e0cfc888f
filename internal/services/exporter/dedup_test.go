package exporter

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/models"
)

func record(fields map[string]any) *models.ExtractedRecord {
	return models.NewExtractedRecord("sess_1", "https://example.com", fields)
}

func TestDedupeByKeyKeepsFirst(t *testing.T) {
	records := []*models.ExtractedRecord{
		record(map[string]any{"url": "https://example.com/a", "price": "9.99"}),
		record(map[string]any{"url": "https://example.com/a", "price": "10.99"}),
		record(map[string]any{"url": "https://example.com/b", "price": "19.99"}),
	}

	out := dedupeByKey(records)
	require.Len(t, out, 2)
	assert.Equal(t, "9.99", out[0].Fields["price"])
	assert.Equal(t, "19.99", out[1].Fields["price"])
}

func TestDedupeByKeyHonorsPriority(t *testing.T) {
	// Same name, different URL: url outranks name so both survive.
	records := []*models.ExtractedRecord{
		record(map[string]any{"url": "https://example.com/a", "name": "Widget"}),
		record(map[string]any{"url": "https://example.com/b", "name": "Widget"}),
	}
	assert.Len(t, dedupeByKey(records), 2)

	// Without a stronger key the shared name collapses them.
	records = []*models.ExtractedRecord{
		record(map[string]any{"name": "Widget"}),
		record(map[string]any{"name": "widget"}),
	}
	assert.Len(t, dedupeByKey(records), 1)
}

func TestDedupeByKeyKeepsUnidentifiedRecords(t *testing.T) {
	records := []*models.ExtractedRecord{
		record(map[string]any{"headline": "First"}),
		record(map[string]any{"headline": "First"}),
	}
	assert.Len(t, dedupeByKey(records), 2)
}

func enableSemantic(cfg *common.ExportConfig) {
	cfg.SemanticDedup = true
}

func TestEmbeddingTextOrdersFieldsAndSkipsMetadata(t *testing.T) {
	text := embeddingText(map[string]any{
		"price":     9.99,
		"name":      "Widget",
		"_metadata": map[string]any{"screenshot_path": "x.png"},
		"notes":     nil,
	})
	assert.Equal(t, "Widget 9.99", text)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestDedupeSemanticGreedyKeepFirst(t *testing.T) {
	svc, _, embedder, _ := newTestService(t, enableSemantic)
	embedder.vectors = [][]float32{
		{1, 0},
		{1, 0.01}, // near duplicate of the first
		{0, 1},
	}

	records := []*models.ExtractedRecord{
		record(map[string]any{"headline": "Widget sale"}),
		record(map[string]any{"headline": "Widget sale!"}),
		record(map[string]any{"headline": "Gadget recall"}),
	}

	out := svc.dedupe(context.Background(), records)
	require.Len(t, out, 2)
	assert.Equal(t, "Widget sale", out[0].Fields["headline"])
	assert.Equal(t, "Gadget recall", out[1].Fields["headline"])
}

func TestDedupeSemanticDegradesOnEmbedderError(t *testing.T) {
	svc, _, embedder, _ := newTestService(t, enableSemantic)
	embedder.err = fmt.Errorf("quota exhausted")

	records := []*models.ExtractedRecord{
		record(map[string]any{"headline": "a"}),
		record(map[string]any{"headline": "b"}),
	}

	out := svc.dedupe(context.Background(), records)
	assert.Len(t, out, 2)
}

func TestDedupeSemanticDegradesOnCountMismatch(t *testing.T) {
	svc, _, embedder, _ := newTestService(t, enableSemantic)
	embedder.vectors = [][]float32{{1, 0}} // one vector for two records

	records := []*models.ExtractedRecord{
		record(map[string]any{"headline": "a"}),
		record(map[string]any{"headline": "b"}),
	}

	out := svc.dedupe(context.Background(), records)
	assert.Len(t, out, 2)
}

func TestDedupeSkipsEmbedderForSingleRecord(t *testing.T) {
	svc, _, embedder, _ := newTestService(t, enableSemantic)

	out := svc.dedupe(context.Background(), []*models.ExtractedRecord{
		record(map[string]any{"headline": "a"}),
	})
	assert.Len(t, out, 1)
	assert.Equal(t, 0, embedder.calls)
}
