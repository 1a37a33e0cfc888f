package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare object",
			input:    `{"is_relevant": true}`,
			expected: `{"is_relevant": true}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "plain fence",
			input:    "```\n[1, 2]\n```",
			expected: `[1, 2]`,
		},
		{
			name:     "conversational wrapping",
			input:    "Sure, here is the result:\n{\"a\": 1}\nLet me know if you need more.",
			expected: `{"a": 1}`,
		},
		{
			name:     "array before prose brace",
			input:    `The answer is ["x"] as requested}`,
			expected: `["x"] as requested}`,
		},
		{
			name:     "no json at all",
			input:    "I could not find anything.",
			expected: "I could not find anything.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONResponse(tt.input))
		})
	}
}

func TestParseRelevanceJSON(t *testing.T) {
	raw := "```json\n{\"is_relevant\": true, \"reason\": \"Matches objective\", \"next_urls\": [\"https://example.com/a\"]}\n```"

	payload, err := parseRelevance(raw)
	require.NoError(t, err)
	assert.True(t, payload.IsRelevant)
	assert.Equal(t, "Matches objective", payload.Reason)
	assert.Equal(t, []string{"https://example.com/a"}, payload.NextURLs)
}

func TestParseRelevanceYAMLFallback(t *testing.T) {
	raw := "Here you go:\n```yaml\nis_relevant: false\nreason: Navigation page\nnext_urls:\n  - https://example.com/b\n```"

	payload, err := parseRelevance(raw)
	require.NoError(t, err)
	assert.False(t, payload.IsRelevant)
	assert.Equal(t, "Navigation page", payload.Reason)
	assert.Equal(t, []string{"https://example.com/b"}, payload.NextURLs)
}

func TestParseRelevanceGarbage(t *testing.T) {
	_, err := parseRelevance("the page seems fine to me")
	assert.Error(t, err)
}

func TestParseRecordsArray(t *testing.T) {
	raw := `[{"name": "Widget", "price": "9.99"}, {"name": "Gadget", "price": "19.99"}]`

	records, err := parseRecords(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Widget", records[0]["name"])
	assert.Equal(t, "19.99", records[1]["price"])
}

func TestParseRecordsSingleObjectWrapped(t *testing.T) {
	records, err := parseRecords(`{"name": "Widget"}`)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Widget", records[0]["name"])
}

func TestParseRecordsSkipsNonObjectElements(t *testing.T) {
	records, err := parseRecords(`[{"name": "Widget"}, "stray string", 42]`)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Widget", records[0]["name"])
}

func TestParseRecordsYAMLFallback(t *testing.T) {
	raw := "```yaml\n- name: Widget\n  price: \"9.99\"\n```"

	records, err := parseRecords(raw)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Widget", records[0]["name"])
}

func TestParseRecordsScalarFails(t *testing.T) {
	_, err := parseRecords(`"just a string"`)
	assert.Error(t, err)
}
