package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CleanJSONResponse strips markdown fences and conversational wrapping from a
// model response, leaving the span from the first { or [ to the last } or ].
func CleanJSONResponse(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[7:]
	}
	if strings.HasPrefix(text, "```") {
		text = text[3:]
	}
	if strings.HasSuffix(text, "```") {
		text = text[:len(text)-3]
	}
	text = strings.TrimSpace(text)

	start := -1
	for _, candidate := range []int{strings.Index(text, "{"), strings.Index(text, "[")} {
		if candidate == -1 {
			continue
		}
		if start == -1 || candidate < start {
			start = candidate
		}
	}

	end := -1
	for _, candidate := range []int{strings.LastIndex(text, "}"), strings.LastIndex(text, "]")} {
		if candidate > end {
			end = candidate
		}
	}

	if start != -1 && end != -1 && end >= start {
		text = text[start : end+1]
	}
	return text
}

// extractYAMLFence returns the body of a ```yaml fence, if the response
// carries one.
func extractYAMLFence(text string) (string, bool) {
	start := strings.Index(text, "```yaml")
	if start == -1 {
		return "", false
	}
	body := text[start+len("```yaml"):]
	end := strings.LastIndex(body, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

type relevancePayload struct {
	IsRelevant bool     `json:"is_relevant" yaml:"is_relevant"`
	Reason     string   `json:"reason" yaml:"reason"`
	NextURLs   []string `json:"next_urls" yaml:"next_urls"`
}

// parseRelevance decodes a relevance verdict. Some models ignore the JSON
// instruction and answer in a YAML fence, so that is tolerated.
func parseRelevance(raw string) (*relevancePayload, error) {
	var payload relevancePayload
	if err := json.Unmarshal([]byte(CleanJSONResponse(raw)), &payload); err == nil {
		return &payload, nil
	}

	if body, ok := extractYAMLFence(raw); ok {
		if err := yaml.Unmarshal([]byte(body), &payload); err == nil {
			return &payload, nil
		}
	}
	return nil, fmt.Errorf("unparseable relevance response")
}

// parseRecords decodes extracted records. A single object is wrapped into a
// one-element slice; anything unparseable is an error the service downgrades
// to no-records.
func parseRecords(raw string) ([]map[string]interface{}, error) {
	var decoded interface{}
	if err := json.Unmarshal([]byte(CleanJSONResponse(raw)), &decoded); err != nil {
		body, ok := extractYAMLFence(raw)
		if !ok {
			return nil, fmt.Errorf("unparseable extraction response: %w", err)
		}
		if yamlErr := yaml.Unmarshal([]byte(body), &decoded); yamlErr != nil {
			return nil, fmt.Errorf("unparseable extraction response: %w", yamlErr)
		}
	}
	return recordsFromDecoded(decoded)
}

func recordsFromDecoded(decoded interface{}) ([]map[string]interface{}, error) {
	switch value := decoded.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{value}, nil
	case []interface{}:
		records := make([]map[string]interface{}, 0, len(value))
		for _, item := range value {
			if record, ok := item.(map[string]interface{}); ok {
				records = append(records, record)
			}
		}
		return records, nil
	default:
		return nil, fmt.Errorf("extraction response is neither object nor array")
	}
}
