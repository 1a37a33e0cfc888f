package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExtractedRecord is one structured record pulled out of a page by the oracle.
// Fields carries the schema-shaped payload as returned; the surrounding
// metadata ties it back to its session and source page.
type ExtractedRecord struct {
	ID          string         `json:"id" badgerhold:"key"` // rec_{uuid}
	SessionID   string         `json:"session_id" badgerhold:"index"`
	SourceURL   string         `json:"source_url"`
	Fields      map[string]any `json:"fields"`
	ExtractedAt time.Time      `json:"extracted_at"`
}

// NewExtractedRecord creates a record with a generated ID and timestamp.
func NewExtractedRecord(sessionID, sourceURL string, fields map[string]any) *ExtractedRecord {
	return &ExtractedRecord{
		ID:          "rec_" + uuid.New().String(),
		SessionID:   sessionID,
		SourceURL:   sourceURL,
		Fields:      fields,
		ExtractedAt: time.Now(),
	}
}

// uniqueKeyFields is the priority order used to identify a record across
// duplicates: the first field present and non-empty wins.
var uniqueKeyFields = []string{"url", "id", "isbn", "sku", "email", "name"}

// UniqueKey returns the field name and value identifying this record for
// deduplication and graph assembly. Returns ("", "") when no identifying
// field is present.
func (r *ExtractedRecord) UniqueKey() (field, value string) {
	for _, f := range uniqueKeyFields {
		v, ok := r.Fields[f]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		return f, strings.TrimSpace(s)
	}
	return "", ""
}
