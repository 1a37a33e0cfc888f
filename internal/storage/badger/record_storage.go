package badger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// RecordStorage is the append-only sink for extracted records.
type RecordStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewRecordStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RecordStorage {
	return &RecordStorage{db: db, logger: logger}
}

func (s *RecordStorage) AppendRecord(ctx context.Context, record *models.ExtractedRecord) error {
	if record.ID == "" {
		return fmt.Errorf("record ID is required")
	}
	if err := s.db.Store().Insert(record.ID, record); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

func (s *RecordStorage) GetRecords(ctx context.Context, sessionID string) ([]*models.ExtractedRecord, error) {
	var records []*models.ExtractedRecord
	query := badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID").SortBy("ExtractedAt")
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	return records, nil
}

// SearchRecords returns records whose field values contain the query,
// case-insensitive. An empty query matches everything.
func (s *RecordStorage) SearchRecords(ctx context.Context, sessionID, query string, limit int) ([]*models.ExtractedRecord, error) {
	records, err := s.GetRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	var matched []*models.ExtractedRecord
	for _, record := range records {
		if needle == "" || recordMatches(record, needle) {
			matched = append(matched, record)
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matched, nil
}

func recordMatches(record *models.ExtractedRecord, needle string) bool {
	if strings.Contains(strings.ToLower(record.SourceURL), needle) {
		return true
	}
	for _, v := range record.Fields {
		s, ok := v.(string)
		if ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func (s *RecordStorage) CountRecords(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.Store().Count(&models.ExtractedRecord{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(count), nil
}
