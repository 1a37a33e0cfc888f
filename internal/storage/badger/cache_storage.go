package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// CacheStorage persists one CacheEntry per URL.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{db: db, logger: logger}
}

func (s *CacheStorage) Get(ctx context.Context, url string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.Store().Get(url, &entry)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return &entry, nil
}

func (s *CacheStorage) Put(ctx context.Context, url, content, etag, lastModified string) error {
	entry := &models.CacheEntry{
		URL:          url,
		ETag:         etag,
		LastModified: lastModified,
		ContentHash:  common.HashContent(content),
		Timestamp:    time.Now(),
		Content:      content,
	}
	if err := s.db.Store().Upsert(url, entry); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (s *CacheStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CacheEntry{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return int(count), nil
}
