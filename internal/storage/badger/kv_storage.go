package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// KVStorage stores small configuration values by lowercase key.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{db: db, logger: logger}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	var pair models.KeyValuePair
	err := s.db.Store().Get(normalizeKey(key), &pair)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return "", interfaces.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get value: %w", err)
	}
	return pair.Value, nil
}

func (s *KVStorage) Set(ctx context.Context, key, value, description string) error {
	normalized := normalizeKey(key)
	if normalized == "" {
		return fmt.Errorf("key is required")
	}

	now := time.Now()
	pair := &models.KeyValuePair{
		Key:         normalized,
		Value:       value,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var existing models.KeyValuePair
	if err := s.db.Store().Get(normalized, &existing); err == nil {
		pair.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(normalized, pair); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(normalizeKey(key), &models.KeyValuePair{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

func (s *KVStorage) List(ctx context.Context) (map[string]string, error) {
	var pairs []*models.KeyValuePair
	if err := s.db.Store().Find(&pairs, nil); err != nil {
		return nil, fmt.Errorf("failed to list values: %w", err)
	}

	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		values[pair.Key] = pair.Value
	}
	return values, nil
}
