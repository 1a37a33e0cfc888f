package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/indago/internal/models"
)

// ErrKeyNotFound is returned by KeyValueStorage.Get when no value is
// stored under the requested key.
var ErrKeyNotFound = errors.New("key not found")

// CacheStorage persists conditional-request metadata and last-seen content
// per URL. Entries survive process restarts and are never evicted.
type CacheStorage interface {
	// Get returns the entry for a URL, or nil when none exists.
	Get(ctx context.Context, url string) (*models.CacheEntry, error)

	// Put computes the content hash and upserts the entry for a URL.
	Put(ctx context.Context, url, content, etag, lastModified string) error

	// Count returns the number of cached entries.
	Count(ctx context.Context) (int, error)
}

// SessionStorage persists crawl session metadata and state snapshots.
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, limit int) ([]*models.Session, error)

	// SaveState stores the latest crawl-state snapshot for a session.
	SaveState(ctx context.Context, sessionID string, state *models.CrawlState) error
	GetState(ctx context.Context, sessionID string) (*models.CrawlState, error)
}

// RecordStorage is the append-only durable record sink populated during a
// crawl and read back at finalization.
type RecordStorage interface {
	AppendRecord(ctx context.Context, record *models.ExtractedRecord) error
	GetRecords(ctx context.Context, sessionID string) ([]*models.ExtractedRecord, error)
	SearchRecords(ctx context.Context, sessionID, query string, limit int) ([]*models.ExtractedRecord, error)
	CountRecords(ctx context.Context, sessionID string) (int, error)
}

// KeyValueStorage stores small configuration values (source credentials,
// feature toggles) by key.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value, description string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
}

// StorageManager owns the badger connection and hands out typed stores.
type StorageManager interface {
	CacheStorage() CacheStorage
	SessionStorage() SessionStorage
	RecordStorage() RecordStorage
	KVStorage() KeyValueStorage
	Close() error
}
