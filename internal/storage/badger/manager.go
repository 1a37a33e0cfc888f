package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// Manager owns the badger connection and the typed stores built on it.
type Manager struct {
	db             *BadgerDB
	logger         arbor.ILogger
	cacheStorage   interfaces.CacheStorage
	sessionStorage interfaces.SessionStorage
	recordStorage  interfaces.RecordStorage
	kvStorage      interfaces.KeyValueStorage
}

// NewManager opens the store and wires each typed storage onto it.
func NewManager(cfg *common.BadgerConfig, logger arbor.ILogger) (*Manager, error) {
	db, err := NewBadgerDB(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return &Manager{
		db:             db,
		logger:         logger,
		cacheStorage:   NewCacheStorage(db, logger),
		sessionStorage: NewSessionStorage(db, logger),
		recordStorage:  NewRecordStorage(db, logger),
		kvStorage:      NewKVStorage(db, logger),
	}, nil
}

func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cacheStorage
}

func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.sessionStorage
}

func (m *Manager) RecordStorage() interfaces.RecordStorage {
	return m.recordStorage
}

func (m *Manager) KVStorage() interfaces.KeyValueStorage {
	return m.kvStorage
}

func (m *Manager) Close() error {
	return m.db.Close()
}
