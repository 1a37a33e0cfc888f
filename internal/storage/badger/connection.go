package badger

import (
	"errors"
	"fmt"
	"os"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/indago/internal/common"
)

const gcInterval = 5 * time.Minute

// BadgerDB wraps a badgerhold store and runs value-log GC in the
// background until Close is called.
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	gcStop chan struct{}
	gcDone chan struct{}
}

// NewBadgerDB opens the store at cfg.Path, deleting any existing data
// first when cfg.ResetOnStartup is set.
func NewBadgerDB(cfg *common.BadgerConfig, logger arbor.ILogger) (*BadgerDB, error) {
	if cfg.ResetOnStartup {
		if err := os.RemoveAll(cfg.Path); err != nil {
			return nil, fmt.Errorf("failed to reset storage directory: %w", err)
		}
		logger.Info().Str("path", cfg.Path).Msg("Storage reset on startup")
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = cfg.Path
	options.ValueDir = cfg.Path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	db := &BadgerDB{
		store:  store,
		logger: logger,
		gcStop: make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	go db.runGC()

	logger.Info().Str("path", cfg.Path).Msg("Badger storage opened")
	return db, nil
}

// Store returns the underlying badgerhold store.
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

func (b *BadgerDB) runGC() {
	defer close(b.gcDone)
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.gcStop:
			return
		case <-ticker.C:
			// RunValueLogGC reclaims at most one log file per call,
			// so loop until there is nothing left to rewrite.
			for {
				err := b.store.Badger().RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badgerdb.ErrNoRewrite) {
						b.logger.Warn().Err(err).Msg("Value log GC failed")
					}
					break
				}
			}
		}
	}
}

// Close stops the GC loop and closes the store.
func (b *BadgerDB) Close() error {
	close(b.gcStop)
	<-b.gcDone

	if err := b.store.Close(); err != nil {
		return fmt.Errorf("failed to close badger store: %w", err)
	}
	b.logger.Info().Msg("Badger storage closed")
	return nil
}
