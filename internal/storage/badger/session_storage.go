package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// stateSnapshot is the persisted form of a crawl state, one per session.
// Screenshots are transient and dropped before the snapshot is written.
type stateSnapshot struct {
	SessionID string             `badgerhold:"key"`
	State     *models.CrawlState `json:"state"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// SessionStorage persists sessions and their latest state snapshot.
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{db: db, logger: logger}
}

func (s *SessionStorage) SaveSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.db.Store().Get(id, &session)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *SessionStorage) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []*models.Session
	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionStorage) SaveState(ctx context.Context, sessionID string, state *models.CrawlState) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	persisted := *state
	persisted.CurrentScreenshots = nil

	snapshot := &stateSnapshot{
		SessionID: sessionID,
		State:     &persisted,
		UpdatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(sessionID, snapshot); err != nil {
		return fmt.Errorf("failed to save crawl state: %w", err)
	}
	return nil
}

func (s *SessionStorage) GetState(ctx context.Context, sessionID string) (*models.CrawlState, error) {
	var snapshot stateSnapshot
	err := s.db.Store().Get(sessionID, &snapshot)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("crawl state not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get crawl state: %w", err)
	}
	return snapshot.State, nil
}
