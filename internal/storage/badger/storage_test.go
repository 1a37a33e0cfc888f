package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	cfg := &common.BadgerConfig{Path: t.TempDir()}
	manager, err := NewManager(cfg, arbor.NewLogger())
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		if err := manager.Close(); err != nil {
			t.Errorf("Failed to close storage: %v", err)
		}
	})
	return manager
}

func TestCacheRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	cache := manager.CacheStorage()
	ctx := context.Background()

	url := "https://example.com/catalog"
	content := "<html><body>catalog page</body></html>"

	if err := cache.Put(ctx, url, content, `"etag-1"`, "Wed, 01 Jan 2025 00:00:00 GMT"); err != nil {
		t.Fatalf("Failed to put cache entry: %v", err)
	}

	entry, err := cache.Get(ctx, url)
	if err != nil {
		t.Fatalf("Failed to get cache entry: %v", err)
	}
	if entry == nil {
		t.Fatal("Expected cache entry, got nil")
	}
	if entry.Content != content {
		t.Errorf("Expected stored content to round-trip, got %q", entry.Content)
	}
	if entry.ContentHash != common.HashContent(content) {
		t.Errorf("Expected content hash %s, got %s", common.HashContent(content), entry.ContentHash)
	}
	if entry.ETag != `"etag-1"` {
		t.Errorf("Expected ETag to be stored verbatim, got %q", entry.ETag)
	}
	if entry.LastModified != "Wed, 01 Jan 2025 00:00:00 GMT" {
		t.Errorf("Expected Last-Modified to be stored verbatim, got %q", entry.LastModified)
	}

	count, err := cache.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count cache entries: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 cache entry, got %d", count)
	}
}

func TestCacheMissReturnsNil(t *testing.T) {
	manager := newTestManager(t)

	entry, err := manager.CacheStorage().Get(context.Background(), "https://example.com/never-seen")
	if err != nil {
		t.Fatalf("Expected no error on cache miss, got %v", err)
	}
	if entry != nil {
		t.Errorf("Expected nil entry on cache miss, got %+v", entry)
	}
}

func TestCachePutOverwrites(t *testing.T) {
	manager := newTestManager(t)
	cache := manager.CacheStorage()
	ctx := context.Background()

	url := "https://example.com/page"
	if err := cache.Put(ctx, url, "first", `"v1"`, ""); err != nil {
		t.Fatalf("Failed to put first entry: %v", err)
	}
	if err := cache.Put(ctx, url, "second", `"v2"`, ""); err != nil {
		t.Fatalf("Failed to put second entry: %v", err)
	}

	entry, err := cache.Get(ctx, url)
	if err != nil {
		t.Fatalf("Failed to get entry: %v", err)
	}
	if entry.Content != "second" || entry.ETag != `"v2"` {
		t.Errorf("Expected second write to win, got content=%q etag=%q", entry.Content, entry.ETag)
	}

	count, err := cache.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 entry after overwrite, got %d", count)
	}
}

func TestSessionLifecycle(t *testing.T) {
	manager := newTestManager(t)
	sessions := manager.SessionStorage()
	ctx := context.Background()

	session := &models.Session{
		ID:        "sess-1",
		Objective: "Find programming books",
		SeedURL:   "https://example.com",
		Title:     models.TitlePending,
		Status:    models.SessionStatusRunning,
		StartedAt: time.Now().Add(-time.Minute),
	}
	if err := sessions.SaveSession(ctx, session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	later := &models.Session{
		ID:        "sess-2",
		Objective: "Find cookbooks",
		SeedURL:   "https://example.org",
		Title:     models.TitlePending,
		Status:    models.SessionStatusRunning,
		StartedAt: time.Now(),
	}
	if err := sessions.SaveSession(ctx, later); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	got, err := sessions.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got.Objective != session.Objective || got.Status != models.SessionStatusRunning {
		t.Errorf("Session did not round-trip: %+v", got)
	}

	listed, err := sessions.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(listed))
	}
	if listed[0].ID != "sess-2" {
		t.Errorf("Expected newest session first, got %s", listed[0].ID)
	}

	if _, err := sessions.GetSession(ctx, "missing"); err == nil {
		t.Error("Expected error for missing session")
	}
}

func TestStateSnapshotDropsScreenshots(t *testing.T) {
	manager := newTestManager(t)
	sessions := manager.SessionStorage()
	ctx := context.Background()

	state := models.NewCrawlState("sess-1", "Find books", "https://example.com")
	state.CurrentBatch = []string{"https://example.com/a"}
	state.CurrentContents = []string{"body"}
	state.CurrentScreenshots = [][]byte{{0x89, 0x50}}
	state.Visited["https://example.com/a"] = true
	state.PagesScanned = 1

	if err := sessions.SaveState(ctx, "sess-1", state); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	got, err := sessions.GetState(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Failed to get state: %v", err)
	}
	if got.CurrentScreenshots != nil {
		t.Error("Expected screenshots to be dropped from the snapshot")
	}
	if len(got.CurrentBatch) != 1 || got.CurrentBatch[0] != "https://example.com/a" {
		t.Errorf("Expected batch to survive the snapshot, got %v", got.CurrentBatch)
	}
	if !got.Visited["https://example.com/a"] {
		t.Error("Expected visited set to survive the snapshot")
	}
	if state.CurrentScreenshots == nil {
		t.Error("Expected the in-memory state to keep its screenshots")
	}
}

func TestRecordAppendAndSearch(t *testing.T) {
	manager := newTestManager(t)
	records := manager.RecordStorage()
	ctx := context.Background()

	first := models.NewExtractedRecord("sess-1", "https://example.com/books/1", map[string]any{
		"name":  "The Go Programming Language",
		"price": "44.99",
	})
	second := models.NewExtractedRecord("sess-1", "https://example.com/books/2", map[string]any{
		"name":  "Learning Python",
		"price": "39.99",
	})
	other := models.NewExtractedRecord("sess-2", "https://example.org/items/9", map[string]any{
		"name": "Go mug",
	})

	for _, record := range []*models.ExtractedRecord{first, second, other} {
		if err := records.AppendRecord(ctx, record); err != nil {
			t.Fatalf("Failed to append record: %v", err)
		}
	}

	got, err := records.GetRecords(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Failed to get records: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 records for session, got %d", len(got))
	}

	count, err := records.CountRecords(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}

	matched, err := records.SearchRecords(ctx, "sess-1", "python", 10)
	if err != nil {
		t.Fatalf("Failed to search records: %v", err)
	}
	if len(matched) != 1 || matched[0].Fields["name"] != "Learning Python" {
		t.Errorf("Expected the python record, got %v", matched)
	}

	all, err := records.SearchRecords(ctx, "sess-1", "", 1)
	if err != nil {
		t.Fatalf("Failed to search with empty query: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected limit to cap results at 1, got %d", len(all))
	}
}

func TestKVStoragePreservesCreatedAt(t *testing.T) {
	manager := newTestManager(t)
	kv := manager.KVStorage()
	ctx := context.Background()

	if err := kv.Set(ctx, "Github.Token", "abc123", "API token"); err != nil {
		t.Fatalf("Failed to set value: %v", err)
	}

	// Keys are normalized to lowercase.
	value, err := kv.Get(ctx, "github.token")
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
	if value != "abc123" {
		t.Errorf("Expected abc123, got %q", value)
	}

	if err := kv.Set(ctx, "github.token", "def456", ""); err != nil {
		t.Fatalf("Failed to update value: %v", err)
	}
	value, err = kv.Get(ctx, "github.token")
	if err != nil {
		t.Fatalf("Failed to get updated value: %v", err)
	}
	if value != "def456" {
		t.Errorf("Expected def456, got %q", value)
	}

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, interfaces.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := kv.Delete(ctx, "github.token"); err != nil {
		t.Fatalf("Failed to delete value: %v", err)
	}
	if err := kv.Delete(ctx, "github.token"); err != nil {
		t.Errorf("Expected delete to be idempotent, got %v", err)
	}

	values, err := kv.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list values: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("Expected empty store, got %v", values)
	}
}
