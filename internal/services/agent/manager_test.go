package agent

import (
	"reflect"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/models"
)

func newTestManager(batchSize int) *Manager {
	return NewManager(&common.CrawlerConfig{BatchSize: batchSize}, arbor.NewLogger())
}

func TestSelectBatchDedupesWithinBatch(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://a.example.com")
	state.Queue = []string{
		"https://a.example.com",
		"https://b.example.com",
		"https://a.example.com",
		"https://c.example.com",
	}

	batch, remaining, _ := newTestManager(10).SelectBatch(state)

	want := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	if !reflect.DeepEqual(batch, want) {
		t.Fatalf("batch = %v, want %v", batch, want)
	}
	if len(remaining) != 0 {
		t.Fatalf("queue should be drained, got %v", remaining)
	}
}

func TestSelectBatchVisitedConsumesNoSlot(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://a.example.com")
	state.Queue = []string{
		"https://a.example.com/visited",
		"https://a.example.com/1",
		"https://a.example.com/2",
		"https://a.example.com/3",
	}
	state.Visited["https://a.example.com/visited"] = true

	batch, remaining, _ := newTestManager(2).SelectBatch(state)

	want := []string{"https://a.example.com/1", "https://a.example.com/2"}
	if !reflect.DeepEqual(batch, want) {
		t.Fatalf("batch = %v, want %v", batch, want)
	}
	if !reflect.DeepEqual(remaining, []string{"https://a.example.com/3"}) {
		t.Fatalf("remaining = %v", remaining)
	}
}

func TestSelectBatchAllVisitedYieldsEmptyBatch(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://a.example.com")
	state.Queue = []string{"https://a.example.com/1", "https://a.example.com/2"}
	state.Visited["https://a.example.com/1"] = true
	state.Visited["https://a.example.com/2"] = true

	batch, remaining, groups := newTestManager(5).SelectBatch(state)

	if len(batch) != 0 {
		t.Fatalf("expected empty batch, got %v", batch)
	}
	if len(remaining) != 0 {
		t.Fatalf("queue should be drained, got %v", remaining)
	}
	if len(groups) != 0 {
		t.Fatalf("no groups expected, got %v", groups)
	}
}

func TestSelectBatchEmptyQueue(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://a.example.com")
	state.Queue = nil

	batch, remaining, _ := newTestManager(5).SelectBatch(state)
	if len(batch) != 0 || len(remaining) != 0 {
		t.Fatalf("drained queue must yield empty batch, got %v / %v", batch, remaining)
	}
}

func TestSelectBatchBound(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://a.example.com")
	state.Queue = nil
	for i := 0; i < 12; i++ {
		state.Queue = append(state.Queue, "https://a.example.com/page/"+string(rune('a'+i)))
	}

	batch, remaining, _ := newTestManager(5).SelectBatch(state)

	if len(batch) != 5 {
		t.Fatalf("batch must be exactly B when enough URLs exist, got %d", len(batch))
	}
	if len(remaining) != 7 {
		t.Fatalf("remaining = %d, want 7", len(remaining))
	}
}

func TestSelectBatchGroupsByOrigin(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://a.example.com")
	state.Queue = []string{
		"https://a.example.com/1",
		"https://b.example.com/1",
		"https://a.example.com/2",
	}

	_, _, groups := newTestManager(10).SelectBatch(state)

	if len(groups["https://a.example.com"]) != 2 {
		t.Fatalf("origin a grouped %v", groups["https://a.example.com"])
	}
	if len(groups["https://b.example.com"]) != 1 {
		t.Fatalf("origin b grouped %v", groups["https://b.example.com"])
	}
}
