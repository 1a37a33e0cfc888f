package agent

import (
	"testing"

	"github.com/ternarybob/indago/internal/models"
)

func TestApplyUpdateNilIsNoOp(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://example.com")
	state.PagesScanned = 3

	applyUpdate(state, nil)

	if state.PagesScanned != 3 || len(state.Queue) != 1 {
		t.Fatal("nil update must not change state")
	}
}

func TestApplyUpdateMergeRules(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://example.com")
	state.TemplateGroups["https://example.com"] = []string{"https://example.com/old"}
	state.PagesScanned = 1
	state.BandwidthSaved = 100

	title := "Widget Prices"
	schema := `{"type":"object"}`
	queue := []string{"https://example.com/a"}
	batch := []string{"https://example.com/b"}
	contents := []string{"<html></html>"}
	flags := []bool{true}

	applyUpdate(state, &models.StateUpdate{
		Title:           &title,
		Schema:          &schema,
		Queue:           &queue,
		AddVisited:      []string{"https://example.com/v"},
		AddFailed:       []string{"https://example.com/f"},
		CurrentBatch:    &batch,
		CurrentContents: &contents,
		RelevantFlags:   &flags,
		TemplateGroups: map[string][]string{
			"https://example.com": {"https://example.com/new"},
			"https://other.org":   {"https://other.org/x"},
		},
		ExtractedDelta: 2,
		ScannedDelta:   1,
		ErrorsDelta:    1,
		BandwidthDelta: 50,
	})

	if state.Title != "Widget Prices" || state.Schema != schema {
		t.Fatal("replace fields not applied")
	}
	if len(state.Queue) != 1 || state.Queue[0] != "https://example.com/a" {
		t.Fatal("queue not replaced")
	}
	if !state.Visited["https://example.com/v"] || !state.Failed["https://example.com/f"] {
		t.Fatal("set unions not applied")
	}
	if len(state.CurrentBatch) != 1 || len(state.CurrentContents) != 1 || len(state.RelevantFlags) != 1 {
		t.Fatal("batch slices not replaced")
	}

	groups := state.TemplateGroups["https://example.com"]
	if len(groups) != 2 || groups[0] != "https://example.com/old" || groups[1] != "https://example.com/new" {
		t.Fatalf("template groups must append, got %v", groups)
	}
	if len(state.TemplateGroups["https://other.org"]) != 1 {
		t.Fatal("new origin group not created")
	}

	if state.ExtractedCount != 2 || state.PagesScanned != 2 || state.Errors != 1 {
		t.Fatalf("counters wrong: extracted=%d scanned=%d errors=%d",
			state.ExtractedCount, state.PagesScanned, state.Errors)
	}
	if state.BandwidthSaved != 150 {
		t.Fatalf("bandwidth delta not added, got %d", state.BandwidthSaved)
	}
}

func TestApplyUpdateUntouchedFieldsSurvive(t *testing.T) {
	state := models.NewCrawlState("sess_1", "objective", "https://example.com")
	state.Title = "Existing Title"
	state.Schema = "existing"

	flags := []bool{false, true}
	applyUpdate(state, &models.StateUpdate{RelevantFlags: &flags})

	if state.Title != "Existing Title" || state.Schema != "existing" {
		t.Fatal("nil pointer fields must leave state untouched")
	}
	if len(state.Queue) != 1 {
		t.Fatal("queue must survive unrelated update")
	}
}

func TestAnyRelevant(t *testing.T) {
	if anyRelevant(nil) {
		t.Fatal("empty flags must not be relevant")
	}
	if anyRelevant([]bool{false, false}) {
		t.Fatal("all-false flags must not be relevant")
	}
	if !anyRelevant([]bool{false, true, false}) {
		t.Fatal("one true flag must be relevant")
	}
}
