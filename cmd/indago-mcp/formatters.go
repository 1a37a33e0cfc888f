package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/indago/internal/models"
)

// formatResult formats a finished session summary as markdown
func formatResult(result *models.SessionResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Crawl Session %s\n\n", result.SessionID))
	sb.WriteString(fmt.Sprintf("**Title:** %s\n", result.Title))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", result.Status))
	sb.WriteString(fmt.Sprintf("**Pages scanned:** %d\n", result.PagesScanned))
	sb.WriteString(fmt.Sprintf("**Records extracted:** %d\n", result.ExtractedCount))
	sb.WriteString(fmt.Sprintf("**Errors:** %d\n", result.Errors))
	sb.WriteString(fmt.Sprintf("**Duration:** %s\n", result.Duration.Round(time.Millisecond)))
	if result.OutputDir != "" {
		sb.WriteString(fmt.Sprintf("**Output:** %s\n", result.OutputDir))
	}
	return sb.String()
}

// formatSession formats one session's status as markdown
func formatSession(session *models.Session) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", session.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", session.ID))
	sb.WriteString(fmt.Sprintf("**Objective:** %s\n", session.Objective))
	sb.WriteString(fmt.Sprintf("**Seed:** %s\n", session.SeedURL))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", session.Status))
	sb.WriteString(fmt.Sprintf("**Started:** %s\n", session.StartedAt.Format(time.RFC3339)))
	if session.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("**Completed:** %s\n", session.CompletedAt.Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("\n**Pages scanned:** %d\n", session.PagesScanned))
	sb.WriteString(fmt.Sprintf("**Records extracted:** %d\n", session.ExtractedCount))
	sb.WriteString(fmt.Sprintf("**Errors:** %d\n", session.Errors))
	sb.WriteString(fmt.Sprintf("**Bandwidth saved:** %d bytes\n", session.BandwidthSaved))
	return sb.String()
}

// formatSessionList formats recent sessions as markdown
func formatSessionList(sessions []*models.Session) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Recent Sessions (%d)\n\n", len(sessions)))

	if len(sessions) == 0 {
		sb.WriteString("No sessions found.\n")
		return sb.String()
	}

	for i, session := range sessions {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, session.Title, session.Status))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", session.ID))
		sb.WriteString(fmt.Sprintf("   Objective: %s\n", session.Objective))
		sb.WriteString(fmt.Sprintf("   Started: %s, pages: %d, records: %d\n\n",
			session.StartedAt.Format(time.RFC3339), session.PagesScanned, session.ExtractedCount))
	}
	return sb.String()
}

// formatRecords formats search results as markdown
func formatRecords(sessionID, query string, records []*models.ExtractedRecord) string {
	var sb strings.Builder
	if query == "" {
		sb.WriteString(fmt.Sprintf("## Records for %s (%d results)\n\n", sessionID, len(records)))
	} else {
		sb.WriteString(fmt.Sprintf("## Records matching \"%s\" in %s (%d results)\n\n", query, sessionID, len(records)))
	}

	if len(records) == 0 {
		sb.WriteString("No records found.\n")
		return sb.String()
	}

	for i, record := range records {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, record.ID))
		sb.WriteString(fmt.Sprintf("**Source:** %s\n", record.SourceURL))
		sb.WriteString(fmt.Sprintf("**Extracted:** %s\n\n", record.ExtractedAt.Format(time.RFC3339)))

		fieldsJSON, _ := json.MarshalIndent(record.Fields, "", "  ")
		sb.WriteString("```json\n")
		sb.Write(fieldsJSON)
		sb.WriteString("\n```\n\n---\n\n")
	}
	return sb.String()
}
