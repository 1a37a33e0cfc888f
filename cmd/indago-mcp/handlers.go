package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/exporter"
)

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
	}
}

func textResult(markdown string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(markdown),
		},
	}
}

// handleCrawlStart implements the crawl_start tool
func handleCrawlStart(runner interfaces.CrawlRunner, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		objective, err := request.RequireString("objective")
		if err != nil || objective == "" {
			return errorResult("Error: objective parameter is required"), nil
		}
		seedURL, err := request.RequireString("seed_url")
		if err != nil || seedURL == "" {
			return errorResult("Error: seed_url parameter is required"), nil
		}
		maxPages := request.GetInt("max_pages", 25)
		if maxPages < 0 {
			maxPages = 0
		}

		// RunJob carries the per-call page limit; everything else falls back
		// to the configured defaults.
		result, err := runner.RunJob(ctx, &models.JobDefinition{
			Name:      "mcp",
			Objective: objective,
			SeedURL:   seedURL,
			MaxPages:  maxPages,
		})
		if err != nil && result == nil {
			logger.Error().Err(err).Msg("Crawl session failed")
			return errorResult(fmt.Sprintf("Crawl failed: %v", err)), nil
		}

		return textResult(formatResult(result)), nil
	}
}

// handleCrawlStatus implements the crawl_status tool
func handleCrawlStatus(sessions interfaces.SessionStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")

		if sessionID == "" {
			limit := request.GetInt("limit", 10)
			list, err := sessions.ListSessions(ctx, limit)
			if err != nil {
				logger.Error().Err(err).Msg("ListSessions failed")
				return errorResult(fmt.Sprintf("Failed to list sessions: %v", err)), nil
			}
			return textResult(formatSessionList(list)), nil
		}

		session, err := sessions.GetSession(ctx, sessionID)
		if err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("GetSession failed")
			return errorResult(fmt.Sprintf("Session not found: %v", err)), nil
		}
		return textResult(formatSession(session)), nil
	}
}

// handleSearchRecords implements the search_records tool
func handleSearchRecords(records interfaces.RecordStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := request.RequireString("session_id")
		if err != nil || sessionID == "" {
			return errorResult("Error: session_id parameter is required"), nil
		}

		query := request.GetString("query", "")
		limit := request.GetInt("limit", 10)
		if limit > 100 {
			limit = 100
		}

		matches, err := records.SearchRecords(ctx, sessionID, query, limit)
		if err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("SearchRecords failed")
			return errorResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatRecords(sessionID, query, matches)), nil
	}
}

// handleGetSessionReport implements the get_session_report tool
func handleGetSessionReport(sessions interfaces.SessionStorage, exp *exporter.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := request.RequireString("session_id")
		if err != nil || sessionID == "" {
			return errorResult("Error: session_id parameter is required"), nil
		}

		session, err := sessions.GetSession(ctx, sessionID)
		if err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("GetSession failed")
			return errorResult(fmt.Sprintf("Session not found: %v", err)), nil
		}
		if session.Status == models.SessionStatusRunning {
			return errorResult(fmt.Sprintf("Session %s is still running; the report is written at finalization", sessionID)), nil
		}

		path := filepath.Join(exp.SessionDir(sessionID), "report.html")
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("Report read failed")
			return errorResult(fmt.Sprintf("No report found for session %s: %v", sessionID, err)), nil
		}

		return textResult(string(data)), nil
	}
}
