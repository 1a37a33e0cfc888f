package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createCrawlStartTool returns the crawl_start tool definition
func createCrawlStartTool() mcp.Tool {
	return mcp.NewTool("crawl_start",
		mcp.WithDescription("Run a crawl session: crawl outward from a seed URL, judge relevance against the objective, and extract structured records. Blocks until the frontier is exhausted or max_pages is reached."),
		mcp.WithString("objective",
			mcp.Required(),
			mcp.Description("What to look for, e.g. 'laptop prices and specs'"),
		),
		mcp.WithString("seed_url",
			mcp.Required(),
			mcp.Description("URL to start crawling from"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Stop after scanning this many pages (default: 25, 0 = unlimited)"),
		),
	)
}

// createCrawlStatusTool returns the crawl_status tool definition
func createCrawlStatusTool() mcp.Tool {
	return mcp.NewTool("crawl_status",
		mcp.WithDescription("Show the status and counters of one crawl session, or list recent sessions when no id is given"),
		mcp.WithString("session_id",
			mcp.Description("Session ID (format: sess_{uuid}); omit to list recent sessions"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max sessions to list (default: 10)"),
		),
	)
}

// createSearchRecordsTool returns the search_records tool definition
func createSearchRecordsTool() mcp.Tool {
	return mcp.NewTool("search_records",
		mcp.WithDescription("Search the extracted records of a crawl session by substring match over field values"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID (format: sess_{uuid})"),
		),
		mcp.WithString("query",
			mcp.Description("Substring to match; empty returns the newest records"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum records to return (default: 10, max: 100)"),
		),
	)
}

// createGetSessionReportTool returns the get_session_report tool definition
func createGetSessionReportTool() mcp.Tool {
	return mcp.NewTool("get_session_report",
		mcp.WithDescription("Return the finalized HTML report of a completed crawl session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID (format: sess_{uuid})"),
		),
	)
}
