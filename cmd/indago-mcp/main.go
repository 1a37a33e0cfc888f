package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/indago/internal/app"
	"github.com/ternarybob/indago/internal/common"
)

func main() {
	configPath := os.Getenv("INDAGO_CONFIG")
	if configPath == "" {
		configPath = "indago.toml"
	}

	var configFiles []string
	if _, err := os.Stat(configPath); err == nil {
		configFiles = append(configFiles, configPath)
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The MCP transport is stdio, so console logging must stay quiet and the
	// feed server stays off.
	config.Server.Enabled = false
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"indago",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createCrawlStartTool(), handleCrawlStart(application.Crawler, logger))
	mcpServer.AddTool(createCrawlStatusTool(), handleCrawlStatus(application.StorageManager.SessionStorage(), logger))
	mcpServer.AddTool(createSearchRecordsTool(), handleSearchRecords(application.StorageManager.RecordStorage(), logger))
	mcpServer.AddTool(createGetSessionReportTool(), handleGetSessionReport(application.StorageManager.SessionStorage(), application.Exporter, logger))

	// Blocks on stdio until the client disconnects.
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
