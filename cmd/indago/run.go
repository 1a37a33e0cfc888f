package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ternarybob/indago/internal/app"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/scheduler"
)

// runOnce runs a single crawl session from the CLI flags and prints the
// summary.
func runOnce(ctx context.Context, application *app.App, objective, seed string) {
	if seed == "" {
		fmt.Fprintln(os.Stderr, "A seed URL is required (-seed)")
		os.Exit(2)
	}

	result, err := application.Crawler.RunSession(ctx, objective, seed)
	if err != nil && result == nil {
		logger.Fatal().Err(err).Msg("Crawl session failed")
		os.Exit(1)
	}
	printResult(result)
}

// runJob loads one YAML job definition and runs it immediately, ignoring any
// schedule it carries.
func runJob(ctx context.Context, application *app.App, path string) {
	def, err := scheduler.LoadDefinition(path)
	if err != nil {
		logger.Fatal().Err(err).Str("file", path).Msg("Failed to load job definition")
		os.Exit(1)
	}

	result, err := application.Crawler.RunJob(ctx, def)
	if err != nil && result == nil {
		logger.Fatal().Err(err).Str("job", def.Name).Msg("Crawl job failed")
		os.Exit(1)
	}
	printResult(result)
}

// runService runs indago as a long-lived service: scheduled jobs from the
// jobs directory plus the WebSocket event feed.
func runService(ctx context.Context, application *app.App) {
	cfg := application.Config

	if cfg.Scheduler.Enabled {
		if _, err := application.Scheduler.LoadDir(cfg.Scheduler.JobsDir); err != nil {
			logger.Warn().Err(err).Str("dir", cfg.Scheduler.JobsDir).Msg("Failed to load scheduled jobs")
		}
		if err := application.Scheduler.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
			os.Exit(1)
		}
	}

	var server *http.Server
	if cfg.Server.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "OK")
		})
		mux.HandleFunc("/ws", application.WSHandler.HandleWebSocket)

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		server = &http.Server{Addr: addr, Handler: mux}

		go func() {
			logger.Info().Str("address", addr).Msg("Event feed server starting")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Msg("Feed server failed")
				os.Exit(1)
			}
		}()
		fmt.Printf("Event feed on ws://%s/ws\n", addr)
	}

	fmt.Println("Service running, press Ctrl+C to stop")
	<-ctx.Done()

	logger.Info().Msg("Shutting down service")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Feed server shutdown failed")
		}
		cancel()
	}
}

// printResult writes the session summary to stdout for the one-shot modes.
func printResult(result *models.SessionResult) {
	if result == nil {
		return
	}
	fmt.Printf("\nSession %s (%s)\n", result.SessionID, result.Status)
	fmt.Printf("  Title:           %s\n", result.Title)
	fmt.Printf("  Pages scanned:   %d\n", result.PagesScanned)
	fmt.Printf("  Records:         %d\n", result.ExtractedCount)
	fmt.Printf("  Errors:          %d\n", result.Errors)
	fmt.Printf("  Bandwidth saved: %d bytes\n", result.BandwidthSaved)
	fmt.Printf("  Duration:        %s\n", result.Duration.Round(time.Millisecond))
	if result.OutputDir != "" {
		fmt.Printf("  Output:          %s\n", result.OutputDir)
	}
}
