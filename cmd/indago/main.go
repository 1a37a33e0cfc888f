package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/app"
	"github.com/ternarybob/indago/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	objective    = flag.String("objective", "", "Crawl objective (requires -seed)")
	objectiveO   = flag.String("o", "", "Crawl objective (shorthand)")
	seedURL      = flag.String("seed", "", "Seed URL to start crawling from")
	seedS        = flag.String("s", "", "Seed URL (shorthand)")
	jobFile      = flag.String("job", "", "Run a single crawl job from a YAML definition file")
	serve        = flag.Bool("serve", false, "Run as a service: scheduler plus event feed")
	serverPort   = flag.Int("port", 0, "Feed server port (overrides config)")
	serverHost   = flag.String("host", "", "Feed server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Indago version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (required order): config, CLI overrides, logger,
	// banner, crash handler, application.
	if len(configFiles) == 0 {
		if _, err := os.Stat("indago.toml"); err == nil {
			configFiles = append(configFiles, "indago.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	if *serverPort != 0 {
		config.Server.Port = *serverPort
	}
	if *serverHost != "" {
		config.Server.Host = *serverHost
	}
	if *serve {
		config.Server.Enabled = true
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	crash := common.NewCrashReporter(common.LogsDir(), logger)
	defer crash.Recover()

	mergedObjective := firstNonEmpty(*objective, *objectiveO)
	mergedSeed := firstNonEmpty(*seedURL, *seedS)

	if !*serve && *jobFile == "" && mergedObjective == "" {
		fmt.Fprintln(os.Stderr, "Nothing to do: pass -objective and -seed, -job <file>, or -serve")
		flag.Usage()
		os.Exit(2)
	}

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	// The crawl machine checks ctx between phases, so an interrupt drains
	// the in-flight batch and marks the session cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *jobFile != "":
		runJob(ctx, application, *jobFile)
	case mergedObjective != "":
		runOnce(ctx, application, mergedObjective, mergedSeed)
	default:
		runService(ctx, application)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
