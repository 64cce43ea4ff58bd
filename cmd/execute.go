// Package cmd contains the quill command-line entry points.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quillon/quill/internal/log"
)

// Execute is the main entry point for the quill server binary. It handles
// flag-free command routing; all application logic lives here so main.go
// stays a minimal shim.
func Execute() error {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "version", "--version", "-v":
		printVersion()
		return nil
	case "help", "--help", "-h":
		printHelp()
		return nil
	}

	logger := initLogger()
	slog.SetDefault(logger)

	switch cmd {
	case "serve":
		return runServe(logger)
	case "migrate":
		return runMigrate(logger)
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// initLogger builds the process logger. QUILL_DEBUG enables debug level;
// QUILL_LOG_JSON switches to JSON output for log aggregation.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("QUILL_DEBUG") != "" {
		cfg.Level = slog.LevelDebug
		cfg.AddSource = true
	}
	if os.Getenv("QUILL_LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

func printHelp() {
	fmt.Println("quill - retrieval and credential decision core for AI chat")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  quill [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the HTTP API server (default)")
	fmt.Println("  migrate   Run database migrations and exit")
	fmt.Println("  version   Show version information")
	fmt.Println("  help      Show this help")
	fmt.Println()
	fmt.Println("Configuration is read from ~/.quill/config.yaml and QUILL_* environment variables.")
}
