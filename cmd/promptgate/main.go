package main

import (
	"fmt"
	"os"

	"github.com/odvcencio/promptgate/pkg/config"
	"github.com/odvcencio/promptgate/pkg/logging"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// exitFn allows tests to intercept process exit.
var exitFn = os.Exit

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		exitFn(1)
		return
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServeCommand(os.Args[2:])
	case "run":
		err = runRunCommand(os.Args[2:])
	case "batch":
		err = runBatchCommand(os.Args[2:])
	case "backends":
		err = runBackendsCommand(os.Args[2:])
	case "version":
		fmt.Printf("promptgate %s (commit %s, built %s)\n", version, commit, buildDate)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage(os.Stderr)
		exitFn(1)
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitFn(exitCodeFor(err))
	}
}

func printUsage(w *os.File) {
	fmt.Fprintf(w, `promptgate delegates prompts to claude or gemini with automatic fallback.

Usage:
  promptgate serve [flags]      start the HTTP server
  promptgate run [flags] PROMPT execute one prompt
  promptgate batch [flags] FILE execute a batch file (JSON)
  promptgate backends           list configured backends
  promptgate version            print version information
  promptgate help               show this help

Run 'promptgate <command> -h' for command flags.
`)
}

// buildLogger prefers the configured log directory and falls back to a
// no-op logger so the CLI keeps working without one.
func buildLogger(cfg *config.Config, verbose bool) *logging.Logger {
	if cfg.LogDir == "" {
		return logging.Nop()
	}
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
		return logging.Nop()
	}
	if verbose {
		logger.SetMinLevel(logging.LevelDebug)
	}
	return logger
}
