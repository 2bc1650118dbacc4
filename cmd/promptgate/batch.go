package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/config"
	"github.com/odvcencio/promptgate/pkg/relay"
)

// batchFile is the on-disk batch format: either a bare JSON array of items
// or an object with items plus common options.
type batchFile struct {
	Items  []relay.BatchItem `json:"items"`
	Common backend.Request   `json:"common"`
}

func runBatchCommand(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the config file")
	backendName := fs.String("backend", "", "backend for all items (default: config)")
	model := fs.String("model", "", "model for all items")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: promptgate batch [flags] FILE")
	}

	spec, err := loadBatchFile(fs.Arg(0))
	if err != nil {
		return withExitCode(err, 2)
	}
	if *backendName != "" {
		spec.Common.Backend = *backendName
	}
	if *model != "" {
		spec.Common.Model = *model
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return withExitCode(err, 2)
	}

	logger := buildLogger(cfg, *verbose)
	defer logger.Close()

	orch := relay.New(cfg, backend.NewRegistry(cfg), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, runErr := orch.RunBatch(ctx, spec.Items, spec.Common)
	if runErr != nil {
		return runErr
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.Summary.Failed > 0 {
		return withExitCode(fmt.Errorf("%d of %d items failed", result.Summary.Failed, result.Summary.Total), 1)
	}
	return nil
}

func loadBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var spec batchFile
	if err := json.Unmarshal(data, &spec); err == nil && len(spec.Items) > 0 {
		return &spec, nil
	}

	var items []relay.BatchItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	return &batchFile{Items: items}, nil
}
