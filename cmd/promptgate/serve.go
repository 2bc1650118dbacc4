package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/config"
	"github.com/odvcencio/promptgate/pkg/relay"
	"github.com/odvcencio/promptgate/pkg/server"
)

var serveLoadConfigFn = config.Load

const shutdownGrace = 15 * time.Second

func runServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the config file (default: $PROMPTGATE_CONFIG or ~/.promptgate/config.yaml)")
	bind := fs.String("bind", "", "address to bind the HTTP server (overrides config)")
	authToken := fs.String("auth-token", "", "bearer token clients must supply (default: PROMPTGATE_AUTH_TOKEN)")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := serveLoadConfigFn(*configPath)
	if err != nil {
		return withExitCode(err, 2)
	}
	if *bind != "" {
		cfg.Server.ListenAddr = *bind
	}
	token := strings.TrimSpace(*authToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("PROMPTGATE_AUTH_TOKEN"))
	}
	if token != "" {
		cfg.Server.AuthToken = token
	}

	logger := buildLogger(cfg, *verbose)
	defer logger.Close()

	registry := backend.NewRegistry(cfg)
	orch := relay.New(cfg, registry, logger)
	srv := server.NewServer(cfg.Server, orch, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Fprintf(os.Stderr, "promptgate listening on %s\n", cfg.Server.ListenAddr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-sigCh:
		fmt.Fprintf(os.Stderr, "received %s, shutting down\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
