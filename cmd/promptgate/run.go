package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/config"
	"github.com/odvcencio/promptgate/pkg/relay"
)

type stringListValue struct {
	target *[]string
}

func (v *stringListValue) String() string {
	if v.target == nil {
		return ""
	}
	return strings.Join(*v.target, ",")
}

func (v *stringListValue) Set(raw string) error {
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			*v.target = append(*v.target, part)
		}
	}
	return nil
}

func runRunCommand(args []string) error {
	var allowedTools, disallowedTools, mcpConfigs []string

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the config file")
	backendName := fs.String("backend", "", "backend to use: claude or gemini (default: config)")
	model := fs.String("model", "", "model override")
	systemPrompt := fs.String("system-prompt", "", "replace the backend's default system prompt")
	appendSystemPrompt := fs.String("append-system-prompt", "", "append to the backend's system prompt")
	outputFormat := fs.String("output-format", "", "output format: text, json, or stream-json")
	sessionID := fs.String("session-id", "", "session to associate with the run")
	resume := fs.String("resume", "", "resume the given session")
	continueConv := fs.Bool("continue", false, "continue the most recent conversation")
	skipPermissions := fs.Bool("dangerously-skip-permissions", false, "bypass tool permission prompts")
	settingsFlag := fs.String("settings", "", "settings JSON object or path to a JSON file")
	partial := fs.Bool("include-partial-messages", false, "include partial message events (stream-json)")
	timeoutSecs := fs.Int("timeout", 0, "execution timeout in seconds (default: config)")
	noFallback := fs.Bool("no-fallback", false, "fail without trying the alternate backend")
	stream := fs.Bool("stream", false, "relay output as it is produced instead of buffering")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	fs.Var(&stringListValue{target: &allowedTools}, "allowed-tools", "tool allowlist entry (repeatable, accepts comma-separated list)")
	fs.Var(&stringListValue{target: &disallowedTools}, "disallowed-tools", "tool denylist entry (repeatable, accepts comma-separated list)")
	fs.Var(&stringListValue{target: &mcpConfigs}, "mcp-config", "MCP server config path (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "-" || prompt == "" {
		data, err := readStdinPrompt()
		if err != nil {
			return err
		}
		prompt = data
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return withExitCode(err, 2)
	}

	logger := buildLogger(cfg, *verbose)
	defer logger.Close()

	settings, err := parseSettings(*settingsFlag)
	if err != nil {
		return withExitCode(err, 2)
	}

	req := backend.Request{
		Prompt:             prompt,
		Backend:            *backendName,
		Model:              *model,
		SystemPrompt:       *systemPrompt,
		AppendSystemPrompt: *appendSystemPrompt,
		OutputFormat:       backend.OutputFormat(*outputFormat),
		AllowedTools:       allowedTools,
		DisallowedTools:    disallowedTools,
		SkipPermissions:    *skipPermissions,
		Settings:           settings,
		SessionID:          *sessionID,
		Resume:             *resume,
		Continue:           *continueConv,
		IncludePartial:     *partial,
		MCPConfigs:         mcpConfigs,
		TimeoutSeconds:     *timeoutSecs,
		NoFallback:         *noFallback,
	}

	orch := relay.New(cfg, backend.NewRegistry(cfg), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *stream {
		if streamErr := orch.Stream(ctx, req, os.Stdout); streamErr != nil {
			return streamErr
		}
		return nil
	}

	result, runErr := orch.Run(ctx, req)
	if runErr != nil {
		return runErr
	}

	if result.Structured != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Structured)
	}
	fmt.Print(result.Output)
	if !strings.HasSuffix(result.Output, "\n") {
		fmt.Println()
	}
	return nil
}

// parseSettings accepts an inline JSON object or a path to a JSON file.
func parseSettings(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	data := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		var err error
		data, err = os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return settings, nil
}

func readStdinPrompt() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", fmt.Errorf("prompt required: pass it as an argument or pipe it on stdin")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
