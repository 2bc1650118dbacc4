package backend

import (
	"encoding/json"
	"strings"
)

// NameClaude identifies the full-featured backend.
const NameClaude = "claude"

// Claude is the full-featured backend: every request field maps onto a
// discrete CLI flag and no fields are mutually exclusive.
type Claude struct {
	command string
	model   string
}

// NewClaude creates the claude backend. Empty command or model fall back to
// the stock binary name and default model.
func NewClaude(command, model string) *Claude {
	if command == "" {
		command = NameClaude
	}
	if model == "" {
		model = "sonnet"
	}
	return &Claude{command: command, model: model}
}

func (c *Claude) Name() string         { return NameClaude }
func (c *Claude) Command() string      { return c.command }
func (c *Claude) DefaultModel() string { return c.model }

func (c *Claude) Capabilities() Capabilities {
	return Capabilities{
		Flags: CapSystemPrompt | CapAppendSystemPrompt | CapDisallowedTools |
			CapSettings | CapMCPConfig | CapSessionID | CapContinue |
			CapPartialMessages | CapStreamJSON,
	}
}

// BuildArgs maps the request onto the claude CLI dialect. Session flags
// (--session-id, --continue, --resume) are independent and may all be
// emitted; --dangerously-skip-permissions does not suppress the tool lists.
func (c *Claude) BuildArgs(req Request) []string {
	args := []string{"-p"}

	format := req.OutputFormat
	if format == "" {
		format = FormatText
	}
	args = append(args, "--output-format", string(format))
	if req.IncludePartial {
		args = append(args, "--include-partial-messages")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	args = append(args, "--model", model)

	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}
	if req.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.AppendSystemPrompt)
	}

	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, " "))
	}
	if len(req.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(req.DisallowedTools, " "))
	}
	if req.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}

	if len(req.Settings) > 0 {
		if blob, err := json.Marshal(req.Settings); err == nil {
			args = append(args, "--settings", string(blob))
		}
	}

	if req.SessionID != "" {
		args = append(args, "--session-id", req.SessionID)
	}
	if req.Continue {
		args = append(args, "--continue")
	}
	if req.Resume != "" {
		args = append(args, "--resume", req.Resume)
	}

	if len(req.MCPConfigs) > 0 {
		args = append(args, "--mcp-config")
		args = append(args, req.MCPConfigs...)
	}

	return append(args, req.Prompt)
}
