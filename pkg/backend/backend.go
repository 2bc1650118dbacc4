// Package backend defines the execution request model and the closed set of
// CLI backends a prompt can be delegated to. Each backend maps the uniform
// request onto its own command-line dialect; adding a backend means adding a
// variant, never branching inside shared code.
package backend

import (
	"fmt"
	"time"

	apperrors "github.com/odvcencio/promptgate/pkg/errors"
)

// OutputFormat selects how the backend renders its result.
type OutputFormat string

const (
	FormatText       OutputFormat = "text"
	FormatJSON       OutputFormat = "json"
	FormatStreamJSON OutputFormat = "stream-json"
)

// Request is the normalized description of one prompt execution.
type Request struct {
	Prompt             string         `json:"prompt"`
	OutputFormat       OutputFormat   `json:"output_format,omitempty"`
	Model              string         `json:"model,omitempty"`
	SystemPrompt       string         `json:"system_prompt,omitempty"`
	AppendSystemPrompt string         `json:"append_system_prompt,omitempty"`
	AllowedTools       []string       `json:"allowed_tools,omitempty"`
	DisallowedTools    []string       `json:"disallowed_tools,omitempty"`
	SkipPermissions    bool           `json:"skip_permissions,omitempty"`
	Settings           map[string]any `json:"settings,omitempty"`
	MCPConfigs         []string       `json:"mcp_configs,omitempty"`
	SessionID          string         `json:"session_id,omitempty"`
	Continue           bool           `json:"continue,omitempty"`
	Resume             string         `json:"resume,omitempty"`
	IncludePartial     bool           `json:"include_partial_messages,omitempty"`
	Backend            string         `json:"backend,omitempty"`
	NoFallback         bool           `json:"no_fallback,omitempty"`
	Timeout            time.Duration  `json:"-"`

	// TimeoutSeconds is the wire form of Timeout.
	TimeoutSeconds int `json:"timeout,omitempty"`
}

// Validate checks the request against the enumerated formats and the
// configured prompt bound. An empty output format is normalized to text.
// Validation never spawns a process.
func (r *Request) Validate(maxPromptBytes int) *apperrors.Error {
	if r.Prompt == "" {
		return apperrors.New(apperrors.ErrCodeValidation, "prompt is required")
	}
	if maxPromptBytes > 0 && len(r.Prompt) > maxPromptBytes {
		return apperrors.New(apperrors.ErrCodeValidation,
			fmt.Sprintf("prompt exceeds maximum length of %d bytes", maxPromptBytes)).
			WithContext("prompt_bytes", len(r.Prompt))
	}

	switch r.OutputFormat {
	case "":
		r.OutputFormat = FormatText
	case FormatText, FormatJSON, FormatStreamJSON:
	default:
		return apperrors.New(apperrors.ErrCodeValidation,
			fmt.Sprintf("invalid output format %q", r.OutputFormat))
	}

	switch r.Backend {
	case "", NameClaude, NameGemini:
	default:
		return apperrors.New(apperrors.ErrCodeValidation,
			fmt.Sprintf("unknown backend %q", r.Backend))
	}

	if r.TimeoutSeconds < 0 {
		return apperrors.New(apperrors.ErrCodeValidation, "timeout must not be negative")
	}
	if r.Timeout == 0 && r.TimeoutSeconds > 0 {
		r.Timeout = time.Duration(r.TimeoutSeconds) * time.Second
	}

	return nil
}

// Capability flags for backend features.
type Capability uint32

const (
	// CapNone indicates no optional features.
	CapNone Capability = 0

	// CapSystemPrompt indicates a native system prompt flag.
	CapSystemPrompt Capability = 1 << iota

	// CapAppendSystemPrompt indicates a native append-system-prompt flag.
	CapAppendSystemPrompt

	// CapDisallowedTools indicates a disallowed tool list flag.
	CapDisallowedTools

	// CapSettings indicates an inline settings blob flag.
	CapSettings

	// CapMCPConfig indicates MCP config paths are accepted.
	CapMCPConfig

	// CapSessionID indicates explicit session identifiers are accepted.
	CapSessionID

	// CapContinue indicates a native continue-most-recent flag.
	CapContinue

	// CapPartialMessages indicates partial message events can be requested.
	CapPartialMessages

	// CapStreamJSON indicates native structured streaming output.
	CapStreamJSON
)

// Capabilities describes which request fields a backend honors natively.
// Fields without the matching capability are approximated or dropped by
// BuildArgs rather than rejected.
type Capabilities struct {
	Flags Capability
}

// Has checks if a capability is present.
func (c Capabilities) Has(cap Capability) bool {
	return c.Flags&cap != 0
}

// Backend maps a Request to an invocation for one external CLI. Pure: no
// side effects, same args for the same request.
type Backend interface {
	// Name returns the canonical backend name.
	Name() string

	// Command returns the binary invoked for this backend.
	Command() string

	// DefaultModel returns the model used when the request names none.
	DefaultModel() string

	// Capabilities returns the backend's feature set.
	Capabilities() Capabilities

	// BuildArgs returns the ordered argument list for the request. The
	// prompt, possibly rewritten, is always the final positional argument.
	BuildArgs(req Request) []string
}
