package backend

import "strings"

// NameGemini identifies the reduced-featured backend.
const NameGemini = "gemini"

// resumeLatest is the sentinel the gemini CLI accepts for "resume the most
// recent session". Substituted when the caller supplies a session identifier
// without an explicit resume target.
const resumeLatest = "latest"

// Gemini is the reduced-featured backend. It has no system prompt flag, so
// system and append-system prompts are folded into the prompt argument, and
// --yolo is mutually exclusive with the allowed tool list.
type Gemini struct {
	command string
	model   string
}

// NewGemini creates the gemini backend.
func NewGemini(command, model string) *Gemini {
	if command == "" {
		command = NameGemini
	}
	if model == "" {
		model = "gemini-2.5-pro"
	}
	return &Gemini{command: command, model: model}
}

func (g *Gemini) Name() string         { return NameGemini }
func (g *Gemini) Command() string      { return g.command }
func (g *Gemini) DefaultModel() string { return g.model }

func (g *Gemini) Capabilities() Capabilities {
	return Capabilities{Flags: CapNone}
}

// BuildArgs maps the request onto the gemini CLI dialect. When the skip flag
// is set the allowed tool list is not emitted; resume-by-id takes precedence
// over a bare session identifier, which resolves to the latest-session
// sentinel.
func (g *Gemini) BuildArgs(req Request) []string {
	model := req.Model
	if model == "" {
		model = g.model
	}
	args := []string{"-m", model}

	// No native stream-json: structured requests of either flavor are
	// downgraded to plain JSON output.
	if req.OutputFormat == FormatJSON || req.OutputFormat == FormatStreamJSON {
		args = append(args, "--output-format", "json")
	}

	if req.SkipPermissions {
		args = append(args, "--yolo")
	} else if len(req.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(req.AllowedTools, " "))
	}

	if target := g.resumeTarget(req); target != "" {
		args = append(args, "--resume", target)
	}

	return append(args, rewritePrompt(req))
}

// resumeTarget resolves the session continuation fields into one resume
// argument: explicit resume id first, then any signal that the most recent
// session should be picked up.
func (g *Gemini) resumeTarget(req Request) string {
	if req.Resume != "" {
		return req.Resume
	}
	if req.SessionID != "" || req.Continue {
		return resumeLatest
	}
	return ""
}

// rewritePrompt folds system prompt text into the final prompt argument.
func rewritePrompt(req Request) string {
	if req.SystemPrompt != "" {
		return "System: " + req.SystemPrompt + "\n\nUser: " + req.Prompt
	}
	if req.AppendSystemPrompt != "" {
		return req.AppendSystemPrompt + "\n\n" + req.Prompt
	}
	return req.Prompt
}
