package backend

import (
	"reflect"
	"strings"
	"testing"
)

// flagValue returns the value following a flag, and whether the flag exists.
func flagValue(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag {
			if i+1 < len(args) {
				return args[i+1], true
			}
			return "", true
		}
	}
	return "", false
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func TestClaudeMinimalArgs(t *testing.T) {
	c := NewClaude("", "")
	args := c.BuildArgs(Request{Prompt: "hello"})

	want := []string{"-p", "--output-format", "text", "--model", "sonnet", "hello"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestClaudePromptIsFinalPositional(t *testing.T) {
	c := NewClaude("claude", "sonnet")
	req := Request{
		Prompt:       "Y",
		SystemPrompt: "X",
		MCPConfigs:   []string{"a.json", "b.json"},
	}
	args := c.BuildArgs(req)

	if got := args[len(args)-1]; got != "Y" {
		t.Errorf("final arg = %q, want the untouched prompt", got)
	}
	if v, ok := flagValue(args, "--system-prompt"); !ok || v != "X" {
		t.Errorf("--system-prompt = %q (present=%v), want X", v, ok)
	}
}

func TestClaudeSystemAndAppendAreIndependent(t *testing.T) {
	c := NewClaude("claude", "sonnet")
	args := c.BuildArgs(Request{
		Prompt:             "p",
		SystemPrompt:       "sys",
		AppendSystemPrompt: "extra",
	})

	if v, _ := flagValue(args, "--system-prompt"); v != "sys" {
		t.Errorf("--system-prompt = %q", v)
	}
	if v, _ := flagValue(args, "--append-system-prompt"); v != "extra" {
		t.Errorf("--append-system-prompt = %q", v)
	}
}

func TestClaudeSkipPermissionsKeepsToolList(t *testing.T) {
	c := NewClaude("claude", "sonnet")
	args := c.BuildArgs(Request{
		Prompt:          "p",
		SkipPermissions: true,
		AllowedTools:    []string{"Bash", "Read"},
		DisallowedTools: []string{"WebFetch"},
	})

	if !hasFlag(args, "--dangerously-skip-permissions") {
		t.Error("skip flag should be emitted")
	}
	if v, _ := flagValue(args, "--allowedTools"); v != "Bash Read" {
		t.Errorf("--allowedTools = %q, want space-joined list", v)
	}
	if v, _ := flagValue(args, "--disallowedTools"); v != "WebFetch" {
		t.Errorf("--disallowedTools = %q", v)
	}
}

func TestClaudeSessionFlagsAllIndependent(t *testing.T) {
	c := NewClaude("claude", "sonnet")
	args := c.BuildArgs(Request{
		Prompt:    "p",
		SessionID: "sid-1",
		Continue:  true,
		Resume:    "rid-2",
	})

	if v, _ := flagValue(args, "--session-id"); v != "sid-1" {
		t.Errorf("--session-id = %q", v)
	}
	if !hasFlag(args, "--continue") {
		t.Error("--continue should be emitted")
	}
	if v, _ := flagValue(args, "--resume"); v != "rid-2" {
		t.Errorf("--resume = %q", v)
	}
}

func TestClaudeSettingsSerializedInline(t *testing.T) {
	c := NewClaude("claude", "sonnet")
	args := c.BuildArgs(Request{
		Prompt:   "p",
		Settings: map[string]any{"permissions": map[string]any{"defaultMode": "acceptEdits"}},
	})

	v, ok := flagValue(args, "--settings")
	if !ok {
		t.Fatal("--settings should be emitted")
	}
	if !strings.Contains(v, `"defaultMode":"acceptEdits"`) {
		t.Errorf("settings blob = %q", v)
	}
}

func TestClaudeMCPConfigsTrailMultiValue(t *testing.T) {
	c := NewClaude("claude", "sonnet")
	args := c.BuildArgs(Request{
		Prompt:     "p",
		MCPConfigs: []string{"one.json", "two.json"},
	})

	// --mcp-config one.json two.json, then the prompt.
	n := len(args)
	want := []string{"--mcp-config", "one.json", "two.json", "p"}
	if !reflect.DeepEqual(args[n-4:], want) {
		t.Errorf("tail = %v, want %v", args[n-4:], want)
	}
}

func TestClaudeStreamingFlags(t *testing.T) {
	c := NewClaude("claude", "opus")
	args := c.BuildArgs(Request{
		Prompt:         "p",
		OutputFormat:   FormatStreamJSON,
		IncludePartial: true,
	})

	if v, _ := flagValue(args, "--output-format"); v != "stream-json" {
		t.Errorf("--output-format = %q", v)
	}
	if !hasFlag(args, "--include-partial-messages") {
		t.Error("--include-partial-messages should be emitted")
	}
	if v, _ := flagValue(args, "--model"); v != "opus" {
		t.Errorf("default model = %q", v)
	}
}

func TestClaudeModelOverride(t *testing.T) {
	c := NewClaude("claude", "sonnet")
	args := c.BuildArgs(Request{Prompt: "p", Model: "haiku"})
	if v, _ := flagValue(args, "--model"); v != "haiku" {
		t.Errorf("--model = %q, want request override", v)
	}
}

func TestClaudeCapabilities(t *testing.T) {
	caps := NewClaude("", "").Capabilities()
	for _, c := range []Capability{
		CapSystemPrompt, CapAppendSystemPrompt, CapDisallowedTools,
		CapSettings, CapMCPConfig, CapSessionID, CapContinue,
		CapPartialMessages, CapStreamJSON,
	} {
		if !caps.Has(c) {
			t.Errorf("claude should have capability %b", c)
		}
	}
}
