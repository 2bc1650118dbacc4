package relay

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/executor"
)

// ExecutionResult is the immutable outcome of one successful request,
// tagged with the backend that actually produced it.
type ExecutionResult struct {
	Output       string `json:"output"`
	Structured   any    `json:"structured,omitempty"`
	Unparsed     bool   `json:"unparsed,omitempty"`
	Backend      string `json:"backend"`
	FallbackUsed bool   `json:"fallback_used"`
	DurationMS   int64  `json:"duration_ms"`

	Duration time.Duration `json:"-"`
}

// buildResult assembles the caller-facing result, decoding structured output
// on a best-effort basis. Decoding never fails the request: undecodable
// output is returned as raw text tagged unparsed.
func buildResult(res *executor.Result, backendName string, fallbackUsed bool, format backend.OutputFormat) *ExecutionResult {
	out := &ExecutionResult{
		Output:       string(res.Stdout),
		Backend:      backendName,
		FallbackUsed: fallbackUsed,
		Duration:     res.Duration,
		DurationMS:   res.Duration.Milliseconds(),
	}

	switch format {
	case backend.FormatJSON:
		var decoded any
		if err := json.Unmarshal(res.Stdout, &decoded); err == nil {
			out.Structured = decoded
		} else {
			out.Unparsed = true
		}
	case backend.FormatStreamJSON:
		if events, ok := decodeEventLines(res.Stdout); ok {
			out.Structured = events
		} else {
			out.Unparsed = true
		}
	}

	return out
}

// decodeEventLines decodes newline-delimited JSON events. A single
// undecodable non-empty line fails the whole decode; the caller then falls
// back to raw text.
func decodeEventLines(data []byte) ([]any, bool) {
	lines := strings.Split(string(data), "\n")
	events := make([]any, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var event any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, false
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		return nil, false
	}
	return events, true
}
