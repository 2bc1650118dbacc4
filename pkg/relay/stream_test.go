package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/odvcencio/promptgate/pkg/backend"
	apperrors "github.com/odvcencio/promptgate/pkg/errors"
)

func TestStream_HappyPathNothingAppended(t *testing.T) {
	stub := newStubRunner()
	stub.stream["claude"] = func(sink io.Writer) *apperrors.Error {
		for _, chunk := range []string{"a", "b", "c"} {
			sink.Write([]byte(chunk))
		}
		return nil
	}
	o := newTestOrchestrator(t, true, stub)

	var sink bytes.Buffer
	if err := o.Stream(context.Background(), backend.Request{Prompt: "hi"}, &sink); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if sink.String() != "abc" {
		t.Errorf("sink = %q, want exactly the relayed chunks", sink.String())
	}
}

func TestStream_NonZeroExitAppendsOneRecord(t *testing.T) {
	stub := newStubRunner()
	stub.stream["claude"] = func(sink io.Writer) *apperrors.Error {
		sink.Write([]byte("partial"))
		return exitError(2)
	}
	o := newTestOrchestrator(t, true, stub)

	var sink bytes.Buffer
	err := o.Stream(context.Background(), backend.Request{Prompt: "hi"}, &sink)
	if err == nil {
		t.Fatal("expected failure")
	}

	out := sink.String()
	if !strings.HasPrefix(out, "partial") {
		t.Errorf("relayed bytes must never be retracted, got %q", out)
	}

	var record streamFailure
	if uerr := json.Unmarshal([]byte(strings.TrimPrefix(out, "partial")), &record); uerr != nil {
		t.Fatalf("inline record not decodable: %v (%q)", uerr, out)
	}
	if record.Type != "error" || record.ExitCode == nil || *record.ExitCode != 2 {
		t.Errorf("record = %+v, want error naming exit code 2", record)
	}

	// Mid-stream failure is never restarted, even with fallback enabled.
	if stub.spawnCount() != 1 {
		t.Errorf("spawns = %d, want 1", stub.spawnCount())
	}
}

func TestStream_SpawnFailureRestartsOnce(t *testing.T) {
	stub := newStubRunner()
	stub.stream["claude"] = func(sink io.Writer) *apperrors.Error {
		return spawnError("claude")
	}
	stub.stream["gemini"] = func(sink io.Writer) *apperrors.Error {
		sink.Write([]byte("recovered"))
		return nil
	}
	o := newTestOrchestrator(t, true, stub)

	var sink bytes.Buffer
	if err := o.Stream(context.Background(), backend.Request{Prompt: "hi"}, &sink); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if sink.String() != "recovered" {
		t.Errorf("sink = %q", sink.String())
	}
	if stub.spawnCount() != 2 {
		t.Errorf("spawns = %d, want 2", stub.spawnCount())
	}
}

func TestStream_DoubleSpawnFailureEmitsRecord(t *testing.T) {
	stub := newStubRunner()
	stub.stream["claude"] = func(sink io.Writer) *apperrors.Error { return spawnError("claude") }
	stub.stream["gemini"] = func(sink io.Writer) *apperrors.Error { return spawnError("gemini") }
	o := newTestOrchestrator(t, true, stub)

	var sink bytes.Buffer
	err := o.Stream(context.Background(), backend.Request{Prompt: "hi"}, &sink)
	if err == nil {
		t.Fatal("expected aggregate failure")
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeAggregate) {
		t.Errorf("code = %v, want AGGREGATE", apperrors.GetCode(err))
	}

	var record streamFailure
	if uerr := json.Unmarshal(sink.Bytes(), &record); uerr != nil {
		t.Fatalf("inline record not decodable: %v (%q)", uerr, sink.String())
	}
	if record.Type != "error" {
		t.Errorf("record = %+v", record)
	}
	if stub.spawnCount() != 2 {
		t.Errorf("spawns = %d, the restart is bounded to one", stub.spawnCount())
	}
}

func TestStream_NoRestartWhenFallbackDisabled(t *testing.T) {
	stub := newStubRunner()
	stub.stream["claude"] = func(sink io.Writer) *apperrors.Error { return spawnError("claude") }
	o := newTestOrchestrator(t, false, stub)

	var sink bytes.Buffer
	err := o.Stream(context.Background(), backend.Request{Prompt: "hi"}, &sink)
	if err == nil {
		t.Fatal("expected failure")
	}
	if stub.spawnCount() != 1 {
		t.Errorf("spawns = %d, want 1", stub.spawnCount())
	}
}

func TestStream_ValidationNeverSpawns(t *testing.T) {
	stub := newStubRunner()
	o := newTestOrchestrator(t, true, stub)

	var sink bytes.Buffer
	err := o.Stream(context.Background(), backend.Request{}, &sink)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if stub.spawnCount() != 0 {
		t.Errorf("spawns = %d", stub.spawnCount())
	}
	if sink.Len() != 0 {
		t.Errorf("sink should stay empty on validation failure, got %q", sink.String())
	}
}

func TestStream_DisconnectWritesNoRecord(t *testing.T) {
	stub := newStubRunner()
	stub.stream["claude"] = func(sink io.Writer) *apperrors.Error {
		return apperrors.New(apperrors.ErrCodeInternal, "client disconnected")
	}
	o := newTestOrchestrator(t, true, stub)

	var sink bytes.Buffer
	err := o.Stream(context.Background(), backend.Request{Prompt: "hi"}, &sink)
	if err == nil {
		t.Fatal("expected failure")
	}
	if sink.Len() != 0 {
		t.Errorf("no record should be written after a disconnect, got %q", sink.String())
	}
}
