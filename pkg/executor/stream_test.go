package executor

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/odvcencio/promptgate/pkg/errors"
)

// chunkSink records each write separately so ordering can be asserted.
type chunkSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *chunkSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, append([]byte(nil), p...))
	return len(p), nil
}

func (s *chunkSink) combined() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	for _, c := range s.chunks {
		buf.Write(c)
	}
	return buf.String()
}

func TestStream_RelaysChunksInOrder(t *testing.T) {
	e := New(nil)
	sink := &chunkSink{}

	err := e.Stream(context.Background(), "sh",
		[]string{"-c", "printf a; sleep 0.05; printf b; sleep 0.05; printf c"},
		time.Minute, sink)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if got := sink.combined(); got != "abc" {
		t.Errorf("relayed bytes = %q, want %q", got, "abc")
	}
}

func TestStream_NonZeroExitAfterOutput(t *testing.T) {
	e := New(nil)
	sink := &chunkSink{}

	err := e.Stream(context.Background(), "sh",
		[]string{"-c", "printf partial; exit 2"}, time.Minute, sink)
	if err == nil {
		t.Fatal("expected non-zero exit failure")
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeNonZeroExit) {
		t.Errorf("code = %v, want NON_ZERO_EXIT", apperrors.GetCode(err))
	}
	if err.Context["exit_code"] != 2 {
		t.Errorf("exit_code = %v, want 2", err.Context["exit_code"])
	}
	// Already-relayed bytes are never retracted.
	if got := sink.combined(); got != "partial" {
		t.Errorf("relayed bytes = %q, want %q", got, "partial")
	}
}

func TestStream_StderrNotRelayed(t *testing.T) {
	e := New(nil)
	sink := &chunkSink{}

	err := e.Stream(context.Background(), "sh",
		[]string{"-c", "echo visible; echo hidden >&2"}, time.Minute, sink)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	got := sink.combined()
	if got != "visible\n" {
		t.Errorf("relayed bytes = %q, stderr must not be relayed", got)
	}
}

func TestStream_SpawnFailure(t *testing.T) {
	e := New(nil)
	sink := &chunkSink{}

	err := e.Stream(context.Background(), "/nonexistent/binary-xyz", nil, time.Minute, sink)
	if err == nil {
		t.Fatal("expected spawn failure")
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeSpawn) {
		t.Errorf("code = %v, want SPAWN_FAILURE", apperrors.GetCode(err))
	}
	if len(sink.chunks) != 0 {
		t.Error("no bytes should reach the sink when spawn fails")
	}
}

func TestStream_Timeout(t *testing.T) {
	e := New(nil)
	sink := &chunkSink{}

	started := time.Now()
	err := e.Stream(context.Background(), "sh",
		[]string{"-c", "printf head; sleep 30"}, 100*time.Millisecond, sink)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeTimeout) {
		t.Errorf("code = %v, want TIMEOUT", apperrors.GetCode(err))
	}
	if got := sink.combined(); got != "head" {
		t.Errorf("bytes produced before the kill should be kept, got %q", got)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("timeout enforcement took %v", elapsed)
	}
}

// failingSink simulates a disconnected client.
type failingSink struct {
	writes int
}

func (s *failingSink) Write(p []byte) (int, error) {
	s.writes++
	return 0, errors.New("client gone")
}

func TestStream_DisconnectKillsProcess(t *testing.T) {
	e := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	sink := &chunkSink{}
	started := time.Now()
	err := e.Stream(ctx, "sleep", []string{"30"}, time.Minute, sink)
	if err == nil {
		t.Fatal("expected disconnect failure")
	}
	if err.IsRetryable() {
		t.Error("disconnect must not trigger a restart")
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("disconnect handling took %v", elapsed)
	}
}

func TestStream_SinkFailureStopsWrites(t *testing.T) {
	e := New(nil)
	sink := &failingSink{}

	started := time.Now()
	_ = e.Stream(context.Background(), "sh",
		[]string{"-c", "printf a; sleep 0.2; printf b; sleep 30"}, time.Minute, sink)

	if sink.writes > 1 {
		t.Errorf("writes after the first failure = %d, want none", sink.writes-1)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("sink failure handling took %v, process should have been killed", elapsed)
	}
}
