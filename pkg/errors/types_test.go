package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeValidation, "prompt is required")

	if err == nil {
		t.Fatal("New should return non-nil error")
	}

	if err.Code != ErrCodeValidation {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeValidation)
	}

	if err.Message != "prompt is required" {
		t.Errorf("Message = %v, want 'prompt is required'", err.Message)
	}

	if err.Underlying != nil {
		t.Error("Underlying should be nil for New error")
	}

	if len(err.Stack) == 0 {
		t.Error("Stack should be captured")
	}

	if err.Retryable {
		t.Error("Retryable should default to false")
	}
}

func TestWrap(t *testing.T) {
	underlying := errors.New("exec: \"claude\": executable file not found in $PATH")
	err := Wrap(underlying, ErrCodeSpawn, "failed to start backend")

	if err == nil {
		t.Fatal("Wrap should return non-nil error")
	}

	if err.Underlying != underlying {
		t.Error("Underlying should be preserved")
	}

	if err.Code != ErrCodeSpawn {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeSpawn)
	}

	if !strings.Contains(err.Error(), "executable file not found") {
		t.Error("Error string should include underlying error")
	}
}

func TestWrap_Nil(t *testing.T) {
	err := Wrap(nil, ErrCodeInternal, "test")
	if err != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeNonZeroExit, "backend exited").
		WithContext("backend", "gemini").
		WithContext("exit_code", 2)

	if err.Context["backend"] != "gemini" {
		t.Errorf("Context[backend] = %v, want gemini", err.Context["backend"])
	}

	msg := err.Error()
	if !strings.Contains(msg, "NON_ZERO_EXIT") {
		t.Errorf("Error() should include the code, got %q", msg)
	}
	if !strings.Contains(msg, "backend: gemini") {
		t.Errorf("Error() should include context, got %q", msg)
	}
}

func TestRetryable(t *testing.T) {
	err := New(ErrCodeTimeout, "backend exceeded 30s").WithRetryable(true)

	if !IsRetryable(err) {
		t.Error("IsRetryable should report true")
	}
	if IsRetryable(New(ErrCodeValidation, "bad request")) {
		t.Error("validation errors should not be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestIsCodeAndGetCode(t *testing.T) {
	err := New(ErrCodeSpawn, "binary missing")

	if !IsCode(err, ErrCodeSpawn) {
		t.Error("IsCode should match")
	}
	if IsCode(err, ErrCodeTimeout) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(nil, ErrCodeSpawn) {
		t.Error("IsCode(nil) should be false")
	}

	if got := GetCode(err); got != ErrCodeSpawn {
		t.Errorf("GetCode = %v, want %v", got, ErrCodeSpawn)
	}
	if got := GetCode(errors.New("plain")); got != ErrCodeInternal {
		t.Errorf("GetCode(plain) = %v, want %v", got, ErrCodeInternal)
	}
	if got := GetCode(nil); got != ErrorCode("") {
		t.Errorf("GetCode(nil) = %v, want empty", got)
	}
}

func TestNewAggregate(t *testing.T) {
	primary := New(ErrCodeTimeout, "backend exceeded 10s").WithRetryable(true)
	fallback := New(ErrCodeNonZeroExit, "exit code 1").WithRetryable(true)

	agg := NewAggregate("claude", "gemini", primary, fallback)

	if agg.Code != ErrCodeAggregate {
		t.Fatalf("Code = %v, want %v", agg.Code, ErrCodeAggregate)
	}
	if agg.Retryable {
		t.Error("aggregate errors must not be retryable")
	}

	msg := agg.Error()
	for _, want := range []string{"claude", "gemini", "exceeded 10s", "exit code 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("aggregate message missing %q: %q", want, msg)
		}
	}

	p, f, ok := AggregateCauses(agg)
	if !ok {
		t.Fatal("AggregateCauses should recognize an aggregate error")
	}
	if !strings.Contains(p, "TIMEOUT") || !strings.Contains(f, "NON_ZERO_EXIT") {
		t.Errorf("causes = %q / %q", p, f)
	}

	if _, _, ok := AggregateCauses(primary); ok {
		t.Error("AggregateCauses should reject non-aggregate errors")
	}
}

func TestUnwrap(t *testing.T) {
	underlying := errors.New("os refusal")
	err := Wrap(underlying, ErrCodeSpawn, "spawn")

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
}
