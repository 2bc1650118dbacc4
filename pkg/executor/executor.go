// Package executor owns the lifecycle of one external backend process:
// spawn, incremental output capture, timeout enforcement, forced
// termination, and exit interpretation. It knows nothing about which
// backend it is running.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/odvcencio/promptgate/pkg/errors"
	"github.com/odvcencio/promptgate/pkg/logging"
)

// DefaultTimeout bounds executions whose request carries no timeout.
const DefaultTimeout = 5 * time.Minute

// Result contains the captured output of a clean execution.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Executor runs external backend processes. Safe for concurrent use; each
// call owns its process exclusively.
type Executor struct {
	logger *logging.Logger
}

// New creates an executor. A nil logger is replaced with a no-op one.
func New(logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{logger: logger}
}

// Run spawns command with args and waits for it to exit. Standard input is
// closed, stdout and stderr are captured as they arrive, the caller's
// environment is inherited, and no shell interprets the arguments.
//
// A timer started at spawn time force-kills the process group once the
// timeout expires; the kill always wins a race against a subsequent clean
// exit, so a killed process can never report success. Failure to start at
// all returns a spawn error without ever starting the timer.
func (e *Executor) Run(ctx context.Context, command string, args []string, timeout time.Duration) (*Result, *apperrors.Error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd := exec.Command(command, args...)
	// Process group so the kill reaches any children the backend forks.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpawn, "stdout pipe").WithRetryable(true)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpawn, "stderr pipe").WithRetryable(true)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		e.logger.Error(logging.CategoryExecutor, "spawn_failed", err.Error(), map[string]any{
			"command": command,
		})
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpawn,
			fmt.Sprintf("failed to start %s", command)).WithRetryable(true)
	}

	var stdout, stderr bytes.Buffer
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := stdout.ReadFrom(stdoutPipe)
		return err
	})
	eg.Go(func() error {
		_, err := stderr.ReadFrom(stderrPipe)
		return err
	})

	var killed atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		// Flag first: whoever observes an exit after this point must
		// report the timeout, never a success.
		killed.Store(true)
		killGroup(cmd)
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		killGroup(cmd)
	})
	defer stop()

	// Pipe readers must finish before Wait closes the pipes.
	_ = eg.Wait()
	waitErr := cmd.Wait()
	duration := time.Since(started)

	if killed.Load() {
		e.logger.Warn(logging.CategoryExecutor, "timeout_kill", "", map[string]any{
			"command": command,
			"timeout": timeout.String(),
		})
		return nil, apperrors.New(apperrors.ErrCodeTimeout,
			fmt.Sprintf("%s exceeded timeout of %s", command, timeout)).
			WithContext("timeout", timeout.String()).
			WithRetryable(true)
	}
	if ctx.Err() != nil {
		return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeTimeout, "execution canceled")
	}

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCodeFromError(waitErr),
		Duration: duration,
	}

	if waitErr != nil {
		return nil, apperrors.New(apperrors.ErrCodeNonZeroExit,
			fmt.Sprintf("%s exited with code %d: %s",
				command, result.ExitCode, trimmedStderr(result.Stderr))).
			WithContext("exit_code", result.ExitCode).
			WithRetryable(true)
	}

	return result, nil
}

// killGroup sends SIGKILL to the process group.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		pgid = cmd.Process.Pid
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

// exitCodeFromError extracts the exit code from a Wait error.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// trimmedStderr bounds diagnostic text carried on exit errors.
func trimmedStderr(stderr []byte) string {
	const maxDiagnostic = 4096
	s := strings.TrimSpace(string(stderr))
	if len(s) > maxDiagnostic {
		s = s[:maxDiagnostic] + "…"
	}
	return s
}
