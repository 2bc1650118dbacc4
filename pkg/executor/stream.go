package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	apperrors "github.com/odvcencio/promptgate/pkg/errors"
	"github.com/odvcencio/promptgate/pkg/logging"
)

// Stream spawns command with args and forwards every chunk of standard
// output to sink as it arrives, one write per arrival, without buffering or
// reparsing. Standard error is captured and logged, never relayed.
//
// Context cancellation (the caller disconnected) kills the process group
// immediately and suppresses any further sink writes. A failure to start is
// returned as a spawn error so the caller can distinguish "nothing was ever
// produced" from a mid-stream failure.
func (e *Executor) Stream(ctx context.Context, command string, args []string, timeout time.Duration, sink io.Writer) *apperrors.Error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd := exec.Command(command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSpawn, "stdout pipe").WithRetryable(true)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSpawn, "stderr pipe").WithRetryable(true)
	}

	if err := cmd.Start(); err != nil {
		e.logger.Error(logging.CategoryStream, "spawn_failed", err.Error(), map[string]any{
			"command": command,
		})
		return apperrors.Wrap(err, apperrors.ErrCodeSpawn,
			fmt.Sprintf("failed to start %s", command)).WithRetryable(true)
	}

	var killed, disconnected atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		killed.Store(true)
		killGroup(cmd)
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		disconnected.Store(true)
		killGroup(cmd)
	})
	defer stop()

	// Drain stderr concurrently so the backend never blocks on a full pipe.
	stderrDone := make(chan []byte, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(stderrPipe)
		stderrDone <- buf.Bytes()
	}()

	relayErr := e.relay(stdoutPipe, sink, &disconnected, func() { killGroup(cmd) })

	stderr := <-stderrDone
	waitErr := cmd.Wait()

	if len(stderr) > 0 {
		e.logger.Warn(logging.CategoryStream, "backend_stderr", trimmedStderr(stderr), map[string]any{
			"command": command,
		})
	}

	if killed.Load() {
		return apperrors.New(apperrors.ErrCodeTimeout,
			fmt.Sprintf("%s exceeded timeout of %s", command, timeout)).
			WithContext("timeout", timeout.String()).
			WithRetryable(true)
	}
	if disconnected.Load() || ctx.Err() != nil {
		// The caller is gone; nothing left to report to anyone.
		disconnectErr := apperrors.New(apperrors.ErrCodeInternal, "client disconnected")
		disconnectErr.Underlying = ctx.Err()
		return disconnectErr
	}
	if relayErr != nil {
		return apperrors.Wrap(relayErr, apperrors.ErrCodeInternal, "relaying output")
	}
	if waitErr != nil {
		code := exitCodeFromError(waitErr)
		return apperrors.New(apperrors.ErrCodeNonZeroExit,
			fmt.Sprintf("%s exited with code %d: %s", command, code, trimmedStderr(stderr))).
			WithContext("exit_code", code).
			WithRetryable(true)
	}
	return nil
}

// relay copies stdout chunks to the sink until EOF, skipping writes once the
// caller has disconnected.
func (e *Executor) relay(stdout io.Reader, sink io.Writer, disconnected *atomic.Bool, kill func()) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 && !disconnected.Load() {
			if _, werr := sink.Write(buf[:n]); werr != nil {
				// Sink failure means the caller is gone; stop writing,
				// terminate the backend, and keep draining until it dies.
				disconnected.Store(true)
				kill()
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
