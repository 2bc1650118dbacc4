// Package relay drives prompt requests through the backend pair: one
// attempt on the chosen backend, at most one fallback attempt on the
// alternate, and provenance tagging on the way out. It also hosts the
// streaming relay and the sequential batch sequencer built on the same
// adapter/executor machinery.
package relay

import (
	"context"
	"io"
	"time"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/config"
	apperrors "github.com/odvcencio/promptgate/pkg/errors"
	"github.com/odvcencio/promptgate/pkg/executor"
	"github.com/odvcencio/promptgate/pkg/logging"
)

// runner is the process-spawning capability the orchestrator drives.
// Satisfied by *executor.Executor; stubbed in tests.
type runner interface {
	Run(ctx context.Context, command string, args []string, timeout time.Duration) (*executor.Result, *apperrors.Error)
	Stream(ctx context.Context, command string, args []string, timeout time.Duration, sink io.Writer) *apperrors.Error
}

// Options is the immutable configuration threaded through construction.
// There is no process-wide mutable state: two orchestrators with different
// options coexist without interference.
type Options struct {
	DefaultBackend  string
	FallbackEnabled bool
	DefaultTimeout  time.Duration
	MaxTimeout      time.Duration
	MaxPromptBytes  int
}

// Orchestrator owns the single-retry fallback state machine.
type Orchestrator struct {
	opts     Options
	registry *backend.Registry
	exec     runner
	logger   *logging.Logger
}

// New creates an orchestrator from configuration.
func New(cfg *config.Config, registry *backend.Registry, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		opts: Options{
			DefaultBackend:  cfg.DefaultBackend,
			FallbackEnabled: cfg.FallbackEnabled,
			DefaultTimeout:  cfg.Timeout,
			MaxTimeout:      cfg.MaxTimeout,
			MaxPromptBytes:  cfg.MaxPromptBytes,
		},
		registry: registry,
		exec:     executor.New(logger),
		logger:   logger,
	}
}

// Run executes the request on the primary backend and, when eligible, on
// the fallback backend exactly once. The fallback request is identical to
// the primary one; only the backend changes.
func (o *Orchestrator) Run(ctx context.Context, req backend.Request) (*ExecutionResult, *apperrors.Error) {
	if err := req.Validate(o.opts.MaxPromptBytes); err != nil {
		metricRequests.WithLabelValues("none", "validation_failed").Inc()
		return nil, err
	}
	timeout := o.timeoutFor(req)

	primary := o.primaryFor(req)
	result, primaryErr := o.attempt(ctx, primary, req, timeout, false)
	if primaryErr == nil {
		return result, nil
	}

	if !o.fallbackEligible(req, primaryErr) {
		return nil, primaryErr
	}

	fb := o.registry.Other(primary.Name())
	metricFallbacks.WithLabelValues(primary.Name()).Inc()
	o.logger.Warn(logging.CategoryRelay, "fallback_attempt", primaryErr.Message, map[string]any{
		"primary":  primary.Name(),
		"fallback": fb.Name(),
	})

	result, fallbackErr := o.attempt(ctx, fb, req, timeout, true)
	if fallbackErr == nil {
		return result, nil
	}

	return nil, apperrors.NewAggregate(primary.Name(), fb.Name(), primaryErr, fallbackErr)
}

// attempt runs the request on one backend and tags the outcome.
func (o *Orchestrator) attempt(ctx context.Context, b backend.Backend, req backend.Request, timeout time.Duration, isFallback bool) (*ExecutionResult, *apperrors.Error) {
	args := b.BuildArgs(req)
	metricSpawns.WithLabelValues(b.Name()).Inc()

	started := time.Now()
	res, err := o.exec.Run(ctx, b.Command(), args, timeout)
	metricDuration.WithLabelValues(b.Name()).Observe(time.Since(started).Seconds())

	if err != nil {
		metricRequests.WithLabelValues(b.Name(), "failed").Inc()
		err.WithContext("backend", b.Name())
		return nil, err
	}

	metricRequests.WithLabelValues(b.Name(), "ok").Inc()
	o.logger.Info(logging.CategoryRelay, "request_complete", "", map[string]any{
		"backend":       b.Name(),
		"fallback_used": isFallback,
		"duration_ms":   res.Duration.Milliseconds(),
	})
	return buildResult(res, b.Name(), isFallback, req.OutputFormat), nil
}

// primaryFor resolves the backend the request starts on.
func (o *Orchestrator) primaryFor(req backend.Request) backend.Backend {
	name := req.Backend
	if name == "" {
		name = o.opts.DefaultBackend
	}
	b, err := o.registry.For(name)
	if err != nil {
		// Validate already rejected unknown names; the default backend is
		// config-validated. Fall back to the configured default pair.
		b = o.registry.Other(backend.NameGemini)
	}
	return b
}

// fallbackEligible reports whether a failed primary attempt may be retried
// on the alternate backend.
func (o *Orchestrator) fallbackEligible(req backend.Request, err *apperrors.Error) bool {
	return o.opts.FallbackEnabled && !req.NoFallback && err.IsRetryable()
}

// timeoutFor clamps the request timeout into the configured window.
func (o *Orchestrator) timeoutFor(req backend.Request) time.Duration {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.opts.DefaultTimeout
	}
	if o.opts.MaxTimeout > 0 && timeout > o.opts.MaxTimeout {
		timeout = o.opts.MaxTimeout
	}
	return timeout
}

// Registry exposes the backend pair for read-only inspection.
func (o *Orchestrator) Registry() *backend.Registry {
	return o.registry
}
