package relay

import (
	"context"
	"encoding/json"
	"io"

	"github.com/odvcencio/promptgate/pkg/backend"
	apperrors "github.com/odvcencio/promptgate/pkg/errors"
	"github.com/odvcencio/promptgate/pkg/logging"
)

// streamFailure is the single inline record appended to a stream whose
// backend failed after (or without) producing output. Already-relayed bytes
// are never retracted.
type streamFailure struct {
	Type     string `json:"type"`
	Backend  string `json:"backend"`
	Error    string `json:"error"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// Stream runs the request in live-output mode, forwarding raw stdout bytes
// to sink as they arrive. Recovery is limited to spawn-time failure: if the
// primary never starts and fallback is eligible, the whole sequence restarts
// once on the alternate backend with fallback disabled for that restart.
// Any failure after the process started yields one inline failure record;
// the stream is then closed by the caller.
func (o *Orchestrator) Stream(ctx context.Context, req backend.Request, sink io.Writer) *apperrors.Error {
	if err := req.Validate(o.opts.MaxPromptBytes); err != nil {
		metricRequests.WithLabelValues("none", "validation_failed").Inc()
		return err
	}
	timeout := o.timeoutFor(req)

	metricActiveStreams.Inc()
	defer metricActiveStreams.Dec()

	b := o.primaryFor(req)
	canRestart := o.opts.FallbackEnabled && !req.NoFallback

	// Bounded recovery: at most one restart, only for spawn-time failure.
	var primaryErr *apperrors.Error
	for attempt := 0; attempt < 2; attempt++ {
		metricSpawns.WithLabelValues(b.Name()).Inc()
		err := o.exec.Stream(ctx, b.Command(), b.BuildArgs(req), timeout, sink)
		if err == nil {
			metricRequests.WithLabelValues(b.Name(), "ok").Inc()
			return nil
		}
		err.WithContext("backend", b.Name())
		metricRequests.WithLabelValues(b.Name(), "failed").Inc()

		if apperrors.IsCode(err, apperrors.ErrCodeSpawn) && canRestart && attempt == 0 {
			primaryErr = err
			fb := o.registry.Other(b.Name())
			metricFallbacks.WithLabelValues(b.Name()).Inc()
			o.logger.Warn(logging.CategoryStream, "stream_restart", err.Message, map[string]any{
				"primary":  b.Name(),
				"fallback": fb.Name(),
			})
			b = fb
			canRestart = false
			continue
		}

		if primaryErr != nil && apperrors.IsCode(err, apperrors.ErrCodeSpawn) {
			// Both backends refused to start.
			agg := apperrors.NewAggregate(o.registry.Other(b.Name()).Name(), b.Name(), primaryErr, err)
			o.writeFailureRecord(ctx, sink, b.Name(), agg)
			return agg
		}

		o.writeFailureRecord(ctx, sink, b.Name(), err)
		return err
	}
	return primaryErr
}

// writeFailureRecord appends the inline failure record, unless the caller
// has already disconnected.
func (o *Orchestrator) writeFailureRecord(ctx context.Context, sink io.Writer, backendName string, failure *apperrors.Error) {
	if ctx.Err() != nil || apperrors.IsCode(failure, apperrors.ErrCodeInternal) {
		return
	}

	record := streamFailure{
		Type:    "error",
		Backend: backendName,
		Error:   failure.Message,
	}
	if code, ok := failure.Context["exit_code"].(int); ok {
		record.ExitCode = &code
	}

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	data = append(data, '\n')
	if _, err := sink.Write(data); err != nil {
		o.logger.Warn(logging.CategoryStream, "failure_record_dropped", err.Error(), nil)
	}
}
