package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/odvcencio/promptgate/pkg/backend"
	apperrors "github.com/odvcencio/promptgate/pkg/errors"
	"github.com/odvcencio/promptgate/pkg/logging"
)

// MaxBatchItems bounds how many prompts one batch may carry. The sequencer
// runs items strictly one at a time, so the bound also caps the total
// process count a batch can ever cause.
const MaxBatchItems = 10

// BatchItem is one entry in a batch: a bare prompt, or a prompt with
// per-item overrides layered over the batch-wide options.
type BatchItem struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	Backend        string `json:"backend,omitempty"`
	TimeoutSeconds int    `json:"timeout,omitempty"`
}

// UnmarshalJSON accepts either a bare prompt string or the object form.
func (b *BatchItem) UnmarshalJSON(data []byte) error {
	var prompt string
	if err := json.Unmarshal(data, &prompt); err == nil {
		b.Prompt = prompt
		return nil
	}

	type item BatchItem
	var obj item
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*b = BatchItem(obj)
	return nil
}

// BatchItemResult pairs a successful result with its original position.
type BatchItemResult struct {
	Index int `json:"index"`
	*ExecutionResult
}

// BatchError records one failed item without aborting the rest.
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchSummary totals the batch outcome.
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchResult is the final output of a batch run.
type BatchResult struct {
	Results []BatchItemResult `json:"results"`
	Errors  []BatchError      `json:"errors"`
	Summary BatchSummary      `json:"summary"`
}

// RunBatch executes the items strictly in input order through the fallback
// orchestrator. A later item never starts before the previous item's
// process has fully exited. Oversized batches are rejected before anything
// is spawned.
func (o *Orchestrator) RunBatch(ctx context.Context, items []BatchItem, common backend.Request) (*BatchResult, *apperrors.Error) {
	if len(items) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "batch requires at least one item")
	}
	if len(items) > MaxBatchItems {
		return nil, apperrors.New(apperrors.ErrCodeValidation,
			fmt.Sprintf("batch of %d items exceeds the maximum of %d", len(items), MaxBatchItems))
	}

	out := &BatchResult{
		Results: make([]BatchItemResult, 0, len(items)),
		Errors:  make([]BatchError, 0),
		Summary: BatchSummary{Total: len(items)},
	}

	for i, item := range items {
		req := layerItem(common, item)

		result, err := o.Run(ctx, req)
		if err != nil {
			out.Errors = append(out.Errors, BatchError{Index: i, Error: err.Error()})
			out.Summary.Failed++
			o.logger.Warn(logging.CategoryBatch, "item_failed", err.Message, map[string]any{
				"index": i,
			})
			continue
		}
		out.Results = append(out.Results, BatchItemResult{Index: i, ExecutionResult: result})
		out.Summary.Succeeded++
	}

	o.logger.Info(logging.CategoryBatch, "batch_complete", "", map[string]any{
		"total":     out.Summary.Total,
		"succeeded": out.Summary.Succeeded,
		"failed":    out.Summary.Failed,
	})
	return out, nil
}

// layerItem applies the per-item overrides on top of the batch-wide options.
func layerItem(common backend.Request, item BatchItem) backend.Request {
	req := common
	req.Prompt = item.Prompt
	if item.Model != "" {
		req.Model = item.Model
	}
	if item.SystemPrompt != "" {
		req.SystemPrompt = item.SystemPrompt
	}
	if item.Backend != "" {
		req.Backend = item.Backend
	}
	if item.TimeoutSeconds > 0 {
		req.TimeoutSeconds = item.TimeoutSeconds
		req.Timeout = 0
	}
	return req
}
