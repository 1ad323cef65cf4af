package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/stream"
)

// ErrScanFailed wraps the message of an error terminal
var ErrScanFailed = errors.New("scan failed")

// waitBuffer is the stream buffer for in-process consumers
const waitBuffer = 16

// RunAndWait runs req to completion for in-process callers (the CLI and MCP tools).
// onEvent, if set, sees every event in order; the result is the complete payload.
func (r *Runner) RunAndWait(ctx context.Context, req Request, onEvent func(models.StreamEvent)) (models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return models.AnalysisResult{}, err
	}

	jobID := common.NewJobID()
	pub := stream.NewPublisher(ctx, jobID, waitBuffer, r.logger)

	common.SafeGo(r.logger, "scan-"+jobID, func() {
		if err := r.Run(ctx, req, pub); err != nil {
			r.logger.Debug().Err(err).Str("job_id", jobID).Msg("Scan job ended with error")
		}
	})

	var (
		result   models.AnalysisResult
		failure  error
		terminal bool
	)
	for ev := range pub.Events() {
		if onEvent != nil {
			onEvent(ev)
		}
		switch ev.Stage {
		case models.StageComplete:
			terminal = true
			if res, ok := ev.Payload.(models.AnalysisResult); ok {
				result = res
			}
		case models.StageError:
			terminal = true
			failure = fmt.Errorf("%w: %s", ErrScanFailed, ev.Message)
		}
	}

	if !terminal {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		return result, fmt.Errorf("%w: stream ended without a result", ErrScanFailed)
	}
	return result, failure
}
