package processors

import (
	"context"
	"fmt"

	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/pipeline"
	"catalogsync/internal/worker/processors/validation"
)

// Runner is the part of *pipeline.Runner the processor drives.
type Runner interface {
	Sync(ctx context.Context, opts pipeline.SyncOptions) (*pipeline.Report, error)
	Split(ctx context.Context, opts pipeline.SplitOptions) (*pipeline.Report, error)
}

type RequestProcessor struct {
	runner Runner
	logger *logger.Logger
}

func NewRequestProcessor(runner Runner, logger *logger.Logger) *RequestProcessor {
	return &RequestProcessor{runner: runner, logger: logger}
}

// Process runs one queued request to completion.
func (rp *RequestProcessor) Process(ctx context.Context, req events.Request) error {
	if err := validation.ValidateRequest(req); err != nil {
		return err
	}
	rp.logger.Debug("Processing request: %+v", req)

	var (
		report *pipeline.Report
		err    error
	)
	switch req.Type {
	case events.TypeSyncRequested:
		report, err = rp.runner.Sync(ctx, pipeline.SyncOptions{Limit: req.Limit})
	case events.TypeSplitRequested:
		report, err = rp.runner.Split(ctx, pipeline.SplitOptions{ChunkSize: req.ChunkSize})
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", req.Type, err)
	}

	rp.logger.Info("%s finished as run %s", req.Type, report.Run.ID)
	return nil
}
