package service

import (
	"context"

	"audionote-backend/dto"
)

// Dispatcher hands an uploaded recording to the processing pipeline. The
// result is nil when processing happens out of band.
type Dispatcher interface {
	Dispatch(ctx context.Context, message dto.ProcessMessage) (*dto.ProcessResult, error)
}

type inlineDispatcher struct {
	pipeline Pipeline
}

// NewInlineDispatcher runs the pipeline inside the calling request.
func NewInlineDispatcher(pipeline Pipeline) Dispatcher {
	return &inlineDispatcher{pipeline: pipeline}
}

func (d *inlineDispatcher) Dispatch(ctx context.Context, message dto.ProcessMessage) (*dto.ProcessResult, error) {
	return d.pipeline.Process(ctx, message)
}
