// Package transcribe sequences the normalization and inference stages of a
// transcription job with cooperative cancellation checkpoints between them.
package transcribe

import (
	"context"
	"fmt"

	"speech-transcriber/internal/audio"
	"speech-transcriber/internal/domain"
)

// Request carries the decoded input and execution callbacks for one run.
type Request struct {
	Audio      audio.Buffer
	OnStage    func(stage domain.Stage)
	OnProgress func(fraction float64)
}

// Result contains the finished transcript.
type Result struct {
	Text string
}

// transcriber abstracts the inference engine behind the pipeline.
type transcriber interface {
	Transcribe(ctx context.Context, buf audio.Buffer) (string, error)
}

// PipelineError is a stage-aware error wrapper.
type PipelineError struct {
	Stage   domain.Stage
	Message string
	Err     error
}

// Error formats pipeline failures for logs and observers.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Pipeline runs resampling and inference over an already-decoded buffer.
// Ownership of the buffer transfers stage to stage; nothing is mutated in
// place.
type Pipeline struct {
	engine transcriber
}

// NewPipeline constructs a pipeline over the given inference engine.
func NewPipeline(engine transcriber) *Pipeline {
	return &Pipeline{engine: engine}
}

// Run resamples the input to mono 16 kHz and transcribes it. Cancellation is
// honored at the checkpoints before each stage; once inference has started
// it cannot be interrupted, so a cancel during it surfaces after the engine
// call returns.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	emitStage(req.OnStage, domain.StageResampling)
	emitProgress(req.OnProgress, 0)

	normalized, err := audio.Resample(req.Audio)
	if err != nil {
		return Result{}, &PipelineError{
			Stage:   domain.StageResampling,
			Message: "sample rate conversion failed",
			Err:     err,
		}
	}
	emitProgress(req.OnProgress, 0.5)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	emitStage(req.OnStage, domain.StageTranscribing)
	text, err := p.engine.Transcribe(ctx, normalized)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &PipelineError{
			Stage:   domain.StageTranscribing,
			Message: "inference failed",
			Err:     err,
		}
	}

	if err := ctx.Err(); err != nil {
		// Cancellation arrived mid-inference; the finished result is
		// discarded at this checkpoint.
		return Result{}, err
	}
	emitProgress(req.OnProgress, 1)

	return Result{Text: text}, nil
}

// emitStage forwards stage updates when a callback is configured.
func emitStage(cb func(domain.Stage), stage domain.Stage) {
	if cb != nil {
		cb(stage)
	}
}

// emitProgress forwards progress fractions when a callback is configured.
func emitProgress(cb func(float64), fraction float64) {
	if cb != nil {
		cb(fraction)
	}
}
