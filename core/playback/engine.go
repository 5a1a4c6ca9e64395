// Package playback synthesizes response text and plays it through an audio
// sink as cancellable jobs.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSynthesisTimeout = 15 * time.Second
	defaultSynthesisRetries = 1
)

var (
	ErrEmptyText     = errors.New("nothing to speak")
	ErrNotConfigured = errors.New("playback engine is missing a synthesizer or sink")
)

type Engine struct {
	synthesizer Synthesizer
	sink        Sink

	synthesisTimeout time.Duration
	synthesisRetries int

	onJobEnded func(*Job)
}

type EngineOption func(*Engine)

// WithSynthesisTimeout bounds every synthesis attempt.
func WithSynthesisTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if timeout > 0 {
			e.synthesisTimeout = timeout
		}
	}
}

// WithSynthesisRetries sets how many times a failed synthesis is retried.
func WithSynthesisRetries(retries int) EngineOption {
	return func(e *Engine) {
		if retries >= 0 {
			e.synthesisRetries = retries
		}
	}
}

// WithJobEndedCallback is called on the job goroutine after a job ends.
func WithJobEndedCallback(callback func(*Job)) EngineOption {
	return func(e *Engine) {
		if callback != nil {
			e.onJobEnded = callback
		}
	}
}

func NewEngine(synthesizer Synthesizer, sink Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		synthesizer:      synthesizer,
		sink:             sink,
		synthesisTimeout: DefaultSynthesisTimeout,
		synthesisRetries: defaultSynthesisRetries,
		onJobEnded:       func(*Job) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Play starts a job for text and returns as soon as the job exists. Synthesis
// and playback happen on the job's own goroutine; callers wait on Done.
func (e *Engine) Play(ctx context.Context, text string) (*Job, error) {
	if e == nil || e.synthesizer == nil || e.sink == nil {
		return nil, ErrNotConfigured
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	job := newJob(ctx, text)
	go e.run(job)
	return job, nil
}

func (e *Engine) run(job *Job) {
	ctx, span := tracer.Start(job.ctx, "play speech", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int("text.length", len(job.Text)),
	))
	defer span.End()

	outcome, err := e.playJob(ctx, job)
	if outcome == OutcomeFailed {
		span.RecordError(err)
		span.SetStatus(codes.Error, "playback failed")
		logger.ErrorContext(ctx, "playback job failed", "job_id", job.ID, "error", err)
	}
	span.SetAttributes(attribute.String("outcome", outcome.String()))

	if !job.finish(outcome, err) {
		return
	}
	jobCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	e.onJobEnded(job)
}

func (e *Engine) playJob(ctx context.Context, job *Job) (Outcome, error) {
	speech, err := e.synthesize(ctx, job)
	if job.cancelled() {
		speech.Release()
		return OutcomeCancelled, nil
	} else if err != nil {
		return OutcomeFailed, err
	}
	defer speech.Release()

	err = e.sink.Play(ctx, speech)
	switch {
	case job.cancelled():
		return OutcomeCancelled, nil
	case err != nil:
		return OutcomeFailed, fmt.Errorf("failed to play speech: %w", err)
	default:
		return OutcomeCompleted, nil
	}
}

func (e *Engine) synthesize(ctx context.Context, job *Job) (*Speech, error) {
	var errs error
	for attempt := 0; attempt <= e.synthesisRetries; attempt++ {
		if attempt > 0 {
			synthesisRetryCounter.Add(ctx, 1)
			logger.WarnContext(ctx, "retrying speech synthesis", "job_id", job.ID, "attempt", attempt+1)
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, e.synthesisTimeout)
		speech, err := e.synthesizer.Synthesize(attemptCtx, job.Text)
		cancel()
		synthesisDuration.Record(ctx, time.Since(start).Seconds())

		if err == nil {
			if speech == nil {
				return nil, fmt.Errorf("synthesizer returned no speech")
			}
			return speech, nil
		}
		errs = errors.Join(errs, err)
		if job.cancelled() {
			break
		}
	}

	return nil, fmt.Errorf("failed to synthesize speech: %w", errs)
}
