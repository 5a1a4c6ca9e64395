package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultResponseTimeout = 30 * time.Second

var ErrResponsePipelineNotConfigured = errors.New("response pipeline not configured")

// responsePipeline bounds calls to the configured ResponsePipeline. Response
// generation is not retried; a failed turn is dropped and the user can simply
// ask again.
type responsePipeline struct {
	client  ResponsePipeline
	timeout time.Duration
}

func newResponsePipeline(client ResponsePipeline) *responsePipeline {
	return &responsePipeline{client: client, timeout: DefaultResponseTimeout}
}

func (p *responsePipeline) set(client ResponsePipeline) {
	if p != nil {
		p.client = client
	}
}

func (p *responsePipeline) Respond(ctx context.Context, prompt string) (string, error) {
	if p == nil || p.client == nil {
		return "", ErrResponsePipelineNotConfigured
	}

	ctx, span := tracer.Start(ctx, "generate response", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	response, err := p.client.Respond(ctx, prompt)
	if err != nil {
		err = fmt.Errorf("failed to generate response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "response generation failed")
		return "", err
	}

	span.SetAttributes(attribute.Int("response.length", len(response)))
	return response, nil
}
