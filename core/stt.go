package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/segmentation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTranscriptionTimeout = 15 * time.Second
	defaultTranscriptionRetries = 1
)

var ErrSpeechToTextNotConfigured = errors.New("speech-to-text client not configured")

type speechToText struct {
	// client stores the configured speech-to-text implementation.
	client SpeechToText

	timeout time.Duration
	retries int
}

func newSpeechToText(client SpeechToText) *speechToText {
	return &speechToText{
		client:  client,
		timeout: DefaultTranscriptionTimeout,
		retries: defaultTranscriptionRetries,
	}
}

func (s *speechToText) set(client SpeechToText) {
	if s != nil {
		s.client = client
	}
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

// Transcribe turns an utterance into text. Each attempt is bounded by the
// transcription timeout and a failed attempt is retried once.
func (s *speechToText) Transcribe(ctx context.Context, utterance segmentation.Utterance) (string, error) {
	if !s.isConfigured() {
		return "", ErrSpeechToTextNotConfigured
	}

	ctx, span := tracer.Start(ctx, "transcribe utterance", trace.WithAttributes(
		attribute.String("utterance.id", utterance.ID),
		attribute.Int64("utterance.duration_ms", utterance.Duration().Milliseconds()),
	))
	defer span.End()

	var errs error
	for attempt := 0; attempt <= s.retries; attempt++ {
		transcript, err := s.transcribeOnce(ctx, utterance.Audio, utterance.EncodingInfo)
		if err == nil {
			transcript = strings.TrimSpace(transcript)
			span.SetAttributes(attribute.Int("transcript.length", len(transcript)))
			return transcript, nil
		}

		errs = errors.Join(errs, err)
		if ctx.Err() != nil {
			break
		}
		logger.WarnContext(ctx, "transcription attempt failed", "utterance_id", utterance.ID, "attempt", attempt+1, "error", err)
	}

	err := fmt.Errorf("failed to transcribe utterance: %w", errs)
	span.RecordError(err)
	span.SetStatus(codes.Error, "transcription failed")
	return "", err
}

func (s *speechToText) transcribeOnce(ctx context.Context, data []byte, encodingInfo audio.EncodingInfo) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.Transcribe(ctx, data, encodingInfo)
}

func (s *speechToText) Close(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}
