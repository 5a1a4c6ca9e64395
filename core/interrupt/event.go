// Package interrupt turns out-of-band user actions into interrupt events for
// the turn coordinator.
//
// Every source runs its own loop until its context is done and forwards one
// event per trigger. Sources never act on playback themselves.
package interrupt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

type Kind string

const (
	KindKeyPress     Kind = "key_press"
	KindVoiceCommand Kind = "voice_command"
	KindSignal       Kind = "signal"
)

type Event struct {
	Kind      Kind
	Timestamp time.Time
	// Detail describes the trigger, such as the key or phrase.
	Detail string
}

func NewEvent(kind Kind, detail string) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Detail: detail}
}

func (e Event) String() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Detail)
}

// Emit delivers an event. It must not block for long.
type Emit func(Event)

type Source interface {
	// Run listens for triggers until ctx is done.
	Run(ctx context.Context, emit Emit) error
}

// Listen runs all sources until ctx is done. A failing source is logged and
// the others keep running; the joined failures are returned once every
// source has stopped.
func Listen(ctx context.Context, emit Emit, sources ...Source) error {
	var group errgroup.Group
	failures := make([]error, len(sources))
	for i, source := range sources {
		if source == nil {
			continue
		}
		group.Go(func() error {
			if err := source.Run(ctx, emit); err != nil {
				logger.ErrorContext(ctx, "interrupt source stopped", "source", fmt.Sprintf("%T", source), "error", err)
				failures[i] = err
			}
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(failures...)
}

func record(ctx context.Context, emit Emit, event Event) {
	triggerCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(event.Kind))))
	logger.DebugContext(ctx, "interrupt triggered", "kind", event.Kind, "detail", event.Detail)
	emit(event)
}
