package orchestration

import (
	"context"
	"strings"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/interrupt"
)

// Interrupt stops the active playback, if any. It is safe to call from any
// goroutine; interrupts while nothing is playing are ignored.
func (o *Orchestrator) Interrupt(event interrupt.Event) {
	if o == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event = interrupt.NewEvent(event.Kind, event.Detail)
	}
	o.coordinator.interrupt(event)
}

// SendPrompt handles text as if the user had said it.
func (o *Orchestrator) SendPrompt(ctx context.Context, prompt string) {
	if o == nil {
		return
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return
	}
	o.emit(events.NewUserTranscriptFinal(prompt, false))
	o.handleTranscript(ctx, prompt)
}

// Speak plays text without consulting the response pipeline.
func (o *Orchestrator) Speak(text string) {
	if o == nil {
		return
	}
	o.coordinator.respond(text, nil)
}

// IsListening reports whether capture is accepting audio.
func (o *Orchestrator) IsListening() bool { return o != nil && o.capture.IsListening() }

// IsSpeaking reports whether a playback job is active.
func (o *Orchestrator) IsSpeaking() bool { return o != nil && !o.capture.IsListening() }
