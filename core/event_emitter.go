package orchestration

import events "github.com/koscakluka/ema-voice/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		logger.Debug("event", "kind", string(event.Kind()), "namespace", event.Kind().Namespace())
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.AssistantResponseFinal:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Response)
			}
		case events.AssistantPlaybackEnded:
			if opts.onPlaybackEnded != nil {
				opts.onPlaybackEnded(typedEvent.Text, typedEvent.Outcome)
			}
		case events.CaptureStateChanged:
			if opts.onListeningChanged != nil {
				opts.onListeningChanged(typedEvent.Listening)
			}
		case events.InterruptionReceived:
			if typedEvent.Acted && opts.onInterruption != nil {
				opts.onInterruption(typedEvent.Source)
			}
		case events.ShutdownRequested:
			if opts.onShutdownRequested != nil {
				opts.onShutdownRequested()
			}
		}
	}
}
