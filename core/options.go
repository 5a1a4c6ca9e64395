package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/interrupt"
	"github.com/koscakluka/ema-voice/core/playback"
	"github.com/koscakluka/ema-voice/core/segmentation"
)

type OrchestratorOption func(*Orchestrator)

// AudioSource is a capture device. Stream delivers raw linear16 audio to
// onAudio from the device callback and blocks until ctx is done.
type AudioSource interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	Close()
}

func WithAudioInput(client AudioSource) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput.Set(client) }
}

// WithFrameDuration sets the size of the frames handed to segmentation.
func WithFrameDuration(duration time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if duration > 0 {
			o.audioInput.frameDuration = duration
		}
	}
}

// SpeechToText transcribes a complete utterance. An empty transcript means
// nothing intelligible was said.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, encodingInfo audio.EncodingInfo) (string, error)
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText.set(client) }
}

func WithTranscriptionTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.speechToText.timeout = timeout
		}
	}
}

// ResponsePipeline produces the assistant's answer to a user prompt.
type ResponsePipeline interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

func WithResponsePipeline(client ResponsePipeline) OrchestratorOption {
	return func(o *Orchestrator) { o.responsePipeline.set(client) }
}

func WithResponseTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.responsePipeline.timeout = timeout
		}
	}
}

func WithTextToSpeechClient(client playback.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = client }
}

func WithAudioOutput(client playback.Sink) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput = client }
}

// AudioOutput is a buffered output device. SendAudio queues audio without
// blocking, Mark calls back once everything queued before it has played and
// ClearBuffer drops queued audio and pending marks.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
	Mark(mark string, callback func(string)) error
}

// WithBufferedAudioOutput plays speech through a buffered output device.
func WithBufferedAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) {
		if output := newAudioOutput(client); output != nil {
			o.audioOutput = output
		}
	}
}

// WithPlaybackOptions configures the playback engine built from the text to
// speech client and audio output.
func WithPlaybackOptions(opts ...playback.EngineOption) OrchestratorOption {
	return func(o *Orchestrator) { o.playbackOptions = append(o.playbackOptions, opts...) }
}

func WithSegmentationConfig(config segmentation.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.segmentationConfig = config }
}

// WithCancelGrace bounds how long an interrupt waits for playback to stop
// before capture resumes regardless.
func WithCancelGrace(grace time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if grace > 0 {
			o.coordinator.cancelGrace = grace
		}
	}
}

// WithMaxQueuedResponses bounds responses waiting for the active playback.
func WithMaxQueuedResponses(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.coordinator.maxQueuedResponses = n
		}
	}
}

func WithInterruptSources(sources ...interrupt.Source) OrchestratorOption {
	return func(o *Orchestrator) { o.interruptSources = append(o.interruptSources, sources...) }
}

// WithStopPhrases replaces the phrases that interrupt playback when spoken.
func WithStopPhrases(phrases ...string) OrchestratorOption {
	return func(o *Orchestrator) { o.stopPhrases = phrases }
}

// WithExitPhrases replaces the phrases that end the session when spoken.
func WithExitPhrases(phrases ...string) OrchestratorOption {
	return func(o *Orchestrator) { o.exitPhrases = phrases }
}

// WithFarewell sets what is said before the session ends on an exit phrase.
func WithFarewell(farewell string) OrchestratorOption {
	return func(o *Orchestrator) { o.farewell = farewell }
}

// WithSpeakerNames lists labels stripped from the start of responses, as in
// "Max: hello".
func WithSpeakerNames(names ...string) OrchestratorOption {
	return func(o *Orchestrator) { o.speakerNames = names }
}

type OrchestrateOptions struct {
	onEvent             func(events.Event)
	onTranscription     func(transcript string)
	onResponse          func(response string)
	onPlaybackEnded     func(text, outcome string)
	onListeningChanged  func(listening bool)
	onInterruption      func(source string)
	onShutdownRequested func()
}

type OrchestrateOption func(*OrchestrateOptions)

// WithEventCallback receives every event. It runs on the goroutine that
// produced the event and must not block.
func WithEventCallback(callback func(events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onEvent = callback }
}

func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTranscription = callback }
}

func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onResponse = callback }
}

func WithPlaybackEndedCallback(callback func(text, outcome string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onPlaybackEnded = callback }
}

func WithListeningChangedCallback(callback func(listening bool)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onListeningChanged = callback }
}

// WithInterruptionCallback is called when an interrupt stopped playback.
func WithInterruptionCallback(callback func(source string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onInterruption = callback }
}

// WithShutdownRequestedCallback is called after the farewell for an exit
// phrase has been spoken or cancelled.
func WithShutdownRequestedCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onShutdownRequested = callback }
}
