package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/interrupt"
	"github.com/koscakluka/ema-voice/core/playback"
	"github.com/koscakluka/ema-voice/core/segmentation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyOrchestrating = errors.New("orchestrator already started")
	ErrClosed               = errors.New("orchestrator closed")
)

// Orchestrator runs the voice loop: capture is cut into utterances,
// transcribed, answered and spoken, while interrupts may stop the answer at
// any moment. Capture is paused for as long as the assistant speaks so it
// never hears itself.
type Orchestrator struct {
	audioInput       *audioInput
	segmentation     *segmentation.Engine
	speechToText     *speechToText
	responsePipeline *responsePipeline
	playback         *playback.Engine
	coordinator      *coordinator
	capture          *captureGate

	synthesizer        playback.Synthesizer
	audioOutput        playback.Sink
	playbackOptions    []playback.EngineOption
	segmentationConfig segmentation.Config
	interruptSources   []interrupt.Source

	phrases      phraseMatcher
	stopPhrases  []string
	exitPhrases  []string
	farewell     string
	speakerNames []string

	eventEmitter atomic.Pointer[eventEmitter]

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	cancel    context.CancelFunc
	cancelMu  sync.Mutex
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		speechToText:       newSpeechToText(nil),
		responsePipeline:   newResponsePipeline(nil),
		capture:            &captureGate{},
		segmentationConfig: segmentation.DefaultConfig(),
		stopPhrases:        DefaultStopPhrases,
		exitPhrases:        DefaultExitPhrases,
		farewell:           DefaultFarewell,
	}
	o.audioInput = newAudioInput(nil, func(frame audio.Frame) { o.segmentation.Feed(frame) })
	o.coordinator = newCoordinator(nil, o.capture, func() {
		o.audioInput.Reset()
		o.segmentation.Reset()
	}, o.emit)

	for _, opt := range opts {
		opt(o)
	}

	o.segmentation = segmentation.NewEngine(o.segmentationConfig, o.capture, o.handleUtterance)
	o.playback = playback.NewEngine(o.synthesizer, o.audioOutput, o.playbackOptions...)
	o.coordinator.player = o.playback
	o.phrases = newPhraseMatcher(o.stopPhrases, o.exitPhrases)

	return o
}

// Orchestrate runs the voice loop until ctx is done, Close is called, or the
// audio input fails. It may be called once per orchestrator.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyOrchestrating
	}

	orchestrateOptions := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&orchestrateOptions)
	}
	emitter := newCallbackEventEmitter(orchestrateOptions)
	o.eventEmitter.Store(&emitter)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.cancelMu.Lock()
	o.cancel = cancel
	o.cancelMu.Unlock()
	if o.closed.Load() {
		// Closed while starting
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	// An invariant violation in the coordinator is a bug and must crash
	group.Go(func() error { return o.coordinator.run(groupCtx) })
	group.Go(func() error {
		return panicSafeNamedWorker("segmentation", o.segmentation.Run)(groupCtx)
	})
	group.Go(func() error {
		return panicSafeNamedWorker("audio input", o.audioInput.Run)(groupCtx)
	})
	if len(o.interruptSources) > 0 {
		group.Go(func() error {
			err := panicSafeNamedWorker("interrupt sources", func(ctx context.Context) error {
				return interrupt.Listen(ctx, o.Interrupt, o.interruptSources...)
			})(groupCtx)
			if err != nil {
				// Interrupt sources are optional, the loop keeps running without them
				logger.ErrorContext(groupCtx, "interrupt sources stopped", "error", err)
			}
			return nil
		})
	}

	logger.InfoContext(ctx, "orchestrator started",
		"stop_phrases", o.stopPhrases,
		"exit_phrases", o.exitPhrases,
		"interrupt_sources", len(o.interruptSources))

	err := group.Wait()
	o.shutdown(context.WithoutCancel(ctx))
	return err
}

// Close stops the voice loop: audio delivery stops, the active playback is
// cancelled and interrupt sources are stopped.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)

		o.cancelMu.Lock()
		cancel := o.cancel
		o.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		} else {
			o.shutdown(context.Background())
		}
	})
}

func (o *Orchestrator) shutdown(ctx context.Context) {
	o.closed.Store(true)
	o.audioInput.Close()

	if err := o.speechToText.Close(ctx); err != nil {
		recordedErr := fmt.Errorf("failed to close speech-to-text client: %w", err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		logger.WarnContext(ctx, "failed to close speech-to-text client", "error", err)
	}
}

func (o *Orchestrator) emit(event events.Event) {
	if emitter := o.eventEmitter.Load(); emitter != nil {
		(*emitter)(event)
	}
}

// handleUtterance runs on the segmentation dispatcher, off the frame path.
func (o *Orchestrator) handleUtterance(ctx context.Context, utterance segmentation.Utterance) {
	ctx, span := tracer.Start(ctx, "handle utterance", trace.WithAttributes(
		attribute.String("utterance.id", utterance.ID),
		attribute.Bool("utterance.forced", utterance.Forced),
	))
	defer span.End()

	o.emit(events.NewUserUtteranceCaptured(utterance.ID, utterance.Duration(), utterance.Forced))

	transcript, err := o.speechToText.Transcribe(ctx, utterance)
	if err != nil {
		droppedTurnCounter.Add(ctx, 1, metricStage("transcription"))
		logger.ErrorContext(ctx, "dropping utterance", "utterance_id", utterance.ID, "error", err)
		return
	}
	if transcript == "" {
		logger.DebugContext(ctx, "utterance had no transcript", "utterance_id", utterance.ID)
		return
	}

	o.emit(events.NewUserTranscriptFinal(transcript, true))
	o.handleTranscript(ctx, transcript)
}

func (o *Orchestrator) handleTranscript(ctx context.Context, transcript string) {
	switch o.phrases.classify(transcript) {
	case phraseStop:
		o.Interrupt(interrupt.NewEvent(interrupt.KindVoiceCommand, transcript))
		return
	case phraseExit:
		logger.InfoContext(ctx, "exit phrase received", "phrase", transcript)
		o.coordinator.respond(o.farewell, func() {
			o.emit(events.NewShutdownRequested(transcript))
		})
		return
	}

	response, err := o.responsePipeline.Respond(ctx, transcript)
	if err != nil {
		droppedTurnCounter.Add(ctx, 1, metricStage("response"))
		logger.ErrorContext(ctx, "dropping turn", "error", err)
		return
	}

	response = playback.CleanText(response, o.speakerNames...)
	if response == "" {
		logger.DebugContext(ctx, "skipping empty response")
		return
	}

	o.emit(events.NewAssistantResponseFinal(response))
	o.coordinator.respond(response, nil)
}
