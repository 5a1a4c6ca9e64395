// Package segmentation splits a continuous stream of capture frames into
// utterances bounded by silence.
//
// The engine is fed from the audio device callback, so [Engine.Feed] does a
// small constant amount of work and never waits on downstream consumers.
// Finished utterances are queued and handed to the handler by [Engine.Run] on
// its own goroutine.
package segmentation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrAlreadyRunning = errors.New("segmentation engine already running")

// CaptureGate reports whether capture is currently accepting audio. The gate
// is owned by the turn coordinator; the engine only observes it.
type CaptureGate interface {
	IsListening() bool
}

type alwaysListening struct{}

func (alwaysListening) IsListening() bool { return true }

// Utterance is a finalized buffer of speech ready for transcription.
type Utterance struct {
	ID           string
	Audio        []byte
	EncodingInfo audio.EncodingInfo
	Start        time.Time
	End          time.Time
	// Forced is set when the utterance was cut at the duration cap instead of
	// ending on silence.
	Forced bool
}

func (u Utterance) Duration() time.Duration { return u.End.Sub(u.Start) }

type Engine struct {
	config Config
	gate   CaptureGate

	mu              sync.Mutex
	samples         []int16
	sampleRate      int
	bufferStart     time.Time
	bufferedFor     time.Duration
	silenceRunStart time.Time
	silentTail      time.Duration

	pending     chan Utterance
	onUtterance func(context.Context, Utterance)
	running     sync.Mutex
}

func NewEngine(config Config, gate CaptureGate, onUtterance func(context.Context, Utterance)) *Engine {
	config = config.withDefaults()
	if gate == nil {
		gate = alwaysListening{}
	}
	if onUtterance == nil {
		onUtterance = func(context.Context, Utterance) {}
	}

	return &Engine{
		config:      config,
		gate:        gate,
		pending:     make(chan Utterance, config.QueueSize),
		onUtterance: onUtterance,
	}
}

func (e *Engine) Config() Config { return e.config }

// Feed classifies a frame and appends it to the current utterance. Frames
// delivered while capture is paused are dropped.
func (e *Engine) Feed(frame audio.Frame) {
	duration := frame.Duration()
	if duration <= 0 {
		return
	}

	var finalized []Utterance

	e.mu.Lock()
	if !e.gate.IsListening() {
		e.mu.Unlock()
		droppedFrameCounter.Add(context.Background(), 1)
		return
	}

	silent := frame.Peak() < e.config.SilenceThreshold
	if silent && len(e.samples) == 0 {
		// Nothing to end, silence on its own never becomes an utterance
		e.mu.Unlock()
		return
	}

	if len(e.samples) > 0 && e.bufferedFor+duration > e.config.MaxUtteranceDuration {
		finalized = append(finalized, e.finalizeLocked(true))
		if silent {
			e.mu.Unlock()
			e.dispatch(finalized)
			return
		}
	}

	if len(e.samples) == 0 {
		e.bufferStart = frame.Timestamp
		e.sampleRate = frame.SampleRate
	}
	e.samples = append(e.samples, frame.Samples...)
	e.bufferedFor += duration

	if silent {
		if e.silenceRunStart.IsZero() {
			e.silenceRunStart = frame.Timestamp
		}
		e.silentTail += duration
	} else {
		e.silenceRunStart = time.Time{}
		e.silentTail = 0
	}

	var silenceRun time.Duration
	if !e.silenceRunStart.IsZero() {
		silenceRun = frame.End().Sub(e.silenceRunStart)
	}
	voiced := e.bufferedFor - e.silentTail

	switch {
	case voiced >= e.config.MinSpeechDuration && silenceRun >= e.config.SilenceHangover:
		finalized = append(finalized, e.finalizeLocked(false))
	case e.bufferedFor >= e.config.MaxUtteranceDuration:
		finalized = append(finalized, e.finalizeLocked(true))
	}
	e.mu.Unlock()

	e.dispatch(finalized)
}

// Reset discards everything buffered since the last boundary. The turn
// coordinator calls it on every pause so audio from before the pause cannot
// leak into a later utterance.
func (e *Engine) Reset() {
	e.mu.Lock()
	flushed := e.bufferedFor
	e.resetLocked()
	e.mu.Unlock()

	if flushed > 0 {
		flushedFrameCounter.Add(context.Background(), 1)
		logger.Debug("discarded buffered audio", "duration", flushed)
	}
}

// Buffered returns the duration of audio currently held.
func (e *Engine) Buffered() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bufferedFor
}

// Run hands queued utterances to the handler until ctx is done. Only one Run
// may be active at a time.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.TryLock() {
		return ErrAlreadyRunning
	}
	defer e.running.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case utterance := <-e.pending:
			e.onUtterance(ctx, utterance)
		}
	}
}

func (e *Engine) finalizeLocked(forced bool) Utterance {
	utterance := Utterance{
		ID:           uuid.NewString(),
		Audio:        audio.SamplesToBytes(e.samples),
		EncodingInfo: audio.EncodingInfo{SampleRate: e.sampleRate, Format: audio.EncodingLinear16},
		Start:        e.bufferStart,
		End:          e.bufferStart.Add(e.bufferedFor),
		Forced:       forced,
	}
	e.resetLocked()
	return utterance
}

func (e *Engine) resetLocked() {
	e.samples = e.samples[:0]
	e.bufferStart = time.Time{}
	e.bufferedFor = 0
	e.silenceRunStart = time.Time{}
	e.silentTail = 0
}

func (e *Engine) dispatch(utterances []Utterance) {
	for _, utterance := range utterances {
		utteranceCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.Bool("forced", utterance.Forced)))
		select {
		case e.pending <- utterance:
		default:
			logger.Warn("dropping utterance, handler is falling behind",
				"utterance_id", utterance.ID,
				"duration", utterance.Duration())
		}
	}
}
