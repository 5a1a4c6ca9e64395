package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/interrupt"
	"github.com/koscakluka/ema-voice/core/playback"
)

func TestResponsePausesCaptureBeforePlaybackAndResumesAfter(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{})

	h.coordinator.respond("hello", nil)
	play := h.sink.awaitPlay(t)

	if h.capture.IsListening() {
		t.Fatalf("expected capture to be paused while playing")
	}
	if got := h.flushes.Load(); got != 1 {
		t.Fatalf("expected segmentation to be flushed once on pause, got %d", got)
	}
	if violation := h.violation.Load(); violation != nil {
		t.Fatalf("capture state invariant violated: %s", *violation)
	}

	play.finish()
	h.awaitListening(t)
	h.awaitEvent(t, events.KindAssistantPlaybackEnded)

	if got := h.lastEnded().Outcome; got != playback.OutcomeCompleted.String() {
		t.Fatalf("expected completed playback, got %s", got)
	}
	if got := h.flushes.Load(); got != 2 {
		t.Fatalf("expected audio buffered while paused to be flushed on resume, got %d flushes", got)
	}
}

func TestInterruptCancelsPlaybackAndResumesCapture(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{})

	h.coordinator.respond("a very long answer", nil)
	play := h.sink.awaitPlay(t)

	h.coordinator.interrupt(interrupt.NewEvent(interrupt.KindKeyPress, "space"))
	h.awaitListening(t)

	if !play.cancelled.Load() {
		t.Fatalf("expected sink playback to be cancelled")
	}
	if got := h.lastEnded().Outcome; got != playback.OutcomeCancelled.String() {
		t.Fatalf("expected cancelled playback, got %s", got)
	}

	h.coordinator.respond("next", nil)
	next := h.sink.awaitPlay(t)
	next.finish()
	h.awaitListening(t)

	if got := h.count(events.KindAssistantPlaybackEnded); got != 2 {
		t.Fatalf("expected each job to end once, got %d endings", got)
	}
}

func TestInterruptWhileIdleIsIgnored(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{})

	h.coordinator.interrupt(interrupt.NewEvent(interrupt.KindSignal, "SIGUSR1"))
	h.awaitEvent(t, events.KindInterruptionReceived)

	if h.lastInterruption().Acted {
		t.Fatalf("expected interrupt while idle to be ignored")
	}
	if !h.capture.IsListening() {
		t.Fatalf("expected capture to stay listening")
	}
	if got := h.count(events.KindCaptureStateChanged); got != 0 {
		t.Fatalf("expected no capture state change, got %d", got)
	}
}

func TestInterruptAfterPlaybackFinishedIsNotActedOn(t *testing.T) {
	sink := &controlledSink{}
	engine := playback.NewEngine(constantSynthesizer{}, sink)
	var received []events.InterruptionReceived
	c := newCoordinator(engine, &captureGate{}, nil, func(event events.Event) {
		if interruption, ok := event.(events.InterruptionReceived); ok {
			received = append(received, interruption)
		}
	})

	job, err := engine.Play(context.Background(), "all done")
	if err != nil {
		t.Fatalf("failed to start playback: %v", err)
	}
	sink.awaitPlay(t).finish()
	<-job.Done()

	// The job's end message is still waiting in the inbox
	c.active = job
	c.state = turnSpeaking
	c.handleInterrupt(context.Background(), interrupt.NewEvent(interrupt.KindKeyPress, "space"))

	if len(received) != 1 {
		t.Fatalf("expected one interruption event, got %d", len(received))
	}
	if received[0].Acted {
		t.Fatalf("expected interrupt after natural completion not to be acted on")
	}
	if c.active != job {
		t.Fatalf("expected the job to be ended by its own end message")
	}
}

func TestRepeatedInterruptsCoalesce(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{})

	h.coordinator.respond("hello", nil)
	h.sink.awaitPlay(t)

	for range 3 {
		h.coordinator.interrupt(interrupt.NewEvent(interrupt.KindKeyPress, "space"))
	}
	h.awaitCount(t, events.KindInterruptionReceived, 3)

	acted := 0
	for _, event := range h.snapshot() {
		if received, ok := event.(events.InterruptionReceived); ok && received.Acted {
			acted++
		}
	}
	if acted != 1 {
		t.Fatalf("expected exactly one interrupt to stop playback, got %d", acted)
	}
	if got := h.count(events.KindAssistantPlaybackEnded); got != 1 {
		t.Fatalf("expected playback to end once, got %d", got)
	}
}

func TestCaptureIsPausedExactlyWhilePlaybackIsActive(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{})

	for i := range 5 {
		h.coordinator.respond("hello", nil)
		play := h.sink.awaitPlay(t)
		if i%2 == 0 {
			play.finish()
		} else {
			h.coordinator.interrupt(interrupt.NewEvent(interrupt.KindKeyPress, "space"))
		}
		h.awaitListening(t)
	}
	h.awaitCount(t, events.KindAssistantPlaybackEnded, 5)

	if violation := h.violation.Load(); violation != nil {
		t.Fatalf("capture state invariant violated: %s", *violation)
	}
}

func TestResponsesWhileSpeakingAreQueued(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{})

	h.coordinator.respond("first", nil)
	first := h.sink.awaitPlay(t)
	h.coordinator.respond("second", nil)

	first.finish()
	second := h.sink.awaitPlay(t)
	if second.text != "second" {
		t.Fatalf("expected queued response to play next, got %q", second.text)
	}
	if h.capture.IsListening() {
		t.Fatalf("expected capture to stay paused for the queued response")
	}

	second.finish()
	h.awaitListening(t)
}

func TestInterruptDropsQueuedResponses(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{})

	var settled atomic.Int32
	h.coordinator.respond("first", nil)
	h.sink.awaitPlay(t)
	h.coordinator.respond("second", func() { settled.Add(1) })
	h.coordinator.respond("third", func() { settled.Add(1) })

	h.coordinator.interrupt(interrupt.NewEvent(interrupt.KindVoiceCommand, "stop"))
	h.awaitListening(t)
	waitFor(t, func() bool { return settled.Load() == 2 }, "queued responses to settle")

	select {
	case play := <-h.sink.plays:
		t.Fatalf("expected queued responses to be dropped, but %q played", play.text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStuckPlaybackResumesCaptureAfterCancelGrace(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{ignoreCancel: true})
	h.coordinator.cancelGrace = 20 * time.Millisecond

	h.coordinator.respond("hello", nil)
	play := h.sink.awaitPlay(t)
	h.coordinator.interrupt(interrupt.NewEvent(interrupt.KindKeyPress, "space"))
	h.awaitListening(t)

	play.finish()
	h.coordinator.respond("next", nil)
	next := h.sink.awaitPlay(t)
	next.finish()
	h.awaitCount(t, events.KindAssistantPlaybackEnded, 2)
}

func TestFailedPlaybackEndsLikeCompletion(t *testing.T) {
	h := newCoordinatorHarness(t, &controlledSink{})

	h.coordinator.respond("hello", nil)
	play := h.sink.awaitPlay(t)
	play.fail()
	h.awaitListening(t)
	h.awaitEvent(t, events.KindAssistantPlaybackEnded)

	if got := h.lastEnded().Outcome; got != playback.OutcomeFailed.String() {
		t.Fatalf("expected failed playback, got %s", got)
	}
}

func TestStartingSecondJobPanics(t *testing.T) {
	sink := &controlledSink{}
	engine := playback.NewEngine(constantSynthesizer{}, sink)
	c := newCoordinator(engine, &captureGate{}, nil, nil)

	c.startJob(context.Background(), respondMessage{text: "first"})
	defer c.active.Cancel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected starting a second job to panic")
		}
	}()
	c.startJob(context.Background(), respondMessage{text: "second"})
}

func TestShutdownCancelsActivePlayback(t *testing.T) {
	sink := &controlledSink{}
	capture := &captureGate{}
	c := newCoordinator(playback.NewEngine(constantSynthesizer{}, sink), capture, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.run(ctx) }()

	var settled atomic.Bool
	c.respond("hello", func() { settled.Store(true) })
	play := sink.awaitPlay(t)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected coordinator to stop")
	}

	if !play.cancelled.Load() {
		t.Fatalf("expected active playback to be cancelled on shutdown")
	}
	if !capture.IsListening() {
		t.Fatalf("expected capture to be listening after shutdown")
	}
	if !settled.Load() {
		t.Fatalf("expected response to be settled on shutdown")
	}
}

type coordinatorHarness struct {
	coordinator *coordinator
	capture     *captureGate
	sink        *controlledSink
	flushes     atomic.Int32

	mu        sync.Mutex
	events    []events.Event
	violation atomic.Pointer[string]
}

func newCoordinatorHarness(t *testing.T, sink *controlledSink) *coordinatorHarness {
	t.Helper()

	h := &coordinatorHarness{capture: &captureGate{}, sink: sink}
	engine := playback.NewEngine(constantSynthesizer{}, sink)
	h.coordinator = newCoordinator(engine, h.capture, func() { h.flushes.Add(1) }, h.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.coordinator.run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return h
}

// record runs on the coordinator goroutine, so the capture state it sees is
// the state at the time of the event.
func (h *coordinatorHarness) record(event events.Event) {
	switch event.Kind() {
	case events.KindAssistantPlaybackStarted:
		if h.capture.IsListening() {
			h.violate("capture listening while playback started")
		}
	case events.KindAssistantPlaybackEnded:
		if !h.capture.IsListening() {
			h.violate("capture paused after playback ended")
		}
	}

	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

func (h *coordinatorHarness) violate(reason string) {
	h.violation.CompareAndSwap(nil, &reason)
}

func (h *coordinatorHarness) snapshot() []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Event(nil), h.events...)
}

func (h *coordinatorHarness) count(kind events.Kind) int {
	count := 0
	for _, event := range h.snapshot() {
		if event.Kind() == kind {
			count++
		}
	}
	return count
}

func (h *coordinatorHarness) lastEnded() events.AssistantPlaybackEnded {
	var last events.AssistantPlaybackEnded
	for _, event := range h.snapshot() {
		if ended, ok := event.(events.AssistantPlaybackEnded); ok {
			last = ended
		}
	}
	return last
}

func (h *coordinatorHarness) lastInterruption() events.InterruptionReceived {
	var last events.InterruptionReceived
	for _, event := range h.snapshot() {
		if received, ok := event.(events.InterruptionReceived); ok {
			last = received
		}
	}
	return last
}

func (h *coordinatorHarness) awaitEvent(t *testing.T, kind events.Kind) {
	t.Helper()
	waitFor(t, func() bool { return h.count(kind) > 0 }, "event "+string(kind))
}

func (h *coordinatorHarness) awaitCount(t *testing.T, kind events.Kind, n int) {
	t.Helper()
	waitFor(t, func() bool { return h.count(kind) >= n }, "events "+string(kind))
}

func (h *coordinatorHarness) awaitListening(t *testing.T) {
	t.Helper()
	waitFor(t, h.capture.IsListening, "capture to resume")
}

func waitFor(t *testing.T, condition func() bool, what string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

var errPlaybackDevice = errors.New("playback device failed")

type constantSynthesizer struct{}

func (constantSynthesizer) Synthesize(_ context.Context, text string) (*playback.Speech, error) {
	return playback.NewSpeech([]byte(text), audio.GetDefaultEncodingInfo(), nil), nil
}

// controlledSink blocks every Play until the test finishes or fails it, or
// the job is cancelled.
type controlledSink struct {
	ignoreCancel bool

	once  sync.Once
	plays chan *controlledPlay
}

type controlledPlay struct {
	text      string
	cancelled atomic.Bool

	result chan error
}

func (p *controlledPlay) finish() { p.result <- nil }
func (p *controlledPlay) fail()   { p.result <- errPlaybackDevice }

func (s *controlledSink) init() {
	s.once.Do(func() { s.plays = make(chan *controlledPlay, 16) })
}

func (s *controlledSink) Play(ctx context.Context, speech *playback.Speech) error {
	s.init()
	play := &controlledPlay{text: string(speech.Audio), result: make(chan error, 1)}
	s.plays <- play

	if s.ignoreCancel {
		return <-play.result
	}

	select {
	case err := <-play.result:
		return err
	case <-ctx.Done():
		play.cancelled.Store(true)
		return ctx.Err()
	}
}

func (s *controlledSink) awaitPlay(t *testing.T) *controlledPlay {
	t.Helper()
	s.init()

	select {
	case play := <-s.plays:
		return play
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback to start")
		return nil
	}
}
