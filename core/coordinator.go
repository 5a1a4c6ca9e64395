package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/interrupt"
	"github.com/koscakluka/ema-voice/core/playback"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultCancelGrace        = time.Second
	defaultMaxQueuedResponses = 4
	coordinatorInboxSize      = 32
)

type turnState int32

const (
	turnIdle turnState = iota
	turnSpeaking
)

func (s turnState) String() string {
	if s == turnSpeaking {
		return "speaking"
	}
	return "idle"
}

// player starts playback jobs. It is satisfied by *playback.Engine.
type player interface {
	Play(ctx context.Context, text string) (*playback.Job, error)
}

type respondMessage struct {
	text string
	// onSettled runs on the coordinator goroutine once the response has been
	// spoken, cancelled, or dropped.
	onSettled func()
}

type interruptMessage struct{ event interrupt.Event }

type jobEndedMessage struct{ job *playback.Job }

// coordinator is the turn-taking state machine. A single goroutine (run)
// owns the turn state, the active job and the capture state; everything else
// talks to it through the inbox.
//
// Capture is paused iff a job is active: it is paused and segmentation is
// flushed before a job starts, and resumed only after the job has ended.
type coordinator struct {
	player  player
	capture *captureGate
	flush   func()
	emit    eventEmitter

	cancelGrace        time.Duration
	maxQueuedResponses int

	inbox chan any
	done  chan struct{}

	// owned by run
	state  turnState
	active *playback.Job
	settle func()
	queued []respondMessage
}

func newCoordinator(player player, capture *captureGate, flush func(), emit eventEmitter) *coordinator {
	if flush == nil {
		flush = func() {}
	}
	if emit == nil {
		emit = noopEventEmitter
	}

	return &coordinator{
		player:             player,
		capture:            capture,
		flush:              flush,
		emit:               emit,
		cancelGrace:        DefaultCancelGrace,
		maxQueuedResponses: defaultMaxQueuedResponses,
		inbox:              make(chan any, coordinatorInboxSize),
		done:               make(chan struct{}),
	}
}

// respond asks the coordinator to speak text. onSettled may be nil.
func (c *coordinator) respond(text string, onSettled func()) {
	c.post(respondMessage{text: text, onSettled: onSettled})
}

func (c *coordinator) interrupt(event interrupt.Event) {
	c.post(interruptMessage{event: event})
}

func (c *coordinator) post(msg any) {
	select {
	case c.inbox <- msg:
	case <-c.done:
		if m, ok := msg.(respondMessage); ok && m.onSettled != nil {
			m.onSettled()
		}
	}
}

func (c *coordinator) run(ctx context.Context) error {
	defer close(c.done)
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.inbox:
			c.handle(ctx, msg)
		}
	}
}

func (c *coordinator) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case respondMessage:
		if c.state == turnSpeaking {
			c.enqueue(m)
			return
		}
		c.startJob(ctx, m)

	case interruptMessage:
		c.handleInterrupt(ctx, m.event)

	case jobEndedMessage:
		if m.job != c.active {
			// Already ended through an interrupt
			return
		}
		c.endJob(ctx, m.job)
		c.startNextQueued(ctx)
	}
}

func (c *coordinator) startJob(ctx context.Context, msg respondMessage) {
	if c.active != nil {
		panic("orchestration: playback job started while another job is active")
	}

	c.setCapture(CapturePaused)
	c.flush()

	job, err := c.player.Play(ctx, msg.text)
	if err != nil {
		logger.WarnContext(ctx, "failed to start playback", "error", err)
		c.setCapture(CaptureListening)
		if msg.onSettled != nil {
			msg.onSettled()
		}
		return
	}

	c.active = job
	c.settle = msg.onSettled
	c.state = turnSpeaking
	c.emit(events.NewAssistantPlaybackStarted(job.ID, job.Text))

	go func() {
		<-job.Done()
		c.post(jobEndedMessage{job: job})
	}()
}

func (c *coordinator) endJob(ctx context.Context, job *playback.Job) {
	c.active = nil
	c.state = turnIdle
	// Audio buffered while paused must not leak into the next utterance
	c.flush()
	c.setCapture(CaptureListening)

	outcome := job.Outcome()
	if outcome == playback.OutcomePending {
		// Cancelled but still winding down past the grace period
		outcome = playback.OutcomeCancelled
	}
	logger.DebugContext(ctx, "playback ended", "job_id", job.ID, "outcome", outcome.String())
	c.emit(events.NewAssistantPlaybackEnded(job.ID, job.Text, outcome.String(), job.Err()))

	if settle := c.settle; settle != nil {
		c.settle = nil
		settle()
	}
}

func (c *coordinator) handleInterrupt(ctx context.Context, event interrupt.Event) {
	// A job that already ended on its own is only waiting for its end message
	acted := c.active != nil && c.active.Outcome() == playback.OutcomePending
	interruptCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(event.Kind)),
		attribute.Bool("acted", acted),
	))
	c.emit(events.NewInterruptionReceived(string(event.Kind), event.Detail, acted))

	if !acted {
		return
	}

	job := c.active
	logger.InfoContext(ctx, "interrupting playback", "job_id", job.ID, "source", event.Kind)
	job.Cancel()
	c.awaitJob(ctx, job)
	c.dropQueued()
	c.endJob(ctx, job)
}

// awaitJob waits for a cancelled job to end, bounded by the cancel grace.
func (c *coordinator) awaitJob(ctx context.Context, job *playback.Job) {
	timer := time.NewTimer(c.cancelGrace)
	defer timer.Stop()

	select {
	case <-job.Done():
	case <-timer.C:
		logger.ErrorContext(ctx, "playback did not stop within the cancel grace period, resuming capture anyway",
			"job_id", job.ID,
			"grace", c.cancelGrace)
	}
}

func (c *coordinator) enqueue(msg respondMessage) {
	if len(c.queued) >= c.maxQueuedResponses {
		logger.Warn("dropping response, too many waiting for playback", "queued", len(c.queued))
		if msg.onSettled != nil {
			msg.onSettled()
		}
		return
	}

	c.queued = append(c.queued, msg)
	queuedResponseGauge.Add(context.Background(), 1)
}

func (c *coordinator) startNextQueued(ctx context.Context) {
	if len(c.queued) == 0 {
		return
	}

	next := c.queued[0]
	c.queued = c.queued[1:]
	queuedResponseGauge.Add(ctx, -1)
	c.startJob(ctx, next)
}

func (c *coordinator) dropQueued() {
	if len(c.queued) == 0 {
		return
	}

	queuedResponseGauge.Add(context.Background(), -int64(len(c.queued)))
	for _, msg := range c.queued {
		if msg.onSettled != nil {
			msg.onSettled()
		}
	}
	c.queued = nil
}

func (c *coordinator) shutdown() {
	ctx := context.Background()
	if job := c.active; job != nil {
		job.Cancel()
		c.awaitJob(ctx, job)
		c.endJob(ctx, job)
	}
	c.dropQueued()

	// Settle anything still waiting in the inbox so callers are not left hanging
	for {
		select {
		case msg := <-c.inbox:
			if m, ok := msg.(respondMessage); ok && m.onSettled != nil {
				m.onSettled()
			}
		default:
			return
		}
	}
}

func (c *coordinator) setCapture(state CaptureState) {
	if c.capture.swap(state) {
		c.emit(events.NewCaptureStateChanged(state == CaptureListening))
	}
}
