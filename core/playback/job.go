package playback

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type Outcome int32

const (
	OutcomePending Outcome = iota
	OutcomeCompleted
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Job is a single synthesis and playback run. It ends exactly once, either
// naturally, through Cancel, or on failure.
type Job struct {
	ID   string
	Text string

	ctx    context.Context
	cancel context.CancelFunc

	cancelRequested atomic.Bool
	outcome         atomic.Int32
	err             error

	done       chan struct{}
	finishOnce sync.Once
}

func newJob(ctx context.Context, text string) *Job {
	ctx, cancel := context.WithCancel(ctx)
	return &Job{
		ID:     uuid.NewString(),
		Text:   text,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Done is closed once the job has ended and its audio has been released.
func (j *Job) Done() <-chan struct{} { return j.done }

// Outcome reports how the job ended, or OutcomePending while it is running.
func (j *Job) Outcome() Outcome { return Outcome(j.outcome.Load()) }

// Err returns the failure cause of a failed job. It is only meaningful after
// Done is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Cancel aborts synthesis or playback. Calling it more than once, or after
// the job already ended, has no effect.
func (j *Job) Cancel() {
	if j == nil {
		return
	}

	if j.cancelRequested.CompareAndSwap(false, true) {
		j.cancel()
	}
}

func (j *Job) cancelled() bool {
	return j.cancelRequested.Load() || j.ctx.Err() != nil
}

func (j *Job) finish(outcome Outcome, err error) bool {
	finished := false
	j.finishOnce.Do(func() {
		j.err = err
		j.outcome.Store(int32(outcome))
		j.cancel()
		close(j.done)
		finished = true
	})
	return finished
}
