package interrupt

import (
	"context"
	"os"
	"os/signal"
)

// SignalSource interrupts when the process receives one of Signals, which
// lets scripts and other processes stop playback.
type SignalSource struct {
	Signals []os.Signal
}

// NewSignalSource listens for signals, or the platform default interrupt
// signal when none are given.
func NewSignalSource(signals ...os.Signal) *SignalSource {
	if len(signals) == 0 {
		signals = defaultInterruptSignals
	}
	return &SignalSource{Signals: signals}
}

func (s *SignalSource) Run(ctx context.Context, emit Emit) error {
	if len(s.Signals) == 0 {
		<-ctx.Done()
		return nil
	}

	received := make(chan os.Signal, 1)
	signal.Notify(received, s.Signals...)
	defer signal.Stop(received)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-received:
			record(ctx, emit, NewEvent(KindSignal, sig.String()))
		}
	}
}
