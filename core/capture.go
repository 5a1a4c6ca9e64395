package orchestration

import "sync/atomic"

type CaptureState int32

const (
	CaptureListening CaptureState = iota
	CapturePaused
)

func (s CaptureState) String() string {
	if s == CapturePaused {
		return "paused"
	}
	return "listening"
}

// captureGate holds the capture state. Only the coordinator writes it;
// segmentation reads it on every frame.
type captureGate struct {
	state atomic.Int32
}

func (g *captureGate) IsListening() bool { return g.Load() == CaptureListening }

func (g *captureGate) Load() CaptureState { return CaptureState(g.state.Load()) }

// swap stores state and reports whether it changed.
func (g *captureGate) swap(state CaptureState) bool {
	return CaptureState(g.state.Swap(int32(state))) != state
}
