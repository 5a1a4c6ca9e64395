package events

// KindCaptureStateChanged identifies a switch between listening and paused.
const KindCaptureStateChanged Kind = "capture.state_changed"

// CaptureStateChanged reports the new capture state.
type CaptureStateChanged struct {
	Base
	Listening bool
}

// NewCaptureStateChanged creates a capture state changed event.
func NewCaptureStateChanged(listening bool) CaptureStateChanged {
	return CaptureStateChanged{Base: NewBase(KindCaptureStateChanged), Listening: listening}
}
