package events

// KindShutdownRequested identifies a user request to end the session.
const KindShutdownRequested Kind = "session.shutdown_requested"

// ShutdownRequested carries the phrase that asked the assistant to stop.
type ShutdownRequested struct {
	Base
	Phrase string
}

// NewShutdownRequested creates a shutdown requested event.
func NewShutdownRequested(phrase string) ShutdownRequested {
	return ShutdownRequested{Base: NewBase(KindShutdownRequested), Phrase: phrase}
}
