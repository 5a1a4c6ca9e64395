package events

// KindInterruptionReceived identifies an interrupt handled by the coordinator.
const KindInterruptionReceived Kind = "interruption.received"

// InterruptionReceived reports an interrupt and whether it stopped playback.
// Interrupts arriving while nothing is playing are not acted on.
type InterruptionReceived struct {
	Base
	Source string
	Detail string
	Acted  bool
}

// NewInterruptionReceived creates an interruption received event.
func NewInterruptionReceived(source, detail string, acted bool) InterruptionReceived {
	return InterruptionReceived{
		Base:   NewBase(KindInterruptionReceived),
		Source: source,
		Detail: detail,
		Acted:  acted,
	}
}
