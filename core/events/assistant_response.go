package events

// KindAssistantResponseFinal identifies a complete response ready to be spoken.
const KindAssistantResponseFinal Kind = "assistant_response.final"

// AssistantResponseFinal carries the full response text.
type AssistantResponseFinal struct {
	Base
	Response string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(response string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Response: response}
}
