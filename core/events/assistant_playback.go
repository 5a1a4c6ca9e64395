package events

const (
	// KindAssistantPlaybackStarted identifies playback start for a response.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies the end of the active playback job.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted marks the start of assistant playback.
type AssistantPlaybackStarted struct {
	Base
	JobID string
	Text  string
}

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted(jobID, text string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted), JobID: jobID, Text: text}
}

// AssistantPlaybackEnded marks the end of assistant playback. Outcome is one
// of "completed", "cancelled" or "failed"; Err is set for failures.
type AssistantPlaybackEnded struct {
	Base
	JobID   string
	Text    string
	Outcome string
	Err     error
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(jobID, text, outcome string, err error) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{
		Base:    NewBase(KindAssistantPlaybackEnded),
		JobID:   jobID,
		Text:    text,
		Outcome: outcome,
		Err:     err,
	}
}
