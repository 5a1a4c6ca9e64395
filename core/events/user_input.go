package events

import "time"

const (
	// KindUserUtteranceCaptured identifies an utterance finalized by segmentation.
	KindUserUtteranceCaptured Kind = "user_input.utterance_captured"
	// KindUserTranscriptFinal identifies the final transcript for the utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
)

// UserUtteranceCaptured describes an utterance handed to transcription.
type UserUtteranceCaptured struct {
	Base
	UtteranceID string
	Duration    time.Duration
	// Forced is set when the utterance was cut at the duration cap.
	Forced bool
}

// NewUserUtteranceCaptured creates a user utterance captured event.
func NewUserUtteranceCaptured(id string, duration time.Duration, forced bool) UserUtteranceCaptured {
	return UserUtteranceCaptured{
		Base:        NewBase(KindUserUtteranceCaptured),
		UtteranceID: id,
		Duration:    duration,
		Forced:      forced,
	}
}

// UserTranscriptFinal carries the final transcript of the user's turn.
type UserTranscriptFinal struct {
	Base
	Transcript string
	// IsTranscribed is false for prompts that did not come from speech.
	IsTranscribed bool
}

// NewUserTranscriptFinal creates a user transcript final event.
func NewUserTranscriptFinal(transcript string, isTranscribed bool) UserTranscriptFinal {
	return UserTranscriptFinal{
		Base:          NewBase(KindUserTranscriptFinal),
		Transcript:    transcript,
		IsTranscribed: isTranscribed,
	}
}
