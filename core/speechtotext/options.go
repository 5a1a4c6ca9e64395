// Package speechtotext holds the options shared by speech-to-text backends.
package speechtotext

const (
	DefaultModel    = "nova-3"
	DefaultLanguage = "en-US"
)

type TranscriptionOptions struct {
	Model       string
	Language    string
	SmartFormat bool

	// PartialTranscriptionCallback receives each final segment of an
	// utterance as soon as the backend settles on it.
	PartialTranscriptionCallback func(transcript string)
}

func DefaultTranscriptionOptions() TranscriptionOptions {
	return TranscriptionOptions{
		Model:       DefaultModel,
		Language:    DefaultLanguage,
		SmartFormat: true,
	}
}

type TranscriptionOption func(*TranscriptionOptions)

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithSmartFormat(enabled bool) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SmartFormat = enabled
	}
}

func WithPartialTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}
