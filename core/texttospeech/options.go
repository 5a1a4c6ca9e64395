// Package texttospeech holds the options shared by text-to-speech backends.
package texttospeech

import "github.com/koscakluka/ema-voice/core/audio"

type TextToSpeechOptions struct {
	// EncodingInfo is the encoding speech is requested in. Raw formats must
	// match the output device, compressed ones need a decoding sink.
	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.Format == "" {
			return
		}
		if encodingInfo.Format.IsRaw() && encodingInfo.SampleRate == 0 {
			logger.Warn("ignoring raw encoding without a sample rate", "format", encodingInfo.Format.Name())
			return
		}

		o.EncodingInfo = encodingInfo
	}
}
