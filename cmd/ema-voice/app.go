package main

import (
	"context"
	"errors"
	"fmt"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/audio/beep"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/interrupt"
	"github.com/koscakluka/ema-voice/core/playback"
	"github.com/koscakluka/ema-voice/core/responders/openai"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	sttdeepgram "github.com/koscakluka/ema-voice/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	ttsdeepgram "github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
)

// newOrchestrator wires the configured devices and backends. Closing the
// orchestrator releases the capture device.
func newOrchestrator(config Config, sources ...interrupt.Source) (*orchestration.Orchestrator, error) {
	transcriber, err := sttdeepgram.NewTranscriptionClient(
		sttdeepgram.WithTranscriptionOptions(
			speechtotext.WithModel(config.SpeechToText.Model),
			speechtotext.WithLanguage(config.SpeechToText.Language),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech-to-text client: %w", err)
	}

	responderOptions := []openai.ResponderOption{
		openai.WithModel(config.Responder.Model),
		openai.WithHistorySize(config.Responder.HistorySize),
	}
	if baseURL := config.responderBaseURL(); baseURL != "" {
		responderOptions = append(responderOptions, openai.WithBaseURL(baseURL))
	}
	if config.Responder.Instructions != "" {
		responderOptions = append(responderOptions, openai.WithInstructions(config.Responder.Instructions))
	}
	responder, err := openai.NewResponder(responderOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create responder: %w", err)
	}

	voice, _ := ttsdeepgram.ParseVoice(config.TextToSpeech.Voice)
	synthesizer, err := ttsdeepgram.NewTextToSpeechClient(voice,
		ttsdeepgram.WithTextToSpeechOptions(texttospeech.WithEncodingInfo(config.speechEncoding())))
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}

	deviceOptions, err := newDevices(config)
	if err != nil {
		return nil, err
	}

	opts := append(deviceOptions,
		orchestration.WithFrameDuration(config.Audio.FrameDuration),
		orchestration.WithSegmentationConfig(config.segmentation()),
		orchestration.WithSpeechToTextClient(transcriber),
		orchestration.WithTranscriptionTimeout(config.SpeechToText.Timeout),
		orchestration.WithResponsePipeline(responder),
		orchestration.WithResponseTimeout(config.Responder.Timeout),
		orchestration.WithTextToSpeechClient(synthesizer),
		orchestration.WithPlaybackOptions(
			playback.WithSynthesisTimeout(config.TextToSpeech.Timeout),
			playback.WithSynthesisRetries(config.TextToSpeech.Retries),
		),
		orchestration.WithCancelGrace(config.Turns.CancelGrace),
		orchestration.WithMaxQueuedResponses(config.Turns.MaxQueuedResponses),
		orchestration.WithInterruptSources(sources...),
		orchestration.WithSpeakerNames(config.Turns.SpeakerNames...),
	)
	if len(config.Turns.StopPhrases) > 0 {
		opts = append(opts, orchestration.WithStopPhrases(config.Turns.StopPhrases...))
	}
	if len(config.Turns.ExitPhrases) > 0 {
		opts = append(opts, orchestration.WithExitPhrases(config.Turns.ExitPhrases...))
	}
	if config.Turns.Farewell != "" {
		opts = append(opts, orchestration.WithFarewell(config.Turns.Farewell))
	}

	return orchestration.NewOrchestrator(opts...), nil
}

// newDevices opens the capture device and picks the sink speech is played
// through. Compressed speech always goes to the speaker through beep.
func newDevices(config Config) ([]orchestration.OrchestratorOption, error) {
	speechEncoding := config.speechEncoding()
	compressed := !speechEncoding.Format.IsRaw()

	var opts []orchestration.OrchestratorOption
	switch config.Audio.Backend {
	case backendPortaudio:
		if config.Audio.SampleRate != audio.DefaultSampleRate {
			return nil, fmt.Errorf("portaudio backend only runs at %d Hz", audio.DefaultSampleRate)
		}
		client, err := portaudio.NewClient(config.Audio.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio devices: %w", err)
		}
		opts = append(opts, orchestration.WithAudioInput(client))
		if !compressed {
			opts = append(opts, orchestration.WithAudioOutput(client))
		}

	case backendMiniaudio:
		client, err := miniaudio.NewClient(miniaudio.WithSampleRate(config.Audio.SampleRate))
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio devices: %w", err)
		}
		opts = append(opts, orchestration.WithAudioInput(client))
		if !compressed {
			opts = append(opts, orchestration.WithBufferedAudioOutput(client))
		}

	default:
		return nil, errors.New("unknown audio backend " + config.Audio.Backend)
	}

	if compressed {
		opts = append(opts, orchestration.WithAudioOutput(beep.NewSink()))
	}
	return opts, nil
}

// headlessSources are the interrupt sources used without the terminal UI.
func headlessSources(config Config, quit context.CancelFunc) []interrupt.Source {
	var sources []interrupt.Source
	if config.Interrupts.Keyboard {
		sources = append(sources, interrupt.NewKeyboardSource(interrupt.NewLineSource(nil), quit))
	}
	if config.Interrupts.Signal {
		sources = append(sources, interrupt.NewSignalSource())
	}
	return sources
}
