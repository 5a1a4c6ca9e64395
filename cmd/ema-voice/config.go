package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/segmentation"
	"github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
	"gopkg.in/yaml.v3"
)

const (
	backendMiniaudio = "miniaudio"
	backendPortaudio = "portaudio"

	providerOpenAI = "openai"
	providerOllama = "ollama"
	providerGroq   = "groq"
)

var providerBaseURLs = map[string]string{
	providerOllama: "http://localhost:11434/v1",
	providerGroq:   "https://api.groq.com/openai/v1",
}

type Config struct {
	Audio        AudioConfig        `yaml:"audio" json:"audio"`
	Segmentation SegmentationConfig `yaml:"segmentation" json:"segmentation"`
	SpeechToText SpeechToTextConfig `yaml:"speech_to_text" json:"speech_to_text"`
	Responder    ResponderConfig    `yaml:"responder" json:"responder"`
	TextToSpeech TextToSpeechConfig `yaml:"text_to_speech" json:"text_to_speech"`
	Turns        TurnsConfig        `yaml:"turns" json:"turns"`
	Interrupts   InterruptsConfig   `yaml:"interrupts" json:"interrupts"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
}

type AudioConfig struct {
	Backend       string        `yaml:"backend" json:"backend" jsonschema:"enum=miniaudio,enum=portaudio,default=miniaudio"`
	SampleRate    int           `yaml:"sample_rate" json:"sample_rate" jsonschema:"enum=8000,enum=16000,enum=24000,enum=32000,enum=48000"`
	FrameDuration time.Duration `yaml:"frame_duration" json:"frame_duration" jsonschema:"type=string,description=Size of the frames fed to segmentation e.g. 30ms"`
	// BufferSize is in samples and only used by portaudio.
	BufferSize int `yaml:"buffer_size" json:"buffer_size" jsonschema:"minimum=64"`
}

type SegmentationConfig struct {
	SilenceThreshold     float64       `yaml:"silence_threshold" json:"silence_threshold" jsonschema:"exclusiveMinimum=0,exclusiveMaximum=1"`
	MinSpeechDuration    time.Duration `yaml:"min_speech_duration" json:"min_speech_duration" jsonschema:"type=string"`
	SilenceHangover      time.Duration `yaml:"silence_hangover" json:"silence_hangover" jsonschema:"type=string"`
	MaxUtteranceDuration time.Duration `yaml:"max_utterance_duration" json:"max_utterance_duration" jsonschema:"type=string"`
}

type SpeechToTextConfig struct {
	Model    string        `yaml:"model" json:"model"`
	Language string        `yaml:"language" json:"language"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"type=string"`
}

type ResponderConfig struct {
	Provider     string        `yaml:"provider" json:"provider" jsonschema:"enum=openai,enum=ollama,enum=groq,default=openai"`
	BaseURL      string        `yaml:"base_url" json:"base_url,omitempty"`
	Model        string        `yaml:"model" json:"model"`
	Instructions string        `yaml:"instructions" json:"instructions,omitempty"`
	HistorySize  int           `yaml:"history_size" json:"history_size" jsonschema:"minimum=0"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"type=string"`
}

type TextToSpeechConfig struct {
	Voice   string        `yaml:"voice" json:"voice"`
	Format  string        `yaml:"format" json:"format" jsonschema:"enum=linear16,enum=mp3,default=linear16"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"type=string"`
	Retries int           `yaml:"retries" json:"retries" jsonschema:"minimum=0"`
}

type TurnsConfig struct {
	CancelGrace        time.Duration `yaml:"cancel_grace" json:"cancel_grace" jsonschema:"type=string"`
	MaxQueuedResponses int           `yaml:"max_queued_responses" json:"max_queued_responses" jsonschema:"minimum=0"`
	StopPhrases        []string      `yaml:"stop_phrases" json:"stop_phrases,omitempty"`
	ExitPhrases        []string      `yaml:"exit_phrases" json:"exit_phrases,omitempty"`
	Farewell           string        `yaml:"farewell" json:"farewell,omitempty"`
	SpeakerNames       []string      `yaml:"speaker_names" json:"speaker_names,omitempty"`
}

type InterruptsConfig struct {
	Keyboard bool `yaml:"keyboard" json:"keyboard" jsonschema:"description=Raw space bar interrupts in headless mode"`
	Signal   bool `yaml:"signal" json:"signal" jsonschema:"description=Interrupt on SIGUSR1"`
}

type LoggingConfig struct {
	File      string `yaml:"file" json:"file"`
	Level     string `yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	TraceFile string `yaml:"trace_file" json:"trace_file,omitempty"`
}

func DefaultConfig() Config {
	seg := segmentation.DefaultConfig()
	return Config{
		Audio: AudioConfig{
			Backend:       backendMiniaudio,
			SampleRate:    audio.DefaultSampleRate,
			FrameDuration: audio.DefaultFrameDuration,
			BufferSize:    512,
		},
		Segmentation: SegmentationConfig{
			SilenceThreshold:     seg.SilenceThreshold,
			MinSpeechDuration:    seg.MinSpeechDuration,
			SilenceHangover:      seg.SilenceHangover,
			MaxUtteranceDuration: seg.MaxUtteranceDuration,
		},
		SpeechToText: SpeechToTextConfig{
			Model:    "nova-3",
			Language: "en-US",
			Timeout:  15 * time.Second,
		},
		Responder: ResponderConfig{
			Provider:    providerOpenAI,
			Model:       "gpt-4o-mini",
			HistorySize: 10,
			Timeout:     30 * time.Second,
		},
		TextToSpeech: TextToSpeechConfig{
			Voice:   "aura-asteria-en",
			Format:  string(audio.EncodingLinear16),
			Timeout: 15 * time.Second,
			Retries: 1,
		},
		Turns: TurnsConfig{
			CancelGrace:        time.Second,
			MaxQueuedResponses: 4,
		},
		Interrupts: InterruptsConfig{Keyboard: true, Signal: true},
		Logging:    LoggingConfig{File: "ema-voice.log", Level: "info"},
	}
}

// LoadConfig reads path over the defaults. A missing file is only an error
// when required is set.
func LoadConfig(path string, required bool) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return config, nil
		}
		return config, fmt.Errorf("failed to read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// Overlay copies every non-empty value of overrides into c.
func (c *Config) Overlay(overrides Config) error {
	option := copier.Option{IgnoreEmpty: true, DeepCopy: true}
	sections := []struct{ to, from any }{
		{&c.Audio, &overrides.Audio},
		{&c.Segmentation, &overrides.Segmentation},
		{&c.SpeechToText, &overrides.SpeechToText},
		{&c.Responder, &overrides.Responder},
		{&c.TextToSpeech, &overrides.TextToSpeech},
		{&c.Turns, &overrides.Turns},
		{&c.Logging, &overrides.Logging},
	}
	for _, section := range sections {
		if err := copier.CopyWithOption(section.to, section.from, option); err != nil {
			return fmt.Errorf("failed to apply overrides: %w", err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	var errs error
	switch c.Audio.Backend {
	case backendMiniaudio, backendPortaudio:
	default:
		errs = errors.Join(errs, fmt.Errorf("unknown audio backend %q", c.Audio.Backend))
	}

	switch c.Responder.Provider {
	case providerOpenAI, providerOllama, providerGroq:
	default:
		errs = errors.Join(errs, fmt.Errorf("unknown responder provider %q", c.Responder.Provider))
	}

	if _, ok := audio.ParseFormat(c.TextToSpeech.Format); !ok {
		errs = errors.Join(errs, fmt.Errorf("unknown speech format %q", c.TextToSpeech.Format))
	}
	if _, ok := deepgram.ParseVoice(c.TextToSpeech.Voice); !ok {
		errs = errors.Join(errs, fmt.Errorf("unknown voice %q", c.TextToSpeech.Voice))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = errors.Join(errs, err)
	}

	errs = errors.Join(errs, c.segmentation().Validate())
	return errs
}

func (c Config) segmentation() segmentation.Config {
	config := segmentation.DefaultConfig()
	config.SilenceThreshold = c.Segmentation.SilenceThreshold
	config.MinSpeechDuration = c.Segmentation.MinSpeechDuration
	config.SilenceHangover = c.Segmentation.SilenceHangover
	config.MaxUtteranceDuration = c.Segmentation.MaxUtteranceDuration
	return config
}

func (c Config) speechEncoding() audio.EncodingInfo {
	format, _ := audio.ParseFormat(c.TextToSpeech.Format)
	return audio.EncodingInfo{SampleRate: c.Audio.SampleRate, Format: format}
}

func (c Config) responderBaseURL() string {
	if c.Responder.BaseURL != "" {
		return c.Responder.BaseURL
	}
	return providerBaseURLs[c.Responder.Provider]
}

// loadEnv reads secrets from the given dotenv files. Missing files are
// ignored, variables already set win.
func loadEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
