package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ema-voice.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigOverlaysFileOnDefaults(t *testing.T) {
	path := writeConfig(t, `
audio:
  backend: portaudio
segmentation:
  silence_hangover: 450ms
responder:
  provider: ollama
  model: llama3.2
turns:
  stop_phrases: [halt]
`)

	config, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Audio.Backend != backendPortaudio {
		t.Fatalf("expected portaudio backend, got %q", config.Audio.Backend)
	}
	if config.Segmentation.SilenceHangover != 450*time.Millisecond {
		t.Fatalf("expected 450ms hangover, got %v", config.Segmentation.SilenceHangover)
	}
	if config.Segmentation.MaxUtteranceDuration != DefaultConfig().Segmentation.MaxUtteranceDuration {
		t.Fatalf("expected untouched fields to keep defaults, got %v", config.Segmentation.MaxUtteranceDuration)
	}
	if config.responderBaseURL() != providerBaseURLs[providerOllama] {
		t.Fatalf("expected ollama base url, got %q", config.responderBaseURL())
	}
	if len(config.Turns.StopPhrases) != 1 || config.Turns.StopPhrases[0] != "halt" {
		t.Fatalf("unexpected stop phrases %v", config.Turns.StopPhrases)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("expected a valid config, got %v", err)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "audio:\n  backnd: portaudio\n")

	if _, err := LoadConfig(path, true); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	config, err := LoadConfig(missing, false)
	if err != nil {
		t.Fatalf("expected defaults for an optional missing file, got %v", err)
	}
	if config.Audio.Backend != backendMiniaudio {
		t.Fatalf("expected default backend, got %q", config.Audio.Backend)
	}

	if _, err := LoadConfig(missing, true); err == nil {
		t.Fatalf("expected an error for a required missing file")
	}
}

func TestOverlayIgnoresEmptyValues(t *testing.T) {
	config := DefaultConfig()
	overrides := Config{}
	overrides.TextToSpeech.Voice = "aura-luna-en"
	overrides.Segmentation.SilenceThreshold = 0.05

	if err := config.Overlay(overrides); err != nil {
		t.Fatalf("Overlay returned error: %v", err)
	}

	if config.TextToSpeech.Voice != "aura-luna-en" {
		t.Fatalf("expected voice override, got %q", config.TextToSpeech.Voice)
	}
	if config.TextToSpeech.Format != DefaultConfig().TextToSpeech.Format {
		t.Fatalf("expected empty override to keep format, got %q", config.TextToSpeech.Format)
	}
	if config.Segmentation.SilenceThreshold != 0.05 {
		t.Fatalf("expected threshold override, got %v", config.Segmentation.SilenceThreshold)
	}
	if config.Segmentation.SilenceHangover != DefaultConfig().Segmentation.SilenceHangover {
		t.Fatalf("expected hangover to keep default, got %v", config.Segmentation.SilenceHangover)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	config := DefaultConfig()
	config.Audio.Backend = "alsa"
	config.TextToSpeech.Voice = "aura-nobody-en"
	config.Logging.Level = "loud"

	err := config.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"alsa", "aura-nobody-en", "loud"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestPrintSchemaUsesYAMLNames(t *testing.T) {
	var b strings.Builder
	if err := printSchema(&b); err != nil {
		t.Fatalf("printSchema returned error: %v", err)
	}

	for _, want := range []string{"speech_to_text", "silence_hangover", "miniaudio"} {
		if !strings.Contains(b.String(), want) {
			t.Fatalf("expected %q in schema", want)
		}
	}
}
