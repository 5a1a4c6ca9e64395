package events

import "testing"

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "user utterance captured", event: NewUserUtteranceCaptured("id", 0, false), expected: KindUserUtteranceCaptured},
		{name: "user transcript final", event: NewUserTranscriptFinal("text", true), expected: KindUserTranscriptFinal},
		{name: "assistant response final", event: NewAssistantResponseFinal("text"), expected: KindAssistantResponseFinal},
		{name: "assistant playback started", event: NewAssistantPlaybackStarted("id", "text"), expected: KindAssistantPlaybackStarted},
		{name: "assistant playback ended", event: NewAssistantPlaybackEnded("id", "text", "completed", nil), expected: KindAssistantPlaybackEnded},
		{name: "capture state changed", event: NewCaptureStateChanged(true), expected: KindCaptureStateChanged},
		{name: "interruption received", event: NewInterruptionReceived("key_press", "space", true), expected: KindInterruptionReceived},
		{name: "shutdown requested", event: NewShutdownRequested("goodbye"), expected: KindShutdownRequested},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected event timestamp to be set")
			}
		})
	}
}

func TestKindNamespace(t *testing.T) {
	testCases := map[Kind]string{
		KindCaptureStateChanged:    "capture",
		KindAssistantPlaybackEnded: "assistant_playback",
		KindShutdownRequested:      "session",
		Kind("plain"):              "plain",
	}

	for kind, expected := range testCases {
		if got := kind.Namespace(); got != expected {
			t.Fatalf("expected namespace %q for %q, got %q", expected, kind, got)
		}
	}
}
