package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-voice/core/events"
)

func TestStatusModelTracksTurns(t *testing.T) {
	var m tea.Model = newStatusModel(nil)

	m, _ = m.Update(eventMsg{event: events.NewUserTranscriptFinal("What time is it?", true)})
	m, _ = m.Update(eventMsg{event: events.NewAssistantResponseFinal("It is noon.")})
	m, _ = m.Update(eventMsg{event: events.NewCaptureStateChanged(false)})

	model := m.(statusModel)
	if model.listening {
		t.Fatalf("expected model to show speaking")
	}
	view := model.View()
	for _, want := range []string{"You: What time is it?", "Assistant: It is noon.", "Speaking"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}

	m, _ = m.Update(eventMsg{event: events.NewInterruptionReceived("key_press", "space", true)})
	m, _ = m.Update(eventMsg{event: events.NewCaptureStateChanged(true)})
	view = m.View()
	if !strings.Contains(view, "Listening") || !strings.Contains(view, "Interrupted") {
		t.Fatalf("expected listening with interrupt notice, got:\n%s", view)
	}
}

func TestStatusModelSpaceInterrupts(t *testing.T) {
	interrupts := 0
	m := newStatusModel(func() { interrupts++ })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if cmd == nil {
		t.Fatalf("expected space to produce an interrupt command")
	}
	cmd()
	if interrupts != 1 {
		t.Fatalf("expected one interrupt, got %d", interrupts)
	}
}

func TestStatusModelQuits(t *testing.T) {
	m := newStatusModel(nil)

	if _, cmd := m.Update(eventMsg{event: events.NewShutdownRequested("goodbye")}); cmd == nil {
		t.Fatalf("expected shutdown request to quit")
	}

	next, cmd := m.Update(orchestratorDoneMsg{err: errors.New("microphone unplugged")})
	if cmd == nil {
		t.Fatalf("expected orchestrator exit to quit")
	}
	if !strings.Contains(next.View(), "microphone unplugged") {
		t.Fatalf("expected the error in the view")
	}
}

func TestStatusModelKeepsRecentLines(t *testing.T) {
	m := newStatusModel(nil)
	for i := 0; i < maxTranscriptLines+5; i++ {
		m.addLine("You", "hello")
	}
	if len(m.lines) != maxTranscriptLines {
		t.Fatalf("expected %d lines, got %d", maxTranscriptLines, len(m.lines))
	}
}
