package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/playback"
	"github.com/muesli/reflow/wordwrap"
)

const maxTranscriptLines = 12

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	listeningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	speakingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCC00"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

type eventMsg struct{ event events.Event }

type orchestratorDoneMsg struct{ err error }

type transcriptLine struct {
	speaker string
	text    string
}

// statusModel shows whether the assistant listens or speaks and the latest
// exchanges. Space interrupts the assistant.
type statusModel struct {
	spinner   spinner.Model
	width     int
	listening bool
	lines     []transcriptLine
	notice    string
	err       error

	interrupt func()
}

func newStatusModel(interrupt func()) statusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = speakingStyle

	return statusModel{
		spinner:   s,
		width:     80,
		listening: true,
		interrupt: interrupt,
	}
}

func (m statusModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			if interrupt := m.interrupt; interrupt != nil {
				return m, func() tea.Msg {
					interrupt()
					return nil
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		return m.handleEvent(msg.event)

	case orchestratorDoneMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m statusModel) handleEvent(event events.Event) (tea.Model, tea.Cmd) {
	switch e := event.(type) {
	case events.UserTranscriptFinal:
		m.addLine("You", e.Transcript)
		m.notice = ""
	case events.AssistantResponseFinal:
		m.addLine("Assistant", e.Response)
	case events.CaptureStateChanged:
		m.listening = e.Listening
	case events.InterruptionReceived:
		if e.Acted {
			m.notice = "Interrupted, listening for your voice now"
		}
	case events.AssistantPlaybackEnded:
		if e.Outcome == playback.OutcomeFailed.String() {
			m.notice = "Could not play the response"
		}
	case events.ShutdownRequested:
		return m, tea.Quit
	}
	return m, nil
}

func (m *statusModel) addLine(speaker, text string) {
	m.lines = append(m.lines, transcriptLine{speaker: speaker, text: text})
	if overflow := len(m.lines) - maxTranscriptLines; overflow > 0 {
		m.lines = m.lines[overflow:]
	}
}

func (m statusModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ema"))
	b.WriteString("\n\n")

	if m.listening {
		b.WriteString(listeningStyle.Render("● Listening"))
	} else {
		b.WriteString(m.spinner.View() + speakingStyle.Render(" Speaking"))
	}
	b.WriteString("\n\n")

	wrapWidth := max(m.width-4, 20)
	for _, line := range m.lines {
		style := userStyle
		if line.speaker == "Assistant" {
			style = assistantStyle
		}
		b.WriteString(style.Render(wordwrap.String(fmt.Sprintf("%s: %s", line.speaker, line.text), wrapWidth)))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("space: interrupt • q: quit") + "\n")
	return b.String()
}
