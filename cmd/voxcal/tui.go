package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/voxcal/voxcal-core/core"
)

// uiEvent is one session callback surfaced to the terminal.
type uiEvent struct {
	kind string
	text string
	ok   bool
}

type sessionEventMsg uiEvent

type tickMsg time.Time

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle      = lipgloss.NewStyle().Faint(true)
	helpStyle       = lipgloss.NewStyle().Faint(true).MarginTop(1)
	transcriptStyle = lipgloss.NewStyle().Italic(true).Faint(true)
)

// model renders one voice session: a transcript log, the live partial
// transcript, the session status, and the latest latency numbers.
type model struct {
	session *session.Session
	events  <-chan uiEvent

	spinner spinner.Model

	status       string
	connected    bool
	partial      string
	lines        []string
	lastTTFAMs   float64
	thinking     bool
	width        int
	quitting     bool
	disconnected bool
}

func newModel(voice *session.Session, events <-chan uiEvent) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return model{
		session: voice,
		events:  events,
		spinner: s,
		status:  "Connecting...",
		width:   80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.listenSession(), m.spinner.Tick, m.tick())
}

func (m model) listenSession() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return sessionEventMsg(event)
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "i", " ":
			_ = m.session.Interrupt()
		case "s":
			_ = m.session.StopTurn()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case sessionEventMsg:
		m.handleSessionEvent(uiEvent(msg))
		cmds = append(cmds, m.listenSession())
		if m.disconnected {
			m.quitting = true
			cmds = append(cmds, tea.Quit)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, m.tick())
	}

	return m, tea.Batch(cmds...)
}

func (m *model) handleSessionEvent(event uiEvent) {
	switch event.kind {
	case "status":
		m.status = event.text
	case "partial":
		m.partial = event.text
	case "transcript":
		m.partial = ""
		m.appendLine(userStyle.Render("You: ") + event.text)
	case "thinking_start":
		m.thinking = true
	case "thinking_end":
		m.thinking = false
	case "assistant":
		m.appendLine(assistantStyle.Render("Assistant: ") + event.text)
	case "warning":
		m.appendLine(warningStyle.Render("! ") + event.text)
	case "error":
		m.thinking = false
		m.appendLine(errorStyle.Render("✗ ") + event.text)
	case "latency":
		if millis, err := parseMillis(event.text); err == nil {
			m.lastTTFAMs = millis
		}
	case "connection":
		m.connected = event.ok
		if !event.ok {
			m.disconnected = true
		}
	}
}

func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > 100 {
		m.lines = m.lines[len(m.lines)-100:]
	}
}

func parseMillis(text string) (float64, error) {
	var millis float64
	_, err := fmt.Sscanf(text, "%f", &millis)
	return millis, err
}

func (m model) View() string {
	if m.quitting {
		return "Session closed.\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("voxcal voice assistant"))
	b.WriteString("\n\n")

	wrapWidth := max(m.width-2, 20)
	for _, line := range m.lines {
		b.WriteString(wordwrap.String(line, wrapWidth))
		b.WriteString("\n")
	}

	if m.partial != "" {
		b.WriteString(transcriptStyle.Render(wordwrap.String("You: "+m.partial, wrapWidth)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	status := m.status
	if m.thinking {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(statusStyle.Render(status))

	details := fmt.Sprintf("  connected=%v", m.connected)
	if m.lastTTFAMs > 0 {
		details += fmt.Sprintf("  ttfa=%.0fms", m.lastTTFAMs)
	}
	if dropped := m.session.FramesDropped(); dropped > 0 {
		details += fmt.Sprintf("  dropped_frames=%d", dropped)
	}
	b.WriteString(faintStyle.Render(details))

	b.WriteString(helpStyle.Render("\ni/space=interrupt  s=stop turn  q=quit"))
	b.WriteString("\n")
	return b.String()
}
