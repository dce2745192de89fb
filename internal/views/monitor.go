// Package views renders the terminal monitor: a live per-track readout of
// cursor position, activity and CV while the engine runs.
package views

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schollz/performer/internal/engine"
	"github.com/schollz/performer/internal/music"
	"github.com/schollz/performer/internal/types"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	cursorFilled = "█"
	cursorEmpty  = "·"
)

// MonitorTickMsg drives the monitor refresh at UI rate.
type MonitorTickMsg time.Time

// MonitorModel is a bubbletea model showing engine state. The engine is
// ticked elsewhere; the monitor reads its state and forwards the play/stop
// and mute keys.
type MonitorModel struct {
	eng   *engine.Engine
	muted [types.TrackCount]bool
	width int
}

func NewMonitorModel(eng *engine.Engine) *MonitorModel {
	return &MonitorModel{eng: eng}
}

func monitorTick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return MonitorTickMsg(t)
	})
}

func (m *MonitorModel) Init() tea.Cmd {
	return monitorTick()
}

func (m *MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case MonitorTickMsg:
		return m, monitorTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.eng.Running() {
				m.eng.Stop()
			} else {
				m.eng.Start()
			}
		case "1", "2", "3", "4", "5", "6", "7", "8":
			track := int(msg.String()[0] - '1')
			m.muted[track] = !m.muted[track]
			m.eng.SetMute(track, m.muted[track])
		}
	}
	return m, nil
}

func (m *MonitorModel) View() string {
	var b strings.Builder

	state := "stopped"
	if m.eng.Running() {
		state = "running"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("performer  %s  tick %d", state, m.eng.TickCount())))
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render("  #  mode     cursor            gate  cv       note"))
	b.WriteString("\n")

	for i := 0; i < types.TrackCount; i++ {
		b.WriteString(m.renderTrack(i))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("space play/stop · 1-8 mute · q quit"))
	return b.String()
}

func (m *MonitorModel) renderTrack(i int) string {
	te := m.eng.Track(i)

	gate := " "
	if te.GateOutput(0) {
		gate = "▌"
	}

	line := fmt.Sprintf("  %d  %-8s %s  %s    %+5.2fV  %s",
		i+1, te.TrackMode(), m.renderCursor(te), gate, te.CvOutput(0), noteName(te.CvOutput(0)))

	switch {
	case m.muted[i]:
		return mutedStyle.Render(line)
	case te.Activity():
		return activeStyle.Render(line)
	default:
		return idleStyle.Render(line)
	}
}

// noteName labels the V/Oct output with the nearest MIDI note, C4 = 0V.
func noteName(volts float32) string {
	return music.MidiToNoteName(int(math.Round(float64(volts)*12)) + 60)
}

func (m *MonitorModel) renderCursor(te engine.TrackEngine) string {
	pos := int(te.SequenceProgress() * float32(types.StepCount-1))
	var b strings.Builder
	for s := 0; s < types.StepCount; s++ {
		if s == pos && te.Activity() {
			b.WriteString(cursorFilled)
		} else {
			b.WriteString(cursorEmpty)
		}
	}
	return b.String()
}
