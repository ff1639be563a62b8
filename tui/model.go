package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"microarp/arp"
	"microarp/theme"
	"microarp/transport"
	"microarp/widgets"
)

type Model struct {
	Engine *arp.Engine
	Theme  *theme.Theme

	quitting bool
	lastStep int
	sustain  bool
	bend     float64
	host     transport.Info
	hostSeen bool
}

type EngineEventMsg arp.Event

func NewModel(engine *arp.Engine, th *theme.Theme) Model {
	return Model{
		Engine:   engine,
		Theme:    th,
		lastStep: -1,
	}
}

func ListenForEvents(engine *arp.Engine) tea.Cmd {
	return func() tea.Msg {
		return EngineEventMsg(<-engine.Events())
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForEvents(m.Engine)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.Engine.Stop()
			return m, tea.Quit

		case " ":
			if m.Engine.Running() {
				m.Engine.Stop()
			} else {
				m.Engine.Start()
			}

		case "+", "=":
			m.Engine.SetTempo(m.Engine.Settings().TempoBPM + 5)

		case "-", "_":
			m.Engine.SetTempo(m.Engine.Settings().TempoBPM - 5)

		case "p":
			m.Engine.Stop()
			m.Engine.Panic()
		}

	case EngineEventMsg:
		ev := arp.Event(msg)
		switch ev.Kind {
		case arp.EventStep:
			m.lastStep = ev.StepIndex
		case arp.EventSustain:
			m.sustain = ev.Sustain
		case arp.EventMasterBend:
			m.bend = ev.Semitones
		case arp.EventTransport:
			m.host = ev.Info
			m.hostSeen = true
		}
		return m, ListenForEvents(m.Engine)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	settings := m.Engine.Settings()
	active := m.Engine.ActiveVoices()

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	bodyStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	bendStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	playState := "STOP"
	if m.Engine.Running() {
		playState = "PLAY"
	}

	step := "--"
	if m.lastStep >= 0 {
		step = fmt.Sprintf("%02d", m.lastStep)
	}

	header := headerStyle.Render(fmt.Sprintf("microarp  %s  %3.0fbpm %s  step:%s  [%s]",
		playState, settings.TempoBPM, settings.Clock.Division, step, m.Engine.BackendName()))

	// Channel occupancy
	busyColor := m.Theme.Palette.Lookup(theme.RoleActive)
	idleColor := m.Theme.Palette.Lookup(theme.RoleMuted)
	row := widgets.RenderChannelRow(active, busyColor, idleColor,
		m.Theme.Symbols.ChannelBusy, m.Theme.Symbols.ChannelIdle)
	notes := dimStyle.Render(widgets.RenderChannelNotes(active))

	pedal := string(m.Theme.Symbols.PedalUp)
	if m.sustain {
		pedal = string(m.Theme.Symbols.PedalDown)
	}
	status := bodyStyle.Render(fmt.Sprintf("pedal:%s  ", pedal)) +
		bendStyle.Render(fmt.Sprintf("bend:%+.2fst", m.bend))

	tuning := dimStyle.Render(fmt.Sprintf("base:%.2fHz  range:%gst  dir:%s  oct:%d  gate:%.2f  prob:%.2f",
		settings.BaseFrequencyHz, settings.BendRange, settings.Clock.Direction,
		settings.Clock.OctaveSpan, settings.Clock.GateFraction, settings.Clock.Probability))

	help := dimStyle.Render(widgets.RenderKeyHelp([]widgets.KeySection{
		{Keys: []widgets.KeyBinding{
			{Key: "space", Desc: "start/stop"},
			{Key: "+/-", Desc: "tempo"},
			{Key: "p", Desc: "panic"},
			{Key: "q", Desc: "quit"},
		}},
	}))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(row)
	out.WriteString("\n")
	out.WriteString(notes)
	out.WriteString("\n\n")
	out.WriteString(status)
	out.WriteString("\n")
	out.WriteString(tuning)

	if m.hostSeen {
		hostState := "stopped"
		if m.host.Playing {
			hostState = "playing"
		}
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(fmt.Sprintf("host:%s  %.1fbpm  pos:%.2f",
			hostState, m.host.BPM, m.host.Position)))
	}

	out.WriteString("\n\n")
	out.WriteString(help)

	return out.String()
}
