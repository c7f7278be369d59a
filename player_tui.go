// player_tui.go - interactive terminal playback interface.

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	tuiAccent = lipgloss.Color("#5FD7FF")
	tuiDim    = lipgloss.Color("#666666")

	tuiTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(tuiAccent).
			MarginBottom(1)

	tuiLabelStyle = lipgloss.NewStyle().
			Foreground(tuiDim)

	tuiValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	tuiMeterStyle = lipgloss.NewStyle().
			Foreground(tuiAccent)

	tuiHelpStyle = lipgloss.NewStyle().
			Foreground(tuiDim).
			MarginTop(1)

	tuiBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(tuiAccent).
			Padding(1, 2)
)

var meterRunes = []rune(" ▁▂▃▄▅▆▇█")

type playerTickMsg time.Time

type playerModel struct {
	player   *StreamPlayer
	progress progress.Model
	width    int
	finished bool
}

func newPlayerModel(player *StreamPlayer) playerModel {
	prog := progress.New(progress.WithDefaultGradient())
	prog.ShowPercentage = false
	return playerModel{
		player:   player,
		progress: prog,
	}
}

func playerTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return playerTickMsg(t)
	})
}

func (m playerModel) Init() tea.Cmd {
	return playerTick()
}

func (m playerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 12
		if w < 10 {
			w = 10
		}
		if w > 60 {
			w = 60
		}
		m.progress.Width = w
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.player.Stop()
			return m, tea.Quit
		case " ", "p":
			dev := m.player.device
			dev.SetPaused(!dev.Paused())
			return m, nil
		case "r":
			m.finished = false
			if err := m.player.Play(); err != nil {
				m.player.Stop()
				return m, tea.Quit
			}
			return m, nil
		}

	case playerTickMsg:
		if !m.player.IsPlaying() && !m.player.device.Paused() {
			m.finished = true
		}
		return m, playerTick()
	}
	return m, nil
}

func (m playerModel) View() string {
	meta := m.player.Metadata()
	var s strings.Builder

	s.WriteString(tuiTitleStyle.Render(" vireo "))
	s.WriteString("\n")

	name := meta.Path
	if name != "" {
		name = filepath.Base(name)
	} else {
		name = "(memory)"
	}
	s.WriteString(tuiLabelStyle.Render("Song    "))
	s.WriteString(tuiValueStyle.Render(name))
	s.WriteString("\n")
	s.WriteString(tuiLabelStyle.Render("Format  "))
	s.WriteString(tuiValueStyle.Render(fmt.Sprintf("%s, division %d", meta.Format, meta.Division)))
	s.WriteString("\n\n")

	dur := m.player.DurationSeconds()
	pos := m.player.PositionSeconds()
	if dur > 0 {
		frac := pos / dur
		if frac > 1 {
			frac = 1
		}
		s.WriteString(m.progress.ViewAs(frac))
	} else {
		s.WriteString(m.progress.ViewAs(0))
	}
	s.WriteString("\n")
	s.WriteString(tuiLabelStyle.Render(fmt.Sprintf("%7s / %s", orDash(m.player.PositionText()), orDash(m.player.DurationText()))))
	s.WriteString("\n\n")

	s.WriteString(tuiLabelStyle.Render("Channels "))
	s.WriteString(tuiMeterStyle.Render(m.channelMeters()))
	s.WriteString("\n")

	switch {
	case m.finished:
		s.WriteString(tuiValueStyle.Render("\nFinished."))
	case m.player.device.Paused():
		s.WriteString(tuiValueStyle.Render("\nPaused."))
	}

	s.WriteString("\n")
	s.WriteString(tuiHelpStyle.Render("space: pause • r: restart • q: quit"))

	return tuiBoxStyle.Render(s.String())
}

// channelMeters draws the sixteen tracked channel volumes as one glyph
// per channel.
func (m playerModel) channelMeters() string {
	var runes [16]rune
	for ch := 0; ch < 16; ch++ {
		v := m.player.device.ChannelVolume(ch)
		idx := v * (len(meterRunes) - 1) / 127
		if idx < 0 {
			idx = 0
		}
		if idx >= len(meterRunes) {
			idx = len(meterRunes) - 1
		}
		runes[ch] = meterRunes[idx]
	}
	return string(runes[:])
}

func orDash(s string) string {
	if s == "" {
		return "-:--"
	}
	return s
}

// runPlayerTUI starts playback and runs the interactive interface until
// quit or end of song.
func runPlayerTUI(player *StreamPlayer) error {
	if err := player.Play(); err != nil {
		return err
	}
	p := tea.NewProgram(newPlayerModel(player), tea.WithAltScreen())
	_, err := p.Run()
	player.Stop()
	return err
}
