package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edunotas/edunotas-api/internal/dto"
)

type eventMsg dto.NoiseEvent

type disconnectedMsg struct {
	err     error
	retryIn time.Duration
}

const (
	barWidth  = 40
	offColor  = "236"
	lampWidth = 10
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(1, 3)
)

var zoneLabels = map[string]string{
	"green": "Silencio",
	"amber": "Atención",
	"red":   "¡Demasiado ruido!",
}

type model struct {
	server    string
	connected bool
	last      dto.NoiseEvent
	status    string
	width     int
	height    int
}

func newModel(server string) model {
	return model{server: server, status: "conectando…"}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case eventMsg:
		m.connected = true
		m.last = dto.NoiseEvent(msg)
		m.status = ""
	case disconnectedMsg:
		m.connected = false
		m.status = fmt.Sprintf("sin conexión (%v), reintento en %s", msg.err, msg.retryIn)
	}
	return m, nil
}

func (m model) View() string {
	var lines []string
	lines = append(lines, titleStyle.Render("EduNotas · Semáforo de ruido"), "")

	zone := m.last.Zone
	if !m.connected {
		zone = ""
	}
	for _, z := range []string{"red", "amber", "green"} {
		color := offColor
		if z == zone {
			color = m.last.Color
		}
		lines = append(lines, lamp(color))
	}
	lines = append(lines, "")

	if m.connected {
		lines = append(lines,
			lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.last.Color)).Render(zoneLabels[zone]),
			levelBar(m.last.Level, m.last.Color),
			dimStyle.Render(fmt.Sprintf("nivel %.0f · %.1f dBFS", m.last.Level, m.last.DB)),
		)
	}
	if m.status != "" {
		lines = append(lines, warnStyle.Render(m.status))
	}
	lines = append(lines, "", dimStyle.Render(m.server+" · q para salir"))

	box := frameStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func lamp(color string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	return style.Render(strings.Repeat("█", lampWidth)) + "\n" + style.Render(strings.Repeat("█", lampWidth))
}

// levelBar renders level on the 0-100 display scale.
func levelBar(level float64, color string) string {
	filled := int(math.Round(math.Max(0, math.Min(100, level)) / 100 * barWidth))
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(strings.Repeat("▮", filled)) +
		lipgloss.NewStyle().Foreground(lipgloss.Color(offColor)).Render(strings.Repeat("▯", barWidth-filled))
}
