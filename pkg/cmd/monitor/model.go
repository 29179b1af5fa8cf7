package monitor

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/racecontroll/racecontrol/pkg/client"
	"github.com/racecontroll/racecontrol/pkg/leaderboard"
	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/pkg/racestatus"
)

var (
	okColor     = lipgloss.Color("#50E3C2")
	failedColor = lipgloss.Color("#FF6B6B")
	mutedColor  = lipgloss.Color("#8CA1AE")

	titleStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(mutedColor)
	enabledStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	disabledStyle = lipgloss.NewStyle().Foreground(mutedColor).Strikethrough(true).Padding(0, 1)
	helpStyle     = lipgloss.NewStyle().Foreground(mutedColor)
)

var columnWidths = []int{10, 20, 12, 16, 16}

type (
	// stateMsg carries a new session state from the supervisor
	stateMsg client.SessionState

	commandSender interface {
		Send(cmd model.ControlCommand)
	}

	uiModel struct {
		state    client.SessionState
		commands commandSender
		url      string
		last     string
	}
)

func newModel(url string, commands commandSender, initial client.SessionState) uiModel {
	return uiModel{state: initial, commands: commands, url: url}
}

func (m uiModel) Init() tea.Cmd {
	return nil
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = client.SessionState(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			m.trigger(racestatus.ControlGo)
		case "p":
			m.trigger(racestatus.ControlPause)
		case "r":
			m.trigger(racestatus.ControlReset)
		}
	}
	return m, nil
}

// disabled controls ignore their key
func (m *uiModel) trigger(name racestatus.ControlName) {
	cmd, ok := m.state.Affordances.Trigger(name)
	if !ok {
		return
	}
	m.commands.Send(cmd)
	m.last = string(cmd.Request)
}

func (m uiModel) View() string {
	var b strings.Builder
	b.WriteString(m.titleLine())
	b.WriteString("\n\n")
	b.WriteString(renderRow(leaderboard.Header(), headerStyle))
	b.WriteString("\n")
	for _, row := range m.state.Rows {
		b.WriteString(renderRow(row.Cells(), lipgloss.NewStyle()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.controls())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s start/resume  p pause  r reset  q quit"))
	if m.last != "" {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  (sent %s)", m.last)))
	}
	b.WriteString("\n")
	return b.String()
}

func (m uiModel) titleLine() string {
	color := failedColor
	if m.state.Indicator == client.IndicatorOK {
		color = okColor
	}
	indicator := lipgloss.NewStyle().Foreground(color).Render("●")
	status := string(m.state.Status)
	if status == "" {
		status = "waiting for race"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		indicator,
		titleStyle.Render(m.url),
		helpStyle.Render(fmt.Sprintf("[%s] %s", m.state.Connection, status)),
	)
}

func (m uiModel) controls() string {
	a := m.state.Affordances
	return lipgloss.JoinHorizontal(lipgloss.Top,
		renderControl("s", a.Go),
		renderControl("p", a.Pause),
		renderControl("r", a.Reset),
	)
}

func renderControl(key string, c racestatus.Control) string {
	caption := c.Caption
	if caption == "" {
		caption = "-"
	}
	label := fmt.Sprintf("[%s] %s", key, caption)
	if c.Enabled {
		return enabledStyle.Render(label)
	}
	return disabledStyle.Render(label)
}

func renderRow(cells []string, style lipgloss.Style) string {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		width := 16
		if i < len(columnWidths) {
			width = columnWidths[i]
		}
		parts = append(parts, style.Width(width).Render(cell))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}
