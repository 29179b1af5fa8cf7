package monitor

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecontroll/racecontrol/pkg/client"
	"github.com/racecontroll/racecontrol/pkg/leaderboard"
	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/pkg/racestatus"
)

type recordingSender struct {
	sent []model.ControlCommand
}

func (r *recordingSender) Send(cmd model.ControlCommand) {
	r.sent = append(r.sent, cmd)
}

func stateFor(status model.RaceStatus) client.SessionState {
	a, _ := racestatus.For(status)
	return client.SessionState{
		Connection:  client.Open,
		Indicator:   client.IndicatorOK,
		Status:      status,
		Affordances: a,
		Rows: []leaderboard.Row{
			{Rank: 1, DriverID: "7", Name: "Ayrton", Laps: 3, BestLap: "01:05:00", LastLap: leaderboard.NotAvailable},
		},
	}
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m uiModel, msg tea.Msg) (uiModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	ret, ok := next.(uiModel)
	require.True(t, ok)
	return ret, cmd
}

func TestModel_StateMsgReplacesState(t *testing.T) {
	m := newModel("http://relay", &recordingSender{}, client.SessionState{})
	m, _ = update(t, m, stateMsg(stateFor(model.StatusStarted)))
	assert.Equal(t, model.StatusStarted, m.state.Status)
	assert.Len(t, m.state.Rows, 1)
}

func TestModel_KeysSendEnabledCommands(t *testing.T) {
	tests := []struct {
		name   string
		status model.RaceStatus
		key    rune
		want   []model.ControlCommand
	}{
		{"start", model.StatusNotStarted, 's', []model.ControlCommand{model.StartCommand()}},
		{"pause", model.StatusStarted, 'p', []model.ControlCommand{model.PauseCommand()}},
		{"resume", model.StatusPaused, 's', []model.ControlCommand{model.StartCommand()}},
		{"reset", model.StatusPaused, 'r', []model.ControlCommand{model.FinishCommand()}},
		{"pause while not started", model.StatusNotStarted, 'p', nil},
		{"reset while started", model.StatusStarted, 'r', nil},
		{"anything when finished", model.StatusFinished, 's', nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			m := newModel("http://relay", sender, stateFor(tt.status))
			_, cmd := update(t, m, key(tt.key))
			assert.Nil(t, cmd)
			assert.Equal(t, tt.want, sender.sent)
		})
	}
}

func TestModel_InitialStateIsInert(t *testing.T) {
	sender := &recordingSender{}
	m := newModel("http://relay", sender, client.SessionState{Affordances: racestatus.Initial()})
	for _, r := range []rune{'s', 'p', 'r'} {
		m, _ = update(t, m, key(r))
	}
	assert.Empty(t, sender.sent)
}

func TestModel_Quit(t *testing.T) {
	m := newModel("http://relay", &recordingSender{}, client.SessionState{})
	_, cmd := update(t, m, key('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_View(t *testing.T) {
	m := newModel("http://relay", &recordingSender{}, stateFor(model.StatusPaused))
	out := m.View()
	for _, want := range append(leaderboard.Header(),
		"Ayrton", "01:05:00", leaderboard.NotAvailable, "Resume", "Reset", "http://relay") {
		assert.Contains(t, out, want)
	}
}

func TestModel_ViewBeforeFirstSnapshot(t *testing.T) {
	m := newModel("http://relay", &recordingSender{}, client.SessionState{Indicator: client.IndicatorFailed})
	out := m.View()
	assert.Contains(t, out, "waiting for race")
	assert.Contains(t, out, "POSITION")
}
