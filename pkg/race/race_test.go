package race

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/model"
)

func newTestRace(n int) *Race {
	return NewRace(n, WithLogger(log.New(nil, log.ErrorLevel)))
}

func TestDriver_AddLap(t *testing.T) {
	d := NewDriver()
	assert.Equal(t, model.NewDriverStats(), d.Stats())

	d.AddLap(65000)
	assert.Equal(t, model.DriverStats{LapCount: 1, BestTime: 65000, LapTime: 65000}, d.Stats())
	d.AddLap(70000)
	assert.Equal(t, model.DriverStats{LapCount: 2, BestTime: 65000, LapTime: 70000}, d.Stats())
	d.AddLap(60000)
	assert.Equal(t, model.DriverStats{LapCount: 3, BestTime: 60000, LapTime: 60000}, d.Stats())
}

func TestRace_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		cmds     []model.ControlCommand
		want     model.RaceStatus
		lastSent bool
	}{
		{"start", []model.ControlCommand{model.StartCommand()}, model.StatusStarted, true},
		{"start twice", []model.ControlCommand{model.StartCommand(), model.StartCommand()}, model.StatusStarted, false},
		{"pause before start", []model.ControlCommand{model.PauseCommand()}, model.StatusNotStarted, false},
		{"pause", []model.ControlCommand{model.StartCommand(), model.PauseCommand()}, model.StatusPaused, true},
		{"resume", []model.ControlCommand{model.StartCommand(), model.PauseCommand(), model.StartCommand()}, model.StatusStarted, true},
		{"finish before start", []model.ControlCommand{model.FinishCommand()}, model.StatusNotStarted, false},
		{"finish started", []model.ControlCommand{model.StartCommand(), model.FinishCommand()}, model.StatusFinished, true},
		{"finish paused", []model.ControlCommand{model.StartCommand(), model.PauseCommand(), model.FinishCommand()}, model.StatusFinished, true},
		{"start finished", []model.ControlCommand{model.StartCommand(), model.FinishCommand(), model.StartCommand()}, model.StatusFinished, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRace(2)
			var changed bool
			for _, cmd := range tt.cmds {
				var err error
				changed, err = r.Apply(cmd)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, r.Status())
			assert.Equal(t, tt.lastSent, changed)
		})
	}
}

func TestRace_LapFinished(t *testing.T) {
	r := newTestRace(3)
	assert.ErrorIs(t, r.LapFinished(0, 1000), ErrNotRunning)

	r.Start()
	require.NoError(t, r.LapFinished(2, 61000))
	require.NoError(t, r.LapFinished(2, 59000))
	require.NoError(t, r.LapFinished(1, 62000))
	assert.ErrorIs(t, r.LapFinished(7, 1000), ErrUnknownTrack)

	s := r.Snapshot()
	assert.Equal(t, []model.Position{{"2", 2}, {"1", 1}, {"0", 0}}, s.Positions)
	assert.Equal(t, model.DriverStats{LapCount: 2, BestTime: 59000, LapTime: 59000}, s.Drivers["2"])
	assert.Equal(t, model.NewDriverStats(), s.Drivers["0"])
	require.NoError(t, s.Validate())

	r.Pause()
	assert.ErrorIs(t, r.LapFinished(0, 1000), ErrNotRunning)
}

func TestRace_PositionsTieKeepDriverOrder(t *testing.T) {
	r := newTestRace(3)
	r.Start()
	require.NoError(t, r.LapFinished(2, 1000))
	require.NoError(t, r.LapFinished(0, 1000))

	assert.Equal(t, []model.Position{{"0", 1}, {"2", 1}, {"1", 0}}, r.Snapshot().Positions)
}

func TestRace_ApplyTrackCommand(t *testing.T) {
	r := newTestRace(2)
	r.Start()
	changed, err := r.Apply(model.LapFinishedCommand(1, 65432))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, r.Snapshot().Drivers["1"].LapCount)

	_, err = r.Apply(model.ControlCommand{Request: model.RequestTrack, Type: "lap_finished"})
	assert.ErrorIs(t, err, model.ErrDecode)
	_, err = r.Apply(model.ControlCommand{Request: "reset"})
	assert.ErrorIs(t, err, model.ErrUnrecognizedMessage)
}

func TestRace_NegativeLapTimeRejected(t *testing.T) {
	r := newTestRace(2)
	r.Start()
	tests := []struct {
		name  string
		track int
		ms    int64
	}{
		{"no-time marker", 0, -1},
		{"negative", 1, -500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := r.Apply(model.LapFinishedCommand(tt.track, tt.ms))
			assert.ErrorIs(t, err, model.ErrDecode)
			assert.False(t, changed)
			assert.ErrorIs(t, r.LapFinished(tt.track, tt.ms), ErrLapTime)
		})
	}
	s := r.Snapshot()
	assert.Equal(t, model.NewDriverStats(), s.Drivers["0"])
	assert.Equal(t, model.NewDriverStats(), s.Drivers["1"])
}

func TestRace_SnapshotIsCopy(t *testing.T) {
	r := newTestRace(2)
	s := r.Snapshot()
	s.Positions[0].LapCount = 99
	assert.Equal(t, 0, r.Snapshot().Positions[0].LapCount)
}
