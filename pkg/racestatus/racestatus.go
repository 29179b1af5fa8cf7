package racestatus

import (
	"github.com/racecontroll/racecontrol/pkg/model"
)

type (
	// Control describes one button of the race control panel
	Control struct {
		Enabled bool
		Caption string
	}
	// Affordances holds the state of the go, pause and reset controls
	Affordances struct {
		Go    Control
		Pause Control
		Reset Control
	}
	// ControlName identifies a control of the panel
	ControlName string
)

const (
	ControlGo    ControlName = "go"
	ControlPause ControlName = "pause"
	ControlReset ControlName = "reset"
)

var table = map[model.RaceStatus]Affordances{
	model.StatusNotStarted: {
		Go: Control{Enabled: true, Caption: "Start"},
	},
	model.StatusStarted: {
		Pause: Control{Enabled: true, Caption: "Pause"},
	},
	model.StatusPaused: {
		Go:    Control{Enabled: true, Caption: "Resume"},
		Reset: Control{Enabled: true, Caption: "Reset"},
	},
	model.StatusFinished: {},
}

// Initial is shown before the first snapshot arrived. All controls are inert.
func Initial() Affordances {
	return Affordances{}
}

// For returns the affordances for status. ok is false for unknown statuses.
func For(status model.RaceStatus) (a Affordances, ok bool) {
	a, ok = table[status]
	return a, ok
}

// Apply derives the affordances for status. For an unknown status prev is
// returned unchanged and ok is false.
func Apply(prev Affordances, status model.RaceStatus) (a Affordances, ok bool) {
	if a, ok = For(status); !ok {
		return prev, false
	}
	return a, true
}

// Control returns the state of the named control.
func (a Affordances) Control(name ControlName) (Control, bool) {
	switch name {
	case ControlGo:
		return a.Go, true
	case ControlPause:
		return a.Pause, true
	case ControlReset:
		return a.Reset, true
	}
	return Control{}, false
}

// Command maps a control to the command it sends. "reset" is sent as
// the canonical "finish" request.
func Command(name ControlName) (model.ControlCommand, bool) {
	switch name {
	case ControlGo:
		return model.StartCommand(), true
	case ControlPause:
		return model.PauseCommand(), true
	case ControlReset:
		return model.FinishCommand(), true
	}
	return model.ControlCommand{}, false
}

// Trigger returns the command of the named control if that control is
// currently enabled.
func (a Affordances) Trigger(name ControlName) (model.ControlCommand, bool) {
	c, ok := a.Control(name)
	if !ok || !c.Enabled {
		return model.ControlCommand{}, false
	}
	return Command(name)
}
