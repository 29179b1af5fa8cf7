package client

import (
	"time"

	"github.com/racecontroll/racecontrol/pkg/leaderboard"
	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/pkg/racestatus"
)

type (
	ConnectionState int
	// Indicator is the connectivity marker shown to the user
	Indicator string
)

const (
	Connecting ConnectionState = iota
	Open
	Closed
)

const (
	IndicatorOK     Indicator = "ok"
	IndicatorFailed Indicator = "failed"
)

func (c ConnectionState) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// SessionState is everything a ui needs to render the race. A new value
// is produced for each change, values handed out are never modified.
type SessionState struct {
	Connection  ConnectionState
	Indicator   Indicator
	Status      model.RaceStatus
	Affordances racestatus.Affordances
	Rows        []leaderboard.Row
	// time of the last accepted snapshot, zero before the first one
	UpdatedAt time.Time
}

func initialState() SessionState {
	return SessionState{
		Connection:  Connecting,
		Indicator:   IndicatorFailed,
		Affordances: racestatus.Initial(),
	}
}
