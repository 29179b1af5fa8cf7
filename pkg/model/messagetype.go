package model

// MessageType is the value of the "type" attribute of a telemetry frame
type MessageType string

const (
	MTUpdatePositions MessageType = "update_positions"
)

// RaceStatus is the status attribute of a snapshot
type RaceStatus string

const (
	StatusNotStarted RaceStatus = "not_started"
	StatusStarted    RaceStatus = "started"
	StatusPaused     RaceStatus = "paused"
	StatusFinished   RaceStatus = "finished"
)

func (s RaceStatus) Known() bool {
	switch s {
	case StatusNotStarted, StatusStarted, StatusPaused, StatusFinished:
		return true
	}
	return false
}

// bus channels used between relay, normalizer and race engine
const (
	IncomingEventChannel = "input_events"
	OutgoingEventChannel = "game_events"
)
