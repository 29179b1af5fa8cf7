package model

import (
	"encoding/json"
	"fmt"
)

// Request is the "request" attribute of messages on the incoming channel
type Request string

const (
	RequestStart  Request = "start"
	RequestPause  Request = "pause"
	RequestFinish Request = "finish"
	RequestTrack  Request = "track"
)

// TrackEventLapFinished is the only track event type handled by the race
const TrackEventLapFinished = "lap_finished"

// ControlCommand is sent by a privileged client on the command channel.
//
//nolint:tagliatelle // wire compatibility
type ControlCommand struct {
	Request     Request `json:"request"`
	Type        string  `json:"type,omitempty"`
	TrackID     *int    `json:"track_id,omitempty"`
	LapFinished *int64  `json:"lap_finished,omitempty"`
}

func StartCommand() ControlCommand  { return ControlCommand{Request: RequestStart} }
func PauseCommand() ControlCommand  { return ControlCommand{Request: RequestPause} }
func FinishCommand() ControlCommand { return ControlCommand{Request: RequestFinish} }

func LapFinishedCommand(trackID int, lapTime int64) ControlCommand {
	return ControlCommand{
		Request:     RequestTrack,
		Type:        TrackEventLapFinished,
		TrackID:     &trackID,
		LapFinished: &lapTime,
	}
}

// Validate checks the request vocabulary and the attributes of track commands.
func (c ControlCommand) Validate() error {
	switch c.Request {
	case RequestStart, RequestPause, RequestFinish:
		return nil
	case RequestTrack:
		if c.Type != TrackEventLapFinished {
			return fmt.Errorf("%w: track event type %q", ErrUnrecognizedMessage, c.Type)
		}
		if c.TrackID == nil || c.LapFinished == nil {
			return fmt.Errorf("%w: track event needs track_id and lap_finished", ErrDecode)
		}
		// -1 is reserved for "no time yet"
		if *c.LapFinished < 0 {
			return fmt.Errorf("%w: negative lap time %d", ErrDecode, *c.LapFinished)
		}
		return nil
	default:
		return fmt.Errorf("%w: request %q", ErrUnrecognizedMessage, c.Request)
	}
}

func DecodeControlCommand(data []byte) (ControlCommand, error) {
	var c ControlCommand
	if err := json.Unmarshal(data, &c); err != nil {
		return ControlCommand{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return c, c.Validate()
}
