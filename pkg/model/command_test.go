package model

import (
	"encoding/json"
	"testing"

	"gotest.tools/v3/assert"
)

func TestControlCommand_Wire(t *testing.T) {
	tests := []struct {
		name string
		cmd  ControlCommand
		want string
	}{
		{"start", StartCommand(), `{"request":"start"}`},
		{"pause", PauseCommand(), `{"request":"pause"}`},
		{"finish", FinishCommand(), `{"request":"finish"}`},
		{
			"lap on track 0", LapFinishedCommand(0, 65432),
			`{"request":"track","type":"lap_finished","track_id":0,"lap_finished":65432}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cmd)
			assert.NilError(t, err)
			assert.Equal(t, string(data), tt.want)

			back, err := DecodeControlCommand(data)
			assert.NilError(t, err)
			assert.DeepEqual(t, back, tt.cmd)
		})
	}
}

func TestDecodeControlCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"garbage", `start`, ErrDecode},
		{"reset is not canonical", `{"request":"reset"}`, ErrUnrecognizedMessage},
		{"unknown track type", `{"request":"track","type":"crash","track_id":1,"lap_finished":1}`, ErrUnrecognizedMessage},
		{"track without time", `{"request":"track","type":"lap_finished","track_id":1}`, ErrDecode},
		{"no-time marker as lap time", `{"request":"track","type":"lap_finished","track_id":0,"lap_finished":-1}`, ErrDecode},
		{"negative lap time", `{"request":"track","type":"lap_finished","track_id":1,"lap_finished":-500}`, ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeControlCommand([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
