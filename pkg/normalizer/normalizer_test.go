//nolint:lll // ok for tests
package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/model"
)

type recordingPublisher struct {
	mu   sync.Mutex
	err  error
	msgs map[string][][]byte
}

func (p *recordingPublisher) Publish(channel string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.msgs == nil {
		p.msgs = make(map[string][][]byte)
	}
	p.msgs[channel] = append(p.msgs[channel], data)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(nil, log.ErrorLevel)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  model.TrackEvent
		want model.EventEnvelope
	}{
		{
			"sensor event",
			model.TrackEvent{"track_id": int64(1), "lap_finished": int64(65432)},
			model.EventEnvelope{"request": "track", "type": "lap_finished", "track_id": int64(1), "lap_finished": int64(65432)},
		},
		{
			"empty",
			model.TrackEvent{},
			model.EventEnvelope{"request": "track", "type": "lap_finished"},
		},
		{
			"canonical keys win",
			model.TrackEvent{"request": "start", "type": "crash", "x": true},
			model.EventEnvelope{"request": "track", "type": "lap_finished", "x": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, model.RequestTrack, got.Request())
			assert.Equal(t, model.TrackEventLapFinished, got.Type())
			assert.Len(t, got, len(tt.want))
		})
	}
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	raw := model.TrackEvent{"request": "start"}
	Normalize(raw)
	assert.Equal(t, model.TrackEvent{"request": "start"}, raw)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    model.TrackEvent
		wantErr error
	}{
		{"object", `{"track_id":1,"lap_finished":9000}`, model.TrackEvent{"track_id": int64(1), "lap_finished": int64(9000)}, nil},
		{"double encoded", `"{\"track_id\":0,\"lap_finished\":12}"`, model.TrackEvent{"track_id": int64(0), "lap_finished": int64(12)}, nil},
		{"empty object", `{}`, model.TrackEvent{}, nil},
		{"array", `[1,2]`, nil, model.ErrDecode},
		{"number", `42`, nil, model.ErrDecode},
		{"string without object", `"hello"`, nil, model.ErrDecode},
		{"garbage", `{"track_id":`, nil, model.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_Handle(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNormalizer(pub, WithLogger(quietLogger()))

	require.NoError(t, n.Handle(context.Background(), []byte(`{"track_id":1,"lap_finished":65432,"request":"pause"}`)))
	require.Len(t, pub.msgs[model.IncomingEventChannel], 1)

	cmd, err := model.DecodeControlCommand(pub.msgs[model.IncomingEventChannel][0])
	require.NoError(t, err)
	assert.Equal(t, model.LapFinishedCommand(1, 65432), cmd)
}

func TestNormalizer_HandleDropsMalformed(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNormalizer(pub, WithLogger(quietLogger()))

	err := n.Handle(context.Background(), []byte(`[1,2,3]`))
	assert.ErrorIs(t, err, model.ErrDecode)
	assert.Empty(t, pub.msgs)
}

func TestNormalizer_PublishFailureIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus down")}
	n := NewNormalizer(pub, WithLogger(quietLogger()), WithChannel("custom"))

	env := n.Publish(model.TrackEvent{"track_id": 3})
	assert.Equal(t, model.RequestTrack, env.Request())
	assert.NoError(t, n.Handle(context.Background(), []byte(`{"track_id":3}`)))
}

func TestNormalizer_WithChannel(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNormalizer(pub, WithLogger(quietLogger()), WithChannel("custom"))
	n.Publish(model.TrackEvent{"foo": "bar"})

	require.Len(t, pub.msgs["custom"], 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs["custom"][0], &got))
	assert.Equal(t, map[string]any{"foo": "bar", "request": "track", "type": "lap_finished"}, got)
}
