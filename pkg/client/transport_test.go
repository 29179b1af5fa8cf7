package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/version"
)

func TestNewEndpoints(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		want    Endpoints
		wantErr bool
	}{
		{"ws", "ws://localhost:3000", Endpoints{"ws://localhost:3000/gamestream", "ws://localhost:3000/input"}, false},
		{"http upgrades to ws", "http://relay:3000/", Endpoints{"ws://relay:3000/gamestream", "ws://relay:3000/input"}, false},
		{"https with prefix", "https://example.com/race", Endpoints{"wss://example.com/race/gamestream", "wss://example.com/race/input"}, false},
		{"bad scheme", "ftp://relay", Endpoints{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEndpoints(tt.base, "/gamestream", "input")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebsocketDialer(t *testing.T) {
	gotVersion := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion <- r.Header.Get(version.HeaderName)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	d := NewWebsocketDialer(time.Second)
	tr, err := d.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer tr.Close()
	assert.Equal(t, version.Version, <-gotVersion)

	require.NoError(t, tr.WriteMessage([]byte(`{"request":"start"}`)))
	data, err := tr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"request":"start"}`, string(data))
}

func TestWebsocketDialer_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := NewWebsocketDialer(time.Second).Dial(context.Background(), addr)
	assert.ErrorIs(t, err, model.ErrTransport)
}
