//nolint:lll,funlen // ok for tests
package relay

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus/local"
	"github.com/racecontroll/racecontrol/pkg/model"
)

const frameA = `{"type":"update_positions","status":"started","positions":[["7",1]],"7":{"lap_count":3,"best_time":65000,"lap_time":-1}}`

type testRelay struct {
	bus      *local.LocalBus
	srv      *Server
	http     *httptest.Server
	incoming chan []byte
}

func startRelay(t *testing.T, opts ...Option) *testRelay {
	t.Helper()
	quiet := log.New(nil, log.ErrorLevel)
	b := local.NewLocalBus(local.WithLogger(quiet))
	incoming := make(chan []byte, 16)
	_, err := b.Subscribe(model.IncomingEventChannel, func(data []byte) { incoming <- data })
	require.NoError(t, err)

	srv, err := NewServer(b, DefaultConfig(), append([]Option{WithLogger(quiet)}, opts...)...)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
		b.Close()
	})
	return &testRelay{bus: b, srv: srv, http: hs, incoming: incoming}
}

func (tr *testRelay) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(tr.http.URL, "http") + path
	//nolint:bodyclose // websocket
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func nextIncoming(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case data := <-ch:
		return string(data)
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}
	return ""
}

func TestTelemetry_StreamsSnapshots(t *testing.T) {
	tr := startRelay(t)
	conn := tr.dial(t, "/gamestream")

	require.NoError(t, tr.bus.Publish(model.OutgoingEventChannel, []byte(frameA)))
	assert.JSONEq(t, frameA, read(t, conn))

	frameB := strings.Replace(frameA, `"started"`, `"paused"`, 1)
	require.NoError(t, tr.bus.Publish(model.OutgoingEventChannel, []byte(frameB)))
	assert.JSONEq(t, frameB, read(t, conn))
}

func TestTelemetry_LatestOnConnect(t *testing.T) {
	tr := startRelay(t)
	first := tr.dial(t, "/gamestream")
	require.NoError(t, tr.bus.Publish(model.OutgoingEventChannel, []byte(frameA)))
	// the first client may have subscribed after the publish, it then
	// gets the frame as latest on subscribe
	assert.JSONEq(t, frameA, read(t, first))

	late := tr.dial(t, "/gamestream")
	assert.JSONEq(t, frameA, read(t, late))
}

func TestCommands_Forwarding(t *testing.T) {
	tr := startRelay(t)
	conn := tr.dial(t, "/input")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"request":"start"}`)))
	assert.JSONEq(t, `{"request":"start"}`, nextIncoming(t, tr.incoming))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"request":"track","type":"crash","track_id":1,"lap_finished":65432}`)))
	env := nextIncoming(t, tr.incoming)
	assert.JSONEq(t, `{"request":"track","type":"lap_finished","track_id":1,"lap_finished":65432}`, env)

	// unknown and malformed commands are dropped
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"request":"reset"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[1,2]`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"request":"finish"}`)))
	assert.JSONEq(t, `{"request":"finish"}`, nextIncoming(t, tr.incoming))
}

func TestTrackEvent_Post(t *testing.T) {
	tr := startRelay(t)

	resp, err := http.Post(tr.http.URL+"/track-event", "application/json",
		strings.NewReader(`{"track_id":0,"lap_finished":61000}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"request":"track","type":"lap_finished","track_id":0,"lap_finished":61000}`, nextIncoming(t, tr.incoming))

	resp, err = http.Post(tr.http.URL+"/track-event", "application/json", strings.NewReader(`42`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrackEvent_Stream(t *testing.T) {
	tr := startRelay(t)
	conn := tr.dial(t, "/track-event")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`"{\"track_id\":1,\"lap_finished\":9000}"`)))
	assert.JSONEq(t, `{"request":"track","type":"lap_finished","track_id":1,"lap_finished":9000}`, nextIncoming(t, tr.incoming))
}

func TestKeepalive_DropsSilentClient(t *testing.T) {
	tr := startRelay(t, WithKeepalive(20*time.Millisecond, 20*time.Millisecond))
	conn := tr.dial(t, "/gamestream")
	conn.SetPingHandler(func(string) error { return nil })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) {
				assert.False(t, netErr.Timeout(), "server should close before the client deadline")
			}
			return
		}
	}
}

func TestKeepalive_AnsweringClientStays(t *testing.T) {
	tr := startRelay(t, WithKeepalive(20*time.Millisecond, 100*time.Millisecond))
	conn := tr.dial(t, "/gamestream")

	// the default ping handler answers while reading
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout(), "connection still open, only our deadline hit")
}

func TestUpgrade_PongClearsReadDeadline(t *testing.T) {
	tr := startRelay(t)
	got := make(chan string, 1)
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, id, ok := tr.srv.upgrade(w, r)
		if !ok {
			got <- "upgrade failed"
			return
		}
		defer tr.srv.unregister(id)
		// armed as keepalive does, then answered
		_ = conn.SetReadDeadline(time.Now().Add(-time.Second))
		if err := conn.PongHandler()(""); err != nil {
			got <- err.Error()
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			got <- err.Error()
			return
		}
		got <- string(data)
	}))
	defer hs.Close()

	//nolint:bodyclose // websocket
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	select {
	case msg := <-got:
		assert.Equal(t, "hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no result from server")
	}
}

func TestRoot(t *testing.T) {
	tr := startRelay(t)
	resp, err := http.Get(tr.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "racecontrol relay")
}
