package relay

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/racecontroll/racecontrol/log"
)

// handleTelemetry streams snapshots to the client, starting with the
// latest one. Anything the client sends is discarded.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	conn, id, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	l := s.l.With(log.String("conn", id.String()), log.String("channel", "telemetry"))
	l.Info("client connected", log.String("remote", r.RemoteAddr))
	s.metrics.clientDelta("telemetry", 1)
	defer func() {
		s.unregister(id)
		s.metrics.clientDelta("telemetry", -1)
		l.Info("client disconnected")
	}()

	ch := s.bc.Subscribe()
	defer s.bc.CancelSubscription(ch)

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				l.Debug("read ended", log.ErrorField(err))
				return
			}
		}
	}()
	go s.keepalive(conn, readerDone)

	for {
		select {
		case <-readerDone:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				l.Debug("write failed", log.ErrorField(err))
				return
			}
			s.metrics.frame("telemetry", "out")
		}
	}
}
