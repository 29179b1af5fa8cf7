package relay

import (
	"time"

	"github.com/gorilla/websocket"
)

// acceptPongs clears the read deadline armed by keepalive. It must be
// installed before any goroutine reads from conn.
func acceptPongs(conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Time{})
	})
}

// keepalive pings the client every pingInterval until done is closed. A
// client which does not answer within pongWait runs into the read
// deadline and its reader fails.
func (s *Server) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.SetReadDeadline(time.Now().Add(s.pongWait)); err != nil {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(s.writeWait)); err != nil {
				return
			}
		}
	}
}
