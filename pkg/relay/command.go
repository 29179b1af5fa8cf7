package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/pkg/normalizer"
)

const maxTrackEventSize = 64 << 10

// handleCommands reads control commands from the client. Track commands
// are normalized, start/pause/finish are forwarded as they are.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	conn, id, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	l := s.l.With(log.String("conn", id.String()), log.String("channel", "command"))
	l.Info("client connected", log.String("remote", r.RemoteAddr))
	s.metrics.clientDelta("command", 1)
	done := make(chan struct{})
	defer func() {
		close(done)
		s.unregister(id)
		s.metrics.clientDelta("command", -1)
		l.Info("client disconnected")
	}()
	go s.keepalive(conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			l.Debug("read ended", log.ErrorField(err))
			return
		}
		s.metrics.frame("command", "in")
		if err := s.forward(data); err != nil {
			l.Warn("dropping command", log.ByteString("data", data), log.ErrorField(err))
		}
	}
}

func (s *Server) forward(data []byte) error {
	raw, err := normalizer.Decode(data)
	if err != nil {
		return err
	}
	req, _ := raw["request"].(string)
	switch model.Request(req) {
	case model.RequestTrack:
		s.norm.Publish(raw)
		return nil
	case model.RequestStart, model.RequestPause, model.RequestFinish:
		out, err := json.Marshal(model.ControlCommand{Request: model.Request(req)})
		if err != nil {
			return err
		}
		if err := s.bus.Publish(s.cfg.IncomingChannel, out); err != nil {
			s.l.Warn("could not publish command", log.ErrorField(err))
		}
		return nil
	}
	return fmt.Errorf("%w: request %q", model.ErrUnrecognizedMessage, req)
}

// handleTrackEvent accepts raw sensor events, either posted as json body
// or as messages of a websocket connection.
func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.handleTrackEventStream(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTrackEventSize))
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}
	s.metrics.frame("track-event", "in")
	if err := s.norm.Handle(r.Context(), body); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrDecode) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTrackEventStream(w http.ResponseWriter, r *http.Request) {
	conn, id, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	l := s.l.With(log.String("conn", id.String()), log.String("channel", "track-event"))
	l.Info("sensor connected", log.String("remote", r.RemoteAddr))
	defer func() {
		s.unregister(id)
		l.Info("sensor disconnected")
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			l.Debug("read ended", log.ErrorField(err))
			return
		}
		s.metrics.frame("track-event", "in")
		// malformed events are logged by the normalizer
		_ = s.norm.Handle(r.Context(), data)
	}
}
