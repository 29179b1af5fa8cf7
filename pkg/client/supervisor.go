package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/leaderboard"
	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/pkg/racestatus"
)

// DefaultReconnectDelay is waited before each connection attempt
const DefaultReconnectDelay = 3 * time.Second

const (
	channelTelemetry = "telemetry"
	channelCommand   = "command"
)

type (
	// Supervisor keeps a telemetry and a command channel connected to the
	// relay. Both channels are opened and closed together. After a loss
	// a new pair is dialed after a fixed delay, forever.
	Supervisor struct {
		endpoints Endpoints
		dialer    Dialer
		clock     clockwork.Clock
		delay     time.Duration
		names     leaderboard.NameResolver
		onChange  func(SessionState)
		l         *log.Logger

		events   chan event
		stopping chan struct{}
		// set once the Run loop ended, no event is queued afterwards
		stopMu   sync.RWMutex
		stopped  bool
		commands *CommandChannel

		// owned by the Run loop
		gen       uint64
		timer     clockwork.Timer
		telemetry Transport
		cur       SessionState

		mu    sync.RWMutex
		state SessionState
	}
	Option func(*Supervisor)
)

func WithClock(c clockwork.Clock) Option {
	return func(s *Supervisor) {
		s.clock = c
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(s *Supervisor) {
		s.delay = d
	}
}

func WithNames(n leaderboard.NameResolver) Option {
	return func(s *Supervisor) {
		s.names = n
	}
}

// WithOnChange registers a callback which receives each new state.
// It is called from the supervisor loop and must not block.
func WithOnChange(f func(SessionState)) Option {
	return func(s *Supervisor) {
		s.onChange = f
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Supervisor) {
		s.l = l
	}
}

func NewSupervisor(endpoints Endpoints, dialer Dialer, opts ...Option) *Supervisor {
	ret := &Supervisor{
		endpoints: endpoints,
		dialer:    dialer,
		clock:     clockwork.NewRealClock(),
		delay:     DefaultReconnectDelay,
		names:     leaderboard.IDNames,
		l:         log.Default().Named("client"),
		events:    make(chan event, 16),
		stopping:  make(chan struct{}),
		cur:       initialState(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.state = ret.cur
	ret.commands = newCommandChannel(ret.l.Named("command"))
	return ret
}

// Commands returns the command channel of this supervisor
func (s *Supervisor) Commands() *CommandChannel {
	return s.commands
}

// State returns the latest session state
func (s *Supervisor) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run drives the connection until ctx is done. It must be called once.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.stop()

	s.scheduleConnect()
	for {
		select {
		case <-ctx.Done():
			s.l.Debug("context done, stopping supervisor")
			return ctx.Err()
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Supervisor) post(ev event) bool {
	s.stopMu.RLock()
	defer s.stopMu.RUnlock()
	if s.stopped {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.stopping:
		return false
	}
}

// stop rejects further events, closes transports of connections which
// were dialed but never handed to the loop and tears down the current pair.
func (s *Supervisor) stop() {
	close(s.stopping)
	s.stopMu.Lock()
	s.stopped = true
	s.stopMu.Unlock()
	for {
		select {
		case ev := <-s.events:
			if r, ok := ev.(dialResult); ok && r.err == nil {
				r.telemetry.Close()
				r.command.Close()
			}
		default:
			s.teardown()
			return
		}
	}
}

func (s *Supervisor) dispatch(ctx context.Context, ev event) {
	if ev.generation() != s.gen {
		if r, ok := ev.(dialResult); ok && r.err == nil {
			r.telemetry.Close()
			r.command.Close()
		}
		s.l.Debug("ignoring stale event", log.String("event", fmt.Sprintf("%T", ev)))
		return
	}
	switch e := ev.(type) {
	case reconnectDue:
		s.timer = nil
		s.update(func(st *SessionState) { st.Connection = Connecting })
		s.l.Debug("connecting", log.String("telemetry", s.endpoints.Telemetry),
			log.String("command", s.endpoints.Command))
		go s.dial(ctx, e.gen)
	case dialResult:
		if e.err != nil {
			s.l.Warn("could not connect", log.ErrorField(e.err))
			s.closePair()
			return
		}
		s.telemetry = e.telemetry
		s.commands.attach(e.command)
		go s.read(e.gen, channelTelemetry, e.telemetry)
		go s.read(e.gen, channelCommand, e.command)
		s.update(func(st *SessionState) { st.Connection = Open })
		s.l.Info("connected")
	case telemetryFrame:
		s.handleTelemetry(e.data)
	case commandFrame:
		s.l.Debug("message on command channel", log.ByteString("data", e.data))
	case channelClosed:
		s.l.Warn("channel closed", log.String("channel", e.channel), log.ErrorField(e.err))
		s.closePair()
	}
}

// closePair closes both channels, marks the session failed and schedules
// the next attempt.
func (s *Supervisor) closePair() {
	s.gen++
	s.closeTransports()
	s.update(func(st *SessionState) {
		st.Connection = Closed
		st.Indicator = IndicatorFailed
	})
	s.scheduleConnect()
}

func (s *Supervisor) closeTransports() {
	if s.telemetry != nil {
		s.telemetry.Close()
		s.telemetry = nil
	}
	s.commands.detach()
}

// scheduleConnect arms the reconnect timer. At most one attempt is pending.
func (s *Supervisor) scheduleConnect() {
	if s.timer != nil {
		return
	}
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() {
		s.post(reconnectDue{gen: gen})
	})
}

func (s *Supervisor) teardown() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.closeTransports()
	s.update(func(st *SessionState) {
		st.Connection = Closed
		st.Indicator = IndicatorFailed
	})
}

func (s *Supervisor) dial(ctx context.Context, gen uint64) {
	tel, err := s.dialer.Dial(ctx, s.endpoints.Telemetry)
	if err != nil {
		s.post(dialResult{gen: gen, err: err})
		return
	}
	cmd, err := s.dialer.Dial(ctx, s.endpoints.Command)
	if err != nil {
		tel.Close()
		s.post(dialResult{gen: gen, err: err})
		return
	}
	if !s.post(dialResult{gen: gen, telemetry: tel, command: cmd}) {
		tel.Close()
		cmd.Close()
	}
}

func (s *Supervisor) read(gen uint64, channel string, t Transport) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			s.post(channelClosed{gen: gen, channel: channel, err: err})
			return
		}
		var ev event = commandFrame{gen: gen, data: data}
		if channel == channelTelemetry {
			ev = telemetryFrame{gen: gen, data: data}
		}
		if !s.post(ev) {
			return
		}
	}
}

// handleTelemetry marks the session alive and applies update_positions
// snapshots. Bad frames are dropped.
func (s *Supervisor) handleTelemetry(data []byte) {
	if s.cur.Indicator != IndicatorOK {
		s.update(func(st *SessionState) { st.Indicator = IndicatorOK })
	}
	if !gjson.ValidBytes(data) {
		s.l.Warn("dropping frame", log.ErrorField(model.ErrDecode), log.ByteString("data", data))
		return
	}
	mt := model.MessageType(gjson.GetBytes(data, "type").String())
	if mt != model.MTUpdatePositions {
		s.l.Info("ignoring frame", log.ErrorField(model.ErrUnrecognizedMessage),
			log.String("type", string(mt)))
		return
	}
	snap, err := model.DecodeSnapshot(data)
	if err != nil {
		s.l.Warn("dropping snapshot", log.ErrorField(err))
		return
	}
	rows, err := leaderboard.Render(snap, s.names)
	if err != nil {
		s.l.Warn("dropping snapshot", log.ErrorField(err))
		return
	}
	now := s.clock.Now()
	s.update(func(st *SessionState) {
		a, ok := racestatus.Apply(st.Affordances, snap.Status)
		if !ok {
			s.l.Warn("ignoring unknown race status", log.String("status", string(snap.Status)))
		}
		st.Affordances = a
		if snap.Status.Known() {
			st.Status = snap.Status
		}
		st.Rows = rows
		st.UpdatedAt = now
	})
}

func (s *Supervisor) update(f func(*SessionState)) {
	next := s.cur
	f(&next)
	s.cur = next
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(next)
	}
}
