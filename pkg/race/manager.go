package race

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus"
	"github.com/racecontroll/racecontrol/pkg/model"
)

type (
	// Manager runs the current race. It consumes commands from the
	// incoming channel and pushes snapshots to the outgoing channel.
	// A finished race is replaced by a new one.
	Manager struct {
		bus          bus.Bus
		clock        clockwork.Clock
		numDrivers   int
		pushInterval time.Duration
		incoming     string
		outgoing     string
		l            *log.Logger

		msgs     chan []byte
		race     *Race
		requests metric.Int64Counter
	}
	ManagerOption func(*Manager)
)

func WithManagerLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.l = l
	}
}

func WithClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithNumDrivers(n int) ManagerOption {
	return func(m *Manager) {
		m.numDrivers = n
	}
}

func WithPushInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.pushInterval = d
	}
}

func WithChannels(incoming, outgoing string) ManagerOption {
	return func(m *Manager) {
		m.incoming = incoming
		m.outgoing = outgoing
	}
}

func NewManager(b bus.Bus, opts ...ManagerOption) *Manager {
	m := &Manager{
		bus:          b,
		clock:        clockwork.NewRealClock(),
		numDrivers:   2,
		pushInterval: time.Second,
		incoming:     model.IncomingEventChannel,
		outgoing:     model.OutgoingEventChannel,
		l:            log.Default().Named("race"),
		msgs:         make(chan []byte, 64),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.race = m.newRace()
	var err error
	if m.requests, err = otel.Meter("racecontrol/race").Int64Counter(
		"racecontrol.race.requests",
		metric.WithDescription("Number of handled requests"),
		metric.WithUnit("{count}")); err != nil {
		m.l.Warn("could not create counter", log.ErrorField(err))
	}
	return m
}

func (m *Manager) newRace() *Race {
	return NewRace(m.numDrivers, WithLogger(m.l))
}

// Run handles requests and pushes the state until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	sub, err := m.bus.Subscribe(m.incoming, func(data []byte) {
		select {
		case m.msgs <- data:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			m.l.Warn("could not unsubscribe", log.ErrorField(err))
		}
	}()

	ticker := m.clock.NewTicker(m.pushInterval)
	defer ticker.Stop()
	m.l.Info("race manager started",
		log.Int("drivers", m.numDrivers),
		log.Duration("pushInterval", m.pushInterval))
	m.push()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m.push()
		case data := <-m.msgs:
			m.handle(ctx, data)
		}
	}
}

func (m *Manager) handle(ctx context.Context, data []byte) {
	cmd, err := model.DecodeControlCommand(data)
	if err != nil {
		m.l.Warn("dropping request", log.ByteString("data", data), log.ErrorField(err))
		return
	}
	if m.requests != nil {
		m.requests.Add(ctx, 1,
			metric.WithAttributes(attribute.String("request", string(cmd.Request))))
	}
	changed, err := m.race.Apply(cmd)
	if err != nil {
		level := m.l.Warn
		if errors.Is(err, ErrNotRunning) {
			level = m.l.Debug
		}
		level("request not applied",
			log.String("request", string(cmd.Request)), log.ErrorField(err))
		return
	}
	if !changed {
		m.l.Debug("request ignored",
			log.String("request", string(cmd.Request)),
			log.String("status", string(m.race.Status())))
		return
	}
	m.push()
	if m.race.Status() == model.StatusFinished {
		m.race = m.newRace()
		m.l.Info("new race created")
		m.push()
	}
}

func (m *Manager) push() {
	data, err := json.Marshal(m.race.Snapshot())
	if err != nil {
		m.l.Error("could not marshal snapshot", log.ErrorField(err))
		return
	}
	if err := m.bus.Publish(m.outgoing, data); err != nil {
		m.l.Warn("could not publish snapshot", log.ErrorField(err))
	}
}
