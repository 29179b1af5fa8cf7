package relay

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/racecontroll/racecontrol/log"
)

type metrics struct {
	clients metric.Int64UpDownCounter
	frames  metric.Int64Counter
}

func newMetrics(l *log.Logger) *metrics {
	meter := otel.Meter("racecontrol/relay")
	m := &metrics{}
	var err error
	if m.clients, err = meter.Int64UpDownCounter("racecontrol.relay.clients",
		metric.WithDescription("Number of connected websocket clients"),
		metric.WithUnit("{count}")); err != nil {
		l.Warn("could not create metric", log.ErrorField(err))
	}
	if m.frames, err = meter.Int64Counter("racecontrol.relay.frames",
		metric.WithDescription("Number of relayed frames"),
		metric.WithUnit("{count}")); err != nil {
		l.Warn("could not create metric", log.ErrorField(err))
	}
	return m
}

func (m *metrics) clientDelta(channel string, delta int64) {
	if m.clients != nil {
		m.clients.Add(context.Background(), delta,
			metric.WithAttributes(attribute.String("channel", channel)))
	}
}

func (m *metrics) frame(channel, direction string) {
	if m.frames != nil {
		m.frames.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("channel", channel),
				attribute.String("direction", direction)))
	}
}
