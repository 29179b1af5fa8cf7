package normalizer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/oj"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus"
	"github.com/racecontroll/racecontrol/pkg/model"
)

var tracer = otel.Tracer("racecontrol/normalizer")

type (
	// Normalizer wraps raw track events into envelopes and publishes them
	// on the incoming event channel.
	Normalizer struct {
		pub     bus.Publisher
		channel string
		l       *log.Logger
	}
	Option func(*Normalizer)
)

func NewNormalizer(pub bus.Publisher, opts ...Option) *Normalizer {
	ret := &Normalizer{
		pub:     pub,
		channel: model.IncomingEventChannel,
		l:       log.Default().Named("normalizer"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(n *Normalizer) {
		n.l = l
	}
}

func WithChannel(channel string) Option {
	return func(n *Normalizer) {
		n.channel = channel
	}
}

// Normalize copies raw into a new envelope. request and type are set last,
// so they win over keys of the same name in raw.
func Normalize(raw model.TrackEvent) model.EventEnvelope {
	env := make(model.EventEnvelope, len(raw)+2)
	for k, v := range raw {
		env[k] = v
	}
	env["request"] = string(model.RequestTrack)
	env["type"] = model.TrackEventLapFinished
	return env
}

// Decode parses a raw payload. Accepted are a JSON object or a JSON string
// which itself contains a JSON object.
func Decode(data []byte) (model.TrackEvent, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDecode, err)
	}
	if s, ok := v.(string); ok {
		if v, err = oj.ParseString(s); err != nil {
			return nil, fmt.Errorf("%w: embedded payload: %w", model.ErrDecode, err)
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: track event must be a mapping, got %T", model.ErrDecode, v)
	}
	return model.TrackEvent(m), nil
}

// Handle decodes, normalizes and publishes a raw payload.
// Only decode errors are returned, the event is dropped in that case.
func (n *Normalizer) Handle(ctx context.Context, data []byte) error {
	_, span := tracer.Start(ctx, "normalizer.handle")
	defer span.End()

	raw, err := Decode(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		n.l.Warn("dropping track event", log.ByteString("payload", data), log.ErrorField(err))
		return err
	}
	env := n.Publish(raw)
	span.SetAttributes(attribute.Int("fields", len(env)))
	return nil
}

// Publish normalizes raw and sends it to the bus. Publish errors are
// logged only, losing an event is acceptable.
func (n *Normalizer) Publish(raw model.TrackEvent) model.EventEnvelope {
	env := Normalize(raw)
	data, err := json.Marshal(env)
	if err != nil {
		n.l.Error("could not marshal envelope", log.Any("envelope", env), log.ErrorField(err))
		return env
	}
	n.l.Debug("publishing track event", log.ByteString("envelope", data))
	if err := n.pub.Publish(n.channel, data); err != nil {
		n.l.Warn("could not publish track event",
			log.String("channel", n.channel), log.ErrorField(err))
	}
	return env
}
