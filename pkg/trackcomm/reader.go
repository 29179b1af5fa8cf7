package trackcomm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/model"
)

type (
	// Sink receives the lap events, e.g. the normalizer
	Sink interface {
		Publish(raw model.TrackEvent) model.EventEnvelope
	}

	Reader struct {
		port io.ReadCloser
		sink Sink
		l    *log.Logger
	}
	Option func(*Reader)
)

func WithLogger(l *log.Logger) Option {
	return func(r *Reader) {
		r.l = l
	}
}

// OpenSerial opens the sensor device with 8N1 framing.
func OpenSerial(name string, baudRate int) (io.ReadCloser, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return port, nil
}

func NewReader(port io.ReadCloser, sink Sink, opts ...Option) *Reader {
	r := &Reader{port: port, sink: sink, l: log.Default().Named("trackcomm")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Event converts a frame into a raw track event
func (f Frame) Event() model.TrackEvent {
	return model.TrackEvent{"track_id": f.TrackID, "lap_finished": f.LapTime}
}

// Run reads frames until the port fails or ctx is done. The port is
// closed on return.
func (r *Reader) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { r.port.Close() })
	defer func() {
		if stop() {
			r.port.Close()
		}
	}()

	var p Parser
	buf := make([]byte, 64)
	for {
		n, err := r.port.Read(buf)
		for _, f := range p.Feed(buf[:n]) {
			r.l.Debug("lap finished",
				log.Int("track", f.TrackID), log.Int64("ms", f.LapTime))
			r.sink.Publish(f.Event())
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				r.l.Info("sensor stream ended", log.Int("skipped", p.Skipped()))
				return nil
			}
			return fmt.Errorf("read sensor frames: %w", err)
		}
	}
}
