package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus"
)

type (
	NatsBus struct {
		conn *nats.Conn
		l    *log.Logger
	}
	Option func(*NatsBus)

	// ConnectConfig holds the reconnect behavior of the NATS client
	ConnectConfig struct {
		URL           string
		Name          string
		MaxReconnects int
		ReconnectWait time.Duration
	}
)

var _ bus.Bus = (*NatsBus)(nil)

func DefaultConnectConfig(url string) ConnectConfig {
	return ConnectConfig{
		URL:           url,
		Name:          "racecontrol",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

func WithLogger(l *log.Logger) Option {
	return func(n *NatsBus) {
		n.l = l
	}
}

// Connect dials the NATS server and keeps reconnecting forever on
// connection loss.
func Connect(cfg ConnectConfig, opts ...Option) (*NatsBus, error) {
	ret := &NatsBus{l: log.Default().Named("bus.nats")}
	for _, opt := range opts {
		opt(ret)
	}
	natsOpts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			ret.l.Warn("NATS disconnected", log.ErrorField(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			ret.l.Info("NATS reconnected", log.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			ret.l.Error("NATS error", log.String("subject", subject), log.ErrorField(err))
		}),
	}
	conn, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", cfg.URL, err)
	}
	ret.conn = conn
	ret.l.Info("connected to NATS", log.String("url", conn.ConnectedUrl()))
	return ret, nil
}

// NewNatsBus wraps an established connection
func NewNatsBus(conn *nats.Conn, opts ...Option) *NatsBus {
	ret := &NatsBus{conn: conn, l: log.Default().Named("bus.nats")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (n *NatsBus) Publish(channel string, data []byte) error {
	if err := n.conn.Publish(channel, data); err != nil {
		if n.conn.IsClosed() {
			return fmt.Errorf("%w: %w", bus.ErrClosed, err)
		}
		return err
	}
	return nil
}

func (n *NatsBus) Subscribe(channel string, h bus.Handler) (bus.Subscription, error) {
	sub, err := n.conn.Subscribe(channel, func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	n.l.Debug("subscribed", log.String("channel", channel))
	return sub, nil
}

func (n *NatsBus) Close() {
	if err := n.conn.Drain(); err != nil {
		n.l.Warn("could not drain connection", log.ErrorField(err))
		n.conn.Close()
	}
}
