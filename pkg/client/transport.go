package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/version"
)

type (
	// Transport is one duplex connection. Read errors mean the
	// connection is gone.
	Transport interface {
		ReadMessage() ([]byte, error)
		WriteMessage(data []byte) error
		Close() error
	}
	Dialer interface {
		Dial(ctx context.Context, url string) (Transport, error)
	}

	// Endpoints are the urls of the telemetry and the command channel
	Endpoints struct {
		Telemetry string
		Command   string
	}

	WebsocketDialer struct {
		dialer *websocket.Dialer
		header http.Header
	}
	wsTransport struct {
		conn *websocket.Conn
	}
)

// NewEndpoints joins the channel paths to base, e.g. ws://localhost:3000
func NewEndpoints(base, telemetryPath, commandPath string) (Endpoints, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parse url %s: %w", base, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return Endpoints{}, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, base)
	}
	join := func(p string) string {
		c := *u
		c.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(p, "/")
		return c.String()
	}
	return Endpoints{Telemetry: join(telemetryPath), Command: join(commandPath)}, nil
}

// NewWebsocketDialer creates a dialer which announces the client version
// to the relay.
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	h := http.Header{}
	h.Set(version.HeaderName, version.Version)
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		header: h,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, addr string) (Transport, error) {
	//nolint:bodyclose // closed below
	conn, resp, err := d.dialer.DialContext(ctx, addr, d.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", model.ErrTransport, addr, err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
