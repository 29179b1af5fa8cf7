package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus"
	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/pkg/normalizer"
	"github.com/racecontroll/racecontrol/pkg/utils/broadcast"
	"github.com/racecontroll/racecontrol/version"
)

type (
	Config struct {
		TelemetryPath    string
		CommandPath      string
		TrackEventPath   string
		StaticDir        string
		IncomingChannel  string
		OutgoingChannel  string
		MinClientVersion string
	}

	// Server bridges websocket clients and the event bus. Snapshots from
	// the outgoing channel are streamed to telemetry clients, commands
	// and track events are published on the incoming channel.
	Server struct {
		cfg          Config
		bus          bus.Bus
		norm         *normalizer.Normalizer
		source       chan []byte
		bc           broadcast.BroadcastServer[[]byte]
		sub          bus.Subscription
		upgrader     websocket.Upgrader
		pingInterval time.Duration
		pongWait     time.Duration
		writeWait    time.Duration
		metrics      *metrics
		tlsConfig    *tls.Config
		l            *log.Logger

		mu     sync.Mutex
		conns  map[uuid.UUID]*websocket.Conn
		closed chan struct{}
		once   sync.Once
	}
	Option func(*Server)
)

func DefaultConfig() Config {
	return Config{
		TelemetryPath:   "/gamestream",
		CommandPath:     "/input",
		TrackEventPath:  "/track-event",
		IncomingChannel: model.IncomingEventChannel,
		OutgoingChannel: model.OutgoingEventChannel,
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

// WithKeepalive sets how often clients are pinged and how long a pong
// may take before the connection is dropped.
func WithKeepalive(pingInterval, pongWait time.Duration) Option {
	return func(s *Server) {
		s.pingInterval = pingInterval
		s.pongWait = pongWait
	}
}

// WithTLS serves https and wss with cfg
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) {
		s.tlsConfig = cfg
	}
}

func NewServer(b bus.Bus, cfg Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		bus:          b,
		source:       make(chan []byte),
		pingInterval: 10 * time.Second,
		pongWait:     5 * time.Second,
		writeWait:    5 * time.Second,
		l:            log.Default().Named("relay"),
		conns:        make(map[uuid.UUID]*websocket.Conn),
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		// the ui may be served from anywhere
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	s.norm = normalizer.NewNormalizer(b,
		normalizer.WithChannel(cfg.IncomingChannel),
		normalizer.WithLogger(s.l.Named("normalizer")))
	s.metrics = newMetrics(s.l)
	s.bc = broadcast.NewBroadcastServer("telemetry", s.source,
		broadcast.WithLogger[[]byte](s.l.Named("broadcast")))

	sub, err := b.Subscribe(cfg.OutgoingChannel, func(data []byte) {
		select {
		case s.source <- data:
		case <-s.closed:
		}
	})
	if err != nil {
		s.bc.Close()
		return nil, err
	}
	s.sub = sub
	return s, nil
}

// Handler returns the http handler with all routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.TelemetryPath, s.handleTelemetry)
	mux.HandleFunc(s.cfg.CommandPath, s.handleCommands)
	mux.HandleFunc(s.cfg.TrackEventPath, s.handleTrackEvent)
	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("racecontrol relay " + version.Version + "\n"))
		})
	}
	return newCORS().Handler(mux)
}

// ListenAndServe serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.tlsConfig,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.l.Warn("http shutdown", log.ErrorField(err))
		}
	}()
	s.l.Info("Starting relay", log.String("addr", addr),
		log.String("telemetry", s.cfg.TelemetryPath),
		log.String("command", s.cfg.CommandPath),
		log.String("trackEvent", s.cfg.TrackEventPath),
		log.Bool("tls", s.tlsConfig != nil))
	var err error
	if s.tlsConfig != nil {
		// certificates come from TLSConfig.GetCertificate
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the bus subscription and closes all client connections
func (s *Server) Close() {
	s.once.Do(func() {
		close(s.closed)
		if err := s.sub.Unsubscribe(); err != nil {
			s.l.Warn("could not unsubscribe", log.ErrorField(err))
		}
		s.bc.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, c := range s.conns {
			c.Close()
			delete(s.conns, id)
		}
	})
}

func (s *Server) register(c *websocket.Conn) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = c
	return id
}

func (s *Server) unregister(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[id]; ok {
		c.Close()
		delete(s.conns, id)
	}
}

// upgrade switches to websocket and logs clients below the minimum version
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, uuid.UUID, bool) {
	clientVersion := r.Header.Get(version.HeaderName)
	if !version.IsCompatible(clientVersion, s.cfg.MinClientVersion) {
		s.l.Warn("client version below minimum",
			log.String("client", clientVersion),
			log.String("min", s.cfg.MinClientVersion),
			log.String("remote", r.RemoteAddr))
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.l.Warn("could not upgrade connection", log.ErrorField(err))
		return nil, uuid.Nil, false
	}
	acceptPongs(conn)
	return conn, s.register(conn), true
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
	})
}
