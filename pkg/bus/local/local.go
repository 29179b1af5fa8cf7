package local

import (
	"sync"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus"
)

// in-process bus, used when no NATS server is configured and in tests
type (
	LocalBus struct {
		l          *log.Logger
		bufferSize int
		mutex      sync.Mutex
		subs       map[string]map[*subscription]struct{}
		closed     bool
	}
	Option func(*LocalBus)

	subscription struct {
		b       *LocalBus
		channel string
		h       bus.Handler
		queue   chan []byte
		done    chan struct{}
		once    sync.Once
	}
)

var _ bus.Bus = (*LocalBus)(nil)

func NewLocalBus(opts ...Option) *LocalBus {
	ret := &LocalBus{
		l:          log.Default().Named("bus.local"),
		bufferSize: 64,
		subs:       make(map[string]map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(b *LocalBus) {
		b.l = l
	}
}

// WithBufferSize sets the number of messages queued per subscription.
// Messages for a full queue are dropped.
func WithBufferSize(n int) Option {
	return func(b *LocalBus) {
		b.bufferSize = n
	}
}

func (b *LocalBus) Publish(channel string, data []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return bus.ErrClosed
	}
	for s := range b.subs[channel] {
		msg := make([]byte, len(data))
		copy(msg, data)
		select {
		case s.queue <- msg:
		default:
			b.l.Warn("subscriber queue full, dropping message",
				log.String("channel", channel))
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(channel string, h bus.Handler) (bus.Subscription, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return nil, bus.ErrClosed
	}
	s := &subscription{
		b:       b,
		channel: channel,
		h:       h,
		queue:   make(chan []byte, b.bufferSize),
		done:    make(chan struct{}),
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*subscription]struct{})
	}
	b.subs[channel][s] = struct{}{}
	go s.deliver()
	b.l.Debug("subscribed", log.String("channel", channel),
		log.Int("subscribers", len(b.subs[channel])))
	return s, nil
}

func (b *LocalBus) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for s := range subs {
			s.stop()
		}
	}
	b.subs = nil
}

func (s *subscription) Unsubscribe() error {
	s.b.mutex.Lock()
	defer s.b.mutex.Unlock()
	if subs, ok := s.b.subs[s.channel]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.b.subs, s.channel)
		}
	}
	s.stop()
	return nil
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// messages of one subscription are handled in publish order
func (s *subscription) deliver() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.queue:
			s.h(msg)
		}
	}
}
