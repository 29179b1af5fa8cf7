package client

import (
	"context"
	"errors"
	"sync"
)

var errFakeClosed = errors.New("use of closed connection")

type fakeTransport struct {
	url     string
	in      chan []byte
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	written [][]byte
}

func newFakeTransport(url string) *fakeTransport {
	return &fakeTransport{url: url, in: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case <-f.closed:
		return nil, errFakeClosed
	default:
	}
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, errFakeClosed
	}
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	if f.isClosed() {
		return errFakeClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

// fakeDialer hands out a new fakeTransport per dial. The next failures
// dials and all dials to failURL return an error.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	failURL  string
	conns    []*fakeTransport
	attempts int
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.failures > 0 || url == d.failURL {
		if d.failures > 0 {
			d.failures--
		}
		return nil, errors.New("connection refused")
	}
	t := newFakeTransport(url)
	d.conns = append(d.conns, t)
	return t, nil
}

func (d *fakeDialer) failNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

func (d *fakeDialer) failFor(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failURL = url
}

func (d *fakeDialer) numAttempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) numConns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// blockingDialer holds every dial until release is closed, then
// succeeds like fakeDialer.
type blockingDialer struct {
	fakeDialer
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingDialer() *blockingDialer {
	return &blockingDialer{entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *blockingDialer) Dial(ctx context.Context, url string) (Transport, error) {
	d.once.Do(func() { close(d.entered) })
	<-d.release
	return d.fakeDialer.Dial(ctx, url)
}
