package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecontroll/racecontrol/log"
)

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return ""
}

func newServer(source chan string) BroadcastServer[string] {
	return NewBroadcastServer("test", source, WithLogger[string](log.New(nil, log.ErrorLevel)))
}

func TestBroadcast_FanOut(t *testing.T) {
	source := make(chan string)
	b := newServer(source)
	defer b.Close()

	l1 := b.Subscribe()
	l2 := b.Subscribe()
	source <- "a"
	assert.Equal(t, "a", receive(t, l1))
	assert.Equal(t, "a", receive(t, l2))
}

func TestBroadcast_LatestOnSubscribe(t *testing.T) {
	source := make(chan string)
	b := newServer(source)
	defer b.Close()

	first := b.Subscribe()
	source <- "a"
	assert.Equal(t, "a", receive(t, first))
	source <- "b"
	assert.Equal(t, "b", receive(t, first))

	late := b.Subscribe()
	assert.Equal(t, "b", receive(t, late))
}

func TestBroadcast_SlowListenerIsSkipped(t *testing.T) {
	source := make(chan string)
	b := NewBroadcastServer("test", source,
		WithLogger[string](log.New(nil, log.ErrorLevel)),
		WithBufferSize[string](0),
		WithSendTimeout[string](time.Millisecond))
	defer b.Close()

	slow := b.Subscribe()
	source <- "a"
	source <- "b"
	// nobody read a or b in time
	select {
	case msg := <-slow:
		t.Fatalf("unexpected message %q", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBroadcast_CancelSubscription(t *testing.T) {
	source := make(chan string)
	b := newServer(source)
	defer b.Close()

	l := b.Subscribe()
	b.CancelSubscription(l)
	_, ok := <-l
	assert.False(t, ok)
}

func TestBroadcast_Close(t *testing.T) {
	source := make(chan string)
	b := newServer(source)
	l := b.Subscribe()
	b.Close()

	_, ok := <-l
	assert.False(t, ok)
	_, ok = <-b.Subscribe()
	assert.False(t, ok, "subscribe after close yields a closed channel")
}
