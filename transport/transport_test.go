package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type inbox struct {
	lock sync.Mutex
	msgs []string
	from []string
	ch   chan struct{}
}

func newInbox() *inbox {
	return &inbox{ch: make(chan struct{}, 128)}
}

func (i *inbox) receive(payload []byte, from string) {
	i.lock.Lock()
	i.msgs = append(i.msgs, string(payload))
	i.from = append(i.from, from)
	i.lock.Unlock()

	i.ch <- struct{}{}
}

func (i *inbox) wait(t *testing.T, n int) {
	t.Helper()

	for k := 0; k < n; k++ {
		select {
		case <-i.ch:
		case <-time.After(5 * time.Second):
			require.FailNow(t, "timeout waiting payload")
		}
	}
}

func (i *inbox) last() (string, string) {
	i.lock.Lock()
	defer i.lock.Unlock()

	return i.msgs[len(i.msgs)-1], i.from[len(i.from)-1]
}

func TestLoopbackSync(t *testing.T) {
	bus := NewSyncBus()

	a := bus.Join(nil)
	b := bus.Join(nil)
	c := bus.Join(nil)

	ib := newInbox()
	ic := newInbox()
	a.OnReceive(func([]byte, string) { require.Fail(t, "sender must not receive own group payload") })
	b.OnReceive(ib.receive)
	c.OnReceive(ic.receive)

	require.NoError(t, a.Send(context.Background(), []byte("hello"), ""))
	require.Len(t, ib.msgs, 1)
	require.Len(t, ic.msgs, 1)

	msg, from := ib.last()
	require.Equal(t, "hello", msg)
	require.Equal(t, a.Locator(), from)

	require.NoError(t, a.Send(context.Background(), []byte("direct"), c.Locator()))
	require.Len(t, ib.msgs, 1)
	require.Len(t, ic.msgs, 2)

	require.Equal(t, ErrUnknownDestination, a.Send(context.Background(), []byte("x"), "loopback://404"))

	bus.SetFilter(func(payload []byte, from, to string) bool {
		return to != c.Locator()
	})

	require.NoError(t, a.Send(context.Background(), []byte("filtered"), ""))
	require.Len(t, ib.msgs, 2)
	require.Len(t, ic.msgs, 2)

	require.NoError(t, b.Close())
	require.Equal(t, ErrClosed, b.Send(context.Background(), []byte("x"), ""))
	require.Equal(t, ErrUnknownDestination, a.Send(context.Background(), []byte("x"), b.Locator()))
}

func TestLoopbackAsync(t *testing.T) {
	bus := NewBus()
	defer bus.Close() // nolint: errcheck

	a := bus.Join(nil)
	b := bus.Join(nil)

	ib := newInbox()
	b.OnReceive(ib.receive)

	for i := 0; i < 10; i++ {
		require.NoError(t, a.Send(context.Background(), []byte("x"), b.Locator()))
	}

	ib.wait(t, 10)
}

func TestUDPUnicast(t *testing.T) {
	a, err := NewUDP(&ConfigUDP{Listen: "127.0.0.1:0"})
	require.NoError(t, err)
	defer a.Close() // nolint: errcheck

	b, err := NewUDP(&ConfigUDP{Listen: "127.0.0.1:0", Peers: []string{a.Locator()[len(udpScheme):]}})
	require.NoError(t, err)
	defer b.Close() // nolint: errcheck

	ia := newInbox()
	ib := newInbox()
	a.OnReceive(ia.receive)
	b.OnReceive(ib.receive)

	// group traffic goes to static peers
	require.NoError(t, b.Send(context.Background(), []byte("announce"), ""))
	ia.wait(t, 1)

	msg, from := ia.last()
	require.Equal(t, "announce", msg)
	require.Equal(t, b.Locator(), from)

	require.NoError(t, a.Send(context.Background(), []byte("reply"), from))
	ib.wait(t, 1)

	msg, _ = ib.last()
	require.Equal(t, "reply", msg)

	require.Equal(t, ErrInvalidLocator, a.Send(context.Background(), []byte("x"), "tcp://1.2.3.4:5"))

	require.NoError(t, a.Close())
	require.Equal(t, ErrClosed, a.Send(context.Background(), []byte("x"), ""))
}

func TestWebSocket(t *testing.T) {
	server, err := NewWebSocket(&ConfigWS{Listen: "127.0.0.1:0", Path: "dds"})
	require.NoError(t, err)
	defer server.Close() // nolint: errcheck

	client, err := NewWebSocket(&ConfigWS{Peers: []string{server.Locator()}, RetryInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close() // nolint: errcheck

	is := newInbox()
	ic := newInbox()
	server.OnReceive(is.receive)
	client.OnReceive(ic.receive)

	require.Eventually(t, func() bool {
		return server.Peers() == 1 && client.Peers() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Send(context.Background(), []byte("ping"), ""))
	is.wait(t, 1)

	msg, from := is.last()
	require.Equal(t, "ping", msg)
	require.Equal(t, client.Locator(), from)

	require.NoError(t, server.Send(context.Background(), []byte("pong"), from))
	ic.wait(t, 1)

	msg, from = ic.last()
	require.Equal(t, "pong", msg)
	require.Equal(t, server.Locator(), from)

	require.NoError(t, client.Close())
	require.Eventually(t, func() bool {
		return server.Peers() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

// stalledLink never completes a write until closed
type stalledLink struct {
	writes chan []byte
	closed chan struct{}
	once   sync.Once
}

func (l *stalledLink) write(payload []byte, _ time.Time) error {
	l.writes <- payload
	<-l.closed
	return ErrClosed
}

func (l *stalledLink) close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func TestWebSocketStalledPeerDoesNotBlockSend(t *testing.T) {
	w, err := NewWebSocket(&ConfigWS{QueueSize: 1, WriteTimeout: 100 * time.Millisecond})
	require.NoError(t, err)

	l := &stalledLink{writes: make(chan []byte, 1), closed: make(chan struct{})}
	require.NotNil(t, w.addLink("peer", l))

	// first frame is picked by writer and stalls in write
	require.NoError(t, w.Send(context.Background(), []byte("1"), "peer"))
	select {
	case <-l.writes:
	case <-time.After(time.Second):
		require.Fail(t, "writer did not pick frame")
	}

	// second fills queue, third is dropped without waiting
	require.NoError(t, w.Send(context.Background(), []byte("2"), "peer"))

	done := make(chan error, 1)
	go func() {
		done <- w.Send(context.Background(), []byte("3"), "peer")
	}()

	select {
	case err = <-done:
		require.Equal(t, ErrQueueFull, err)
	case <-time.After(time.Second):
		require.Fail(t, "send blocked on stalled peer")
	}

	require.Equal(t, ErrQueueFull, w.Send(context.Background(), []byte("4"), ""))

	require.NoError(t, w.Close())
	require.Equal(t, ErrClosed, w.Send(context.Background(), []byte("5"), "peer"))
}
