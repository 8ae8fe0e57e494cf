// Package transport carries opaque messages between participants.
//
// Providers deliver inbound payloads on their own goroutines. Destination
// is either a locator returned by a peer's Locator or empty string which
// addresses the discovery group.
package transport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/metrics"
)

// nolint: golint
var (
	ErrClosed             = errors.New("transport: closed")
	ErrUnknownDestination = errors.New("transport: unknown destination")
	ErrInvalidLocator     = errors.New("transport: invalid locator")
)

// Receiver invoked for every inbound payload. Payload is owned by receiver
type Receiver func(payload []byte, from string)

// Provider transport interface
type Provider interface {
	// Send payload to dest. Empty dest addresses the discovery group
	Send(ctx context.Context, payload []byte, dest string) error

	// OnReceive sets inbound handler. Must be set before peers start sending
	OnReceive(Receiver)

	// Locator address other participants use to reach this one
	Locator() string

	Close() error
}

type base struct {
	lock sync.RWMutex
	recv Receiver
	log  *zap.Logger
	stat metrics.Bytes
	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (b *base) init(log *zap.Logger, stat metrics.Bytes) {
	if stat == nil {
		stat = metrics.Nop().Bytes()
	}

	b.log = log
	b.stat = stat
	b.quit = make(chan struct{})
}

func (b *base) OnReceive(r Receiver) {
	b.lock.Lock()
	b.recv = r
	b.lock.Unlock()
}

func (b *base) deliver(payload []byte, from string) {
	b.stat.OnRecv(len(payload))

	b.lock.RLock()
	r := b.recv
	b.lock.RUnlock()

	if r != nil {
		r(payload, from)
	}
}

func (b *base) closed() bool {
	select {
	case <-b.quit:
		return true
	default:
		return false
	}
}

// shutdown closes quit exactly once. Returns false if already closed
func (b *base) shutdown() bool {
	done := false
	b.once.Do(func() {
		close(b.quit)
		done = true
	})

	return done
}

func loggerLocator(l string) zap.Field {
	return zap.String("locator", l)
}
