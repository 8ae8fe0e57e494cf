package transport

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/configuration"
	"github.com/VolantMQ/volantdds/metrics"
	"github.com/VolantMQ/volantdds/types"
)

const scheduleTimeout = time.Second

// Filter decides whether payload travelling from -> to reaches destination
type Filter func(payload []byte, from, to string) bool

// Bus in-process medium shared by loopback transports
type Bus struct {
	lock    sync.RWMutex
	members map[string]*Loopback
	filter  Filter
	pool    types.Pool
	seq     int
}

// NewBus creates bus delivering every payload on pool goroutine
func NewBus() *Bus {
	return &Bus{
		members: make(map[string]*Loopback),
		pool:    types.NewPool(64, 1024, 1),
	}
}

// NewSyncBus creates bus delivering payloads on sender goroutine
func NewSyncBus() *Bus {
	return &Bus{
		members: make(map[string]*Loopback),
	}
}

// SetFilter installs filter used to simulate loss. nil accepts everything
func (b *Bus) SetFilter(f Filter) {
	b.lock.Lock()
	b.filter = f
	b.lock.Unlock()
}

// Join creates new transport attached to bus
func (b *Bus) Join(stat metrics.Bytes) *Loopback {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.seq++

	l := &Loopback{
		bus:     b,
		locator: "loopback://" + strconv.Itoa(b.seq),
	}

	l.init(configuration.GetLogger().Named("transport").With(loggerLocator(l.locator)), stat)

	b.members[l.locator] = l

	return l
}

// Close stops delivery pool
func (b *Bus) Close() error {
	if b.pool != nil {
		return b.pool.Close()
	}

	return nil
}

func (b *Bus) leave(l *Loopback) {
	b.lock.Lock()
	delete(b.members, l.locator)
	b.lock.Unlock()
}

func (b *Bus) send(payload []byte, from, dest string) error {
	b.lock.RLock()

	var targets []*Loopback

	if len(dest) == 0 {
		for loc, m := range b.members {
			if loc != from {
				targets = append(targets, m)
			}
		}
	} else if m, ok := b.members[dest]; ok {
		targets = append(targets, m)
	}

	filter := b.filter
	b.lock.RUnlock()

	if len(dest) != 0 && len(targets) == 0 {
		return ErrUnknownDestination
	}

	for _, m := range targets {
		if filter != nil && !filter(payload, from, m.locator) {
			continue
		}

		buf := append([]byte(nil), payload...)
		to := m

		if b.pool == nil {
			to.deliver(buf, from)
			continue
		}

		// bus behaves like datagram medium, overloaded receiver loses payload
		if err := b.pool.ScheduleTimeout(scheduleTimeout, func() { to.deliver(buf, from) }); err != nil {
			if err == types.ErrClosed {
				return ErrClosed
			}

			to.log.Warn("payload dropped", zap.String("from", from), zap.Error(err))
		}
	}

	return nil
}

// Loopback transport attached to in-process bus
type Loopback struct {
	base
	bus     *Bus
	locator string
}

var _ Provider = (*Loopback)(nil)

// Send payload
func (l *Loopback) Send(ctx context.Context, payload []byte, dest string) error {
	if l.closed() {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := l.bus.send(payload, l.locator, dest); err != nil {
		return err
	}

	l.stat.OnSent(len(payload))

	return nil
}

// Locator of transport on bus
func (l *Loopback) Locator() string {
	return l.locator
}

// Close detaches transport from bus
func (l *Loopback) Close() error {
	if l.shutdown() {
		l.bus.leave(l)
	}

	return nil
}

func (l *Loopback) deliver(payload []byte, from string) {
	if l.closed() {
		return
	}

	l.base.deliver(payload, from)
}
