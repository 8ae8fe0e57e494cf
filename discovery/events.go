package discovery

import (
	"sync"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/types"
)

type eventKind byte

const (
	eventMatch eventKind = iota
	eventUnmatch
	eventIncompatible
	eventLiveliness
	eventCollision
	eventInconsistentTopic
	eventDegraded
)

type event struct {
	kind     eventKind
	local    guid.GUID
	remote   guid.GUID
	qos      qos.Policies
	reason   Reason
	policy   qos.PolicyID
	alive    bool
	prefix   guid.Prefix
	topic    string
	typeName string
	what     string
}

// dispatcher delivers queued events in order from single goroutine at a time.
// Producers enqueue under engine lock and call flush after releasing it
type dispatcher struct {
	queue    *types.Queue[event]
	listener Listener
	lock     sync.Mutex
	draining bool
}

func newDispatcher(l Listener) *dispatcher {
	return &dispatcher{
		queue:    types.NewQueue[event](),
		listener: l,
	}
}

func (d *dispatcher) push(e event) {
	d.queue.Add(e)
}

// flush drains queue unless another goroutine is already draining it.
// Nested calls from listener callbacks return immediately, events they
// produce are delivered by the outer drainer once callback returns
func (d *dispatcher) flush() {
	d.lock.Lock()
	if d.draining {
		d.lock.Unlock()
		return
	}
	d.draining = true
	d.lock.Unlock()

	for {
		e, ok := d.queue.Remove()
		if !ok {
			d.lock.Lock()
			if d.queue.Length() == 0 {
				d.draining = false
				d.lock.Unlock()
				return
			}
			d.lock.Unlock()
			continue
		}

		d.deliver(&e)
	}
}

func (d *dispatcher) deliver(e *event) {
	switch e.kind {
	case eventMatch:
		d.listener.OnMatch(e.local, e.remote, e.qos)
	case eventUnmatch:
		d.listener.OnUnmatch(e.local, e.remote, e.reason)
	case eventIncompatible:
		d.listener.OnIncompatibleQos(e.local, e.policy)
	case eventLiveliness:
		d.listener.OnLivelinessChanged(e.remote, e.alive)
	case eventCollision:
		if l, ok := d.listener.(CollisionListener); ok {
			l.OnPrefixCollision(e.prefix, ErrPrefixCollision)
		}
	case eventInconsistentTopic:
		if l, ok := d.listener.(InconsistentTopicListener); ok {
			l.OnInconsistentTopic(e.local, e.topic, e.typeName)
		}
	case eventDegraded:
		if l, ok := d.listener.(DegradedListener); ok {
			l.OnDiscoveryDegraded(e.what)
		}
	}
}
