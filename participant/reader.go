package participant

import (
	"context"
	"sync"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/session"
	"github.com/VolantMQ/volantdds/types"
)

// DataReader receives samples of one topic in writer order.
// Samples are cached until taken, KEEP_LAST history drops oldest ones
type DataReader struct {
	p        *Participant
	guid     guid.GUID
	topic    string
	typeName string
	notify   chan struct{}
	done     chan struct{}
	once     sync.Once

	lock    sync.Mutex
	qos     qos.Policies
	samples *types.Queue[session.Sample]
	dropped uint64
	closed  bool
}

func newDataReader(p *Participant, g guid.GUID, topic, typeName string, q qos.Policies) *DataReader {
	return &DataReader{
		p:        p,
		guid:     g,
		topic:    topic,
		typeName: typeName,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		qos:      q.Clone(),
		samples:  types.NewQueue[session.Sample](),
	}
}

// GUID of reader
func (r *DataReader) GUID() guid.GUID {
	return r.guid
}

// Topic name reader subscribes to
func (r *DataReader) Topic() string {
	return r.topic
}

// TypeName of samples
func (r *DataReader) TypeName() string {
	return r.typeName
}

// QoS current policies
func (r *DataReader) QoS() qos.Policies {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.qos.Clone()
}

// limit of cached samples, zero means unbounded
func (r *DataReader) limit() int {
	switch {
	case r.qos.History.Kind == qos.KeepLast:
		if r.qos.History.Depth <= 0 {
			return 1
		}

		return int(r.qos.History.Depth)
	case r.qos.ResourceLimits.MaxSamples > 0:
		return int(r.qos.ResourceLimits.MaxSamples)
	default:
		return 0
	}
}

func (r *DataReader) push(s session.Sample) {
	r.lock.Lock()

	if r.closed {
		r.lock.Unlock()
		return
	}

	r.samples.Add(s)

	if l := r.limit(); l > 0 {
		for r.samples.Length() > l {
			r.samples.Remove()
			r.dropped++
		}
	}

	r.lock.Unlock()

	r.wake()
}

func (r *DataReader) wake() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Available number of cached samples
func (r *DataReader) Available() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.samples.Length()
}

// Dropped number of samples evicted from cache by history limits
func (r *DataReader) Dropped() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.dropped
}

// Take oldest cached sample without blocking
func (r *DataReader) Take() (session.Sample, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.samples.Remove()
}

// Peek oldest cached sample leaving it in cache
func (r *DataReader) Peek() (session.Sample, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.samples.Peek()
}

// TakeAll drains cache
func (r *DataReader) TakeAll() []session.Sample {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.samples.Drain()
}

// Read blocks until sample is available, reader closed or ctx done
func (r *DataReader) Read(ctx context.Context) (session.Sample, error) {
	for {
		r.lock.Lock()
		s, ok := r.samples.Remove()
		more := r.samples.Length() > 0
		closed := r.closed
		r.lock.Unlock()

		if ok {
			// pass signal on to concurrent readers
			if more {
				r.wake()
			}

			return s, nil
		}

		if closed {
			return session.Sample{}, ErrEndpointGone
		}

		select {
		case <-ctx.Done():
			return session.Sample{}, ctx.Err()
		case <-r.done:
		case <-r.notify:
		}
	}
}

// SetQoS replaces policies and re-runs matching against every known writer.
// Open sessions keep reliability they were created with
func (r *DataReader) SetQoS(q qos.Policies) error {
	if err := r.p.sessions.SetQoS(r.guid, q); err != nil {
		return r.p.endpointErr(err)
	}

	if err := r.p.engine.UpdateLocalEndpoint(r.guid, q); err != nil {
		return r.p.endpointErr(err)
	}

	r.lock.Lock()
	r.qos = q.Clone()
	r.lock.Unlock()

	return nil
}

// Matched writers
func (r *DataReader) Matched() []guid.GUID {
	info, ok := r.p.engine.Endpoint(r.guid)
	if !ok {
		return nil
	}

	return info.Matched
}

// Close withdraws reader. Cached samples are still available through Take
func (r *DataReader) Close() error {
	return r.p.deleteEndpoint(r.guid)
}

// shutdown releases every blocked Read
func (r *DataReader) shutdown() {
	r.lock.Lock()
	r.closed = true
	r.lock.Unlock()

	r.once.Do(func() {
		close(r.done)
	})
}
