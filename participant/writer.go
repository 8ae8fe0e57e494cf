package participant

import (
	"sync"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
)

// DataWriter publishes samples of one topic
type DataWriter struct {
	p        *Participant
	guid     guid.GUID
	topic    string
	typeName string
	lock     sync.Mutex
	qos      qos.Policies
}

// GUID of writer
func (w *DataWriter) GUID() guid.GUID {
	return w.guid
}

// Topic name writer publishes to
func (w *DataWriter) Topic() string {
	return w.topic
}

// TypeName of samples
func (w *DataWriter) TypeName() string {
	return w.typeName
}

// QoS current policies
func (w *DataWriter) QoS() qos.Policies {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.qos.Clone()
}

// Write sends sample to every matched reader, returns its writer level
// sequence. Readers matched later see their own numbering starting at 1,
// see session.Manager.Write
func (w *DataWriter) Write(payload []byte) (uint64, error) {
	seq, err := w.p.sessions.Write(w.guid, payload)
	if err != nil {
		return 0, w.p.endpointErr(err)
	}

	return seq, nil
}

// SetQoS replaces policies and re-runs matching against every known reader
func (w *DataWriter) SetQoS(q qos.Policies) error {
	if err := w.p.sessions.SetQoS(w.guid, q); err != nil {
		return w.p.endpointErr(err)
	}

	if err := w.p.engine.UpdateLocalEndpoint(w.guid, q); err != nil {
		return w.p.endpointErr(err)
	}

	w.lock.Lock()
	w.qos = q.Clone()
	w.lock.Unlock()

	return nil
}

// Matched readers
func (w *DataWriter) Matched() []guid.GUID {
	info, ok := w.p.engine.Endpoint(w.guid)
	if !ok {
		return nil
	}

	return info.Matched
}

// Close withdraws writer. Unacknowledged samples are discarded
func (w *DataWriter) Close() error {
	return w.p.deleteEndpoint(w.guid)
}
