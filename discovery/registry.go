package discovery

import (
	"bytes"
	"sort"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
)

type topicKey struct {
	topic    string
	typeName string
}

// registry owns every record. Records reference each other by identifier,
// missing lookup means the peer is already gone
type registry struct {
	participants map[guid.Prefix]*participantRecord
	endpoints    map[guid.GUID]*endpointRecord
	byTopic      map[topicKey]map[guid.GUID]struct{}
	matches      map[pairKey]*matchRecord
	incompatible map[pairKey]qos.PolicyID
}

func newRegistry() *registry {
	return &registry{
		participants: make(map[guid.Prefix]*participantRecord),
		endpoints:    make(map[guid.GUID]*endpointRecord),
		byTopic:      make(map[topicKey]map[guid.GUID]struct{}),
		matches:      make(map[pairKey]*matchRecord),
		incompatible: make(map[pairKey]qos.PolicyID),
	}
}

func (r *registry) participant(p guid.Prefix) *participantRecord {
	return r.participants[p]
}

func (r *registry) endpoint(g guid.GUID) *endpointRecord {
	return r.endpoints[g]
}

func (r *registry) addEndpoint(e *endpointRecord) {
	r.endpoints[e.guid] = e

	if p := r.participants[e.guid.Prefix]; p != nil {
		p.endpoints[e.guid] = struct{}{}
	}

	r.index(e)
}

func (r *registry) index(e *endpointRecord) {
	k := topicKey{topic: e.topic, typeName: e.typeName}

	set, ok := r.byTopic[k]
	if !ok {
		set = make(map[guid.GUID]struct{})
		r.byTopic[k] = set
	}

	set[e.guid] = struct{}{}
}

func (r *registry) unindex(e *endpointRecord) {
	k := topicKey{topic: e.topic, typeName: e.typeName}

	if set, ok := r.byTopic[k]; ok {
		delete(set, e.guid)
		if len(set) == 0 {
			delete(r.byTopic, k)
		}
	}
}

func (r *registry) removeEndpoint(g guid.GUID) *endpointRecord {
	e, ok := r.endpoints[g]
	if !ok {
		return nil
	}

	delete(r.endpoints, g)

	if p := r.participants[g.Prefix]; p != nil {
		delete(p.endpoints, g)
	}

	r.unindex(e)

	for k := range r.incompatible {
		if k.writer == g || k.reader == g {
			delete(r.incompatible, k)
		}
	}

	return e
}

// peers of opposite role on the same topic and type, ordered by GUID
func (r *registry) peers(e *endpointRecord) []*endpointRecord {
	set := r.byTopic[topicKey{topic: e.topic, typeName: e.typeName}]

	res := make([]*endpointRecord, 0, len(set))

	for g := range set {
		p := r.endpoints[g]
		if p == nil || p.isWriter() == e.isWriter() {
			continue
		}

		// remote-remote pairs are not our business
		if !p.local && !e.local {
			continue
		}

		res = append(res, p)
	}

	sort.Slice(res, func(i, j int) bool {
		return lessGUID(res[i].guid, res[j].guid)
	})

	return res
}

func (r *registry) sortedEndpoints(set map[guid.GUID]struct{}) []guid.GUID {
	res := make([]guid.GUID, 0, len(set))
	for g := range set {
		res = append(res, g)
	}

	sortGUIDs(res)

	return res
}

func lessGUID(a, b guid.GUID) bool {
	if c := bytes.Compare(a.Prefix[:], b.Prefix[:]); c != 0 {
		return c < 0
	}

	if c := bytes.Compare(a.Entity.Key[:], b.Entity.Key[:]); c != 0 {
		return c < 0
	}

	return a.Entity.Kind < b.Entity.Kind
}

func sortGUIDs(s []guid.GUID) {
	sort.Slice(s, func(i, j int) bool {
		return lessGUID(s[i], s[j])
	})
}

func pairOf(a, b *endpointRecord) pairKey {
	if a.isWriter() {
		return pairKey{writer: a.guid, reader: b.guid}
	}

	return pairKey{writer: b.guid, reader: a.guid}
}
