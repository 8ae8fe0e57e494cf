package discovery

import (
	"time"

	"github.com/google/uuid"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
)

type participantRecord struct {
	prefix    guid.Prefix
	instance  uuid.UUID
	domain    uint32
	lease     time.Duration
	lastSeen  time.Time
	sequence  uint64
	locators  []string
	userData  []byte
	endpoints map[guid.GUID]struct{}
	local     bool

	// set once another instance claimed the same prefix, record only waits to lapse
	collided bool
}

func (p *participantRecord) expired(now time.Time) bool {
	return !p.local && now.Sub(p.lastSeen) > p.lease
}

type endpointRecord struct {
	guid     guid.GUID
	topic    string
	typeName string
	qos      qos.Policies
	sequence uint64
	matched  map[guid.GUID]struct{}
	local    bool
}

func (e *endpointRecord) isWriter() bool {
	return e.guid.Entity.Kind.IsWriter()
}

type pairKey struct {
	writer guid.GUID
	reader guid.GUID
}

type matchRecord struct {
	pairKey
	since time.Time
}

// ParticipantInfo snapshot of participant record
type ParticipantInfo struct {
	Prefix    guid.Prefix
	Instance  uuid.UUID
	Domain    uint32
	Lease     time.Duration
	LastSeen  time.Time
	Sequence  uint64
	Locators  []string
	UserData  []byte
	Endpoints []guid.GUID
	Local     bool
}

// EndpointInfo snapshot of endpoint record
type EndpointInfo struct {
	GUID     guid.GUID
	Topic    string
	TypeName string
	QoS      qos.Policies
	Sequence uint64
	Matched  []guid.GUID
	Local    bool
}

// IsWriter endpoint is data writer
func (e *EndpointInfo) IsWriter() bool {
	return e.GUID.Entity.Kind.IsWriter()
}

// MatchInfo snapshot of match record
type MatchInfo struct {
	Writer guid.GUID
	Reader guid.GUID
	Since  time.Time
}

func (p *participantRecord) info() ParticipantInfo {
	i := ParticipantInfo{
		Prefix:   p.prefix,
		Instance: p.instance,
		Domain:   p.domain,
		Lease:    p.lease,
		LastSeen: p.lastSeen,
		Sequence: p.sequence,
		Locators: append([]string(nil), p.locators...),
		UserData: append([]byte(nil), p.userData...),
		Local:    p.local,
	}

	for g := range p.endpoints {
		i.Endpoints = append(i.Endpoints, g)
	}

	sortGUIDs(i.Endpoints)

	return i
}

func (e *endpointRecord) info() EndpointInfo {
	i := EndpointInfo{
		GUID:     e.guid,
		Topic:    e.topic,
		TypeName: e.typeName,
		QoS:      e.qos.Clone(),
		Sequence: e.sequence,
		Local:    e.local,
	}

	for g := range e.matched {
		i.Matched = append(i.Matched, g)
	}

	sortGUIDs(i.Matched)

	return i
}
