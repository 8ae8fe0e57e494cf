package discovery

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/packet"
)

// tombstones remember deletion generation of withdrawn entities.
// Tables are bounded, oldest entries are evicted first
type tombstones struct {
	endpoints    *lru.Cache[guid.GUID, uint64]
	participants *lru.Cache[guid.Prefix, uint64]
}

func newTombstones(size int) (*tombstones, error) {
	e, err := lru.New[guid.GUID, uint64](size)
	if err != nil {
		return nil, err
	}

	p, err := lru.New[guid.Prefix, uint64](size)
	if err != nil {
		return nil, err
	}

	return &tombstones{endpoints: e, participants: p}, nil
}

// buryEndpoint returns true if older tombstone had to be evicted
func (t *tombstones) buryEndpoint(g guid.GUID, generation uint64) bool {
	if gen, ok := t.endpoints.Peek(g); ok && gen >= generation {
		return false
	}

	return t.endpoints.Add(g, generation)
}

func (t *tombstones) endpointBuried(g guid.GUID, sequence uint64) bool {
	gen, ok := t.endpoints.Peek(g)

	return ok && gen >= sequence
}

func (t *tombstones) buryParticipant(p guid.Prefix, generation uint64) bool {
	if gen, ok := t.participants.Peek(p); ok && gen >= generation {
		return false
	}

	return t.participants.Add(p, generation)
}

func (t *tombstones) participantBuried(p guid.Prefix, sequence uint64) bool {
	gen, ok := t.participants.Peek(p)

	return ok && gen >= sequence
}

// participant withdrawn at any generation. Prefixes are not reused by live
// participants, so every endpoint under buried prefix is gone
func (t *tombstones) prefixBuried(p guid.Prefix) bool {
	return t.participants.Contains(p)
}

type pendingEntry struct {
	msg *packet.EndpointAnnounce
	at  time.Time
}

// pending holds endpoint announcements that arrived before their participant
type pending struct {
	cache *lru.Cache[guid.GUID, pendingEntry]
}

func newPending(size int) (*pending, error) {
	c, err := lru.New[guid.GUID, pendingEntry](size)
	if err != nil {
		return nil, err
	}

	return &pending{cache: c}, nil
}

// put returns true if oldest entry has been evicted
func (p *pending) put(msg *packet.EndpointAnnounce, now time.Time) bool {
	if e, ok := p.cache.Peek(msg.GUID); ok && e.msg.Sequence >= msg.Sequence {
		return false
	}

	return p.cache.Add(msg.GUID, pendingEntry{msg: msg, at: now})
}

// take removes and returns every entry of participant, oldest first
func (p *pending) take(prefix guid.Prefix) []*packet.EndpointAnnounce {
	var res []*packet.EndpointAnnounce

	for _, k := range p.cache.Keys() {
		if k.Prefix != prefix {
			continue
		}

		if e, ok := p.cache.Peek(k); ok {
			res = append(res, e.msg)
		}

		p.cache.Remove(k)
	}

	return res
}

func (p *pending) drop(g guid.GUID, generation uint64) {
	if e, ok := p.cache.Peek(g); ok && e.msg.Sequence <= generation {
		p.cache.Remove(g)
	}
}

// expire removes entries older than age. Returns number of removed entries
func (p *pending) expire(now time.Time, age time.Duration) int {
	count := 0

	for _, k := range p.cache.Keys() {
		if e, ok := p.cache.Peek(k); ok && now.Sub(e.at) > age {
			p.cache.Remove(k)
			count++
		}
	}

	return count
}

func (p *pending) len() int {
	return p.cache.Len()
}

func (t *tombstones) unburyParticipant(p guid.Prefix) {
	t.participants.Remove(p)
}
