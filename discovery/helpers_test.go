package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/packet"
	"github.com/VolantMQ/volantdds/qos"
)

var errLinkDown = errors.New("link down")

type sink struct {
	lock   sync.Mutex
	msgs   []packet.Provider
	drop   func(t packet.Type) bool
	onSend func(m packet.Provider)
}

func (s *sink) Send(_ context.Context, payload []byte, _ string) error {
	m, err := packet.Decode(payload)
	if err != nil {
		return err
	}

	s.lock.Lock()
	hook := s.onSend
	s.lock.Unlock()

	if hook != nil {
		hook(m)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.drop != nil && s.drop(m.Type()) {
		return errLinkDown
	}

	s.msgs = append(s.msgs, m)

	return nil
}

func (s *sink) setDrop(f func(t packet.Type) bool) {
	s.lock.Lock()
	s.drop = f
	s.lock.Unlock()
}

func (s *sink) take() []packet.Provider {
	s.lock.Lock()
	defer s.lock.Unlock()

	m := s.msgs
	s.msgs = nil

	return m
}

func typesOf(msgs []packet.Provider) []packet.Type {
	res := make([]packet.Type, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, m.Type())
	}

	return res
}

type matchEvent struct {
	local  guid.GUID
	remote guid.GUID
}

type unmatchEvent struct {
	local  guid.GUID
	remote guid.GUID
	reason Reason
}

type incompatibleEvent struct {
	local  guid.GUID
	policy qos.PolicyID
}

type livelinessEvent struct {
	g     guid.GUID
	alive bool
}

type inconsistentEvent struct {
	local      guid.GUID
	topic      string
	remoteType string
}

type recorder struct {
	lock         sync.Mutex
	matches      []matchEvent
	unmatches    []unmatchEvent
	incompatible []incompatibleEvent
	liveliness   []livelinessEvent
	collisions   []guid.Prefix
	inconsistent []inconsistentEvent
	degraded     []string
	onMatch      func(local, remote guid.GUID)
}

func (r *recorder) OnMatch(local, remote guid.GUID, _ qos.Policies) {
	r.lock.Lock()
	r.matches = append(r.matches, matchEvent{local: local, remote: remote})
	cb := r.onMatch
	r.lock.Unlock()

	if cb != nil {
		cb(local, remote)
	}
}

func (r *recorder) OnUnmatch(local, remote guid.GUID, reason Reason) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.unmatches = append(r.unmatches, unmatchEvent{local: local, remote: remote, reason: reason})
}

func (r *recorder) OnIncompatibleQos(local guid.GUID, failed qos.PolicyID) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.incompatible = append(r.incompatible, incompatibleEvent{local: local, policy: failed})
}

func (r *recorder) OnLivelinessChanged(g guid.GUID, alive bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.liveliness = append(r.liveliness, livelinessEvent{g: g, alive: alive})
}

func (r *recorder) OnPrefixCollision(p guid.Prefix, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.collisions = append(r.collisions, p)
}

func (r *recorder) OnInconsistentTopic(local guid.GUID, topic, remoteType string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.inconsistent = append(r.inconsistent, inconsistentEvent{local: local, topic: topic, remoteType: remoteType})
}

func (r *recorder) OnDiscoveryDegraded(what string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.degraded = append(r.degraded, what)
}

func (r *recorder) livelinessOf(g guid.GUID) []bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	var res []bool
	for _, e := range r.liveliness {
		if e.g == g {
			res = append(res, e.alive)
		}
	}

	return res
}

func (r *recorder) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.matches = nil
	r.unmatches = nil
	r.incompatible = nil
	r.liveliness = nil
	r.collisions = nil
	r.inconsistent = nil
	r.degraded = nil
}

var localPrefix = guid.Prefix{0x01, 0x56, 0xAA, 0xAA, 0xAA, 0xAA, 0, 1, 0, 0, 0, 0}

type fixture struct {
	engine *Engine
	rec    *recorder
	out    *sink
	clk    *clock.Mock
}

func newFixture(t *testing.T, opts ...func(c *Config)) *fixture {
	t.Helper()

	f := &fixture{
		rec: &recorder{},
		out: &sink{},
		clk: clock.NewMock(),
	}

	cfg := Config{
		Prefix:           localPrefix,
		Instance:         uuid.New(),
		AnnounceInterval: time.Second,
		LeaseDuration:    10 * time.Second,
		Transport:        f.out,
		Listener:         f.rec,
		Clock:            f.clk,
		Log:              zap.NewNop(),
	}

	for _, o := range opts {
		o(&cfg)
	}

	e, err := New(cfg)
	require.NoError(t, err)

	f.engine = e

	return f
}

func (f *fixture) local(kind guid.EntityKind, key uint32) guid.GUID {
	return guid.New(localPrefix, guid.BuildEntityID(kind, false, key))
}

func (f *fixture) announceLocal(t *testing.T, g guid.GUID, topic string, q qos.Policies) {
	t.Helper()
	require.NoError(t, f.engine.AnnounceLocalEndpoint(LocalEndpoint{GUID: g, Topic: topic, TypeName: "T", QoS: q}))
}

type peer struct {
	prefix   guid.Prefix
	instance uuid.UUID
	lease    time.Duration
}

func newPeer(b byte) *peer {
	return &peer{
		prefix:   guid.Prefix{0x01, 0x56, b, b, b, b, 0, 1, 0, 0, 0, 0},
		instance: uuid.New(),
		lease:    10 * time.Second,
	}
}

func (p *peer) announce(seq uint64) *packet.ParticipantAnnounce {
	m := packet.NewParticipantAnnounce()
	m.Prefix = p.prefix
	m.Instance = p.instance
	m.Sequence = seq
	m.Lease = p.lease
	m.Locators = []string{"loopback://" + p.prefix.String()}

	return m
}

func (p *peer) withdraw(gen uint64) *packet.ParticipantWithdraw {
	m := packet.NewParticipantWithdraw()
	m.Prefix = p.prefix
	m.Instance = p.instance
	m.Generation = gen

	return m
}

func (p *peer) guid(kind guid.EntityKind, key uint32) guid.GUID {
	return guid.New(p.prefix, guid.BuildEntityID(kind, false, key))
}

func (p *peer) endpoint(g guid.GUID, seq uint64, topic string, q qos.Policies) *packet.EndpointAnnounce {
	m := packet.NewEndpointAnnounce()
	m.GUID = g
	m.Instance = p.instance
	m.Sequence = seq
	m.Topic = topic
	m.TypeName = "T"
	m.QoS = q

	return m
}

func (p *peer) endpointWithdraw(g guid.GUID, gen uint64) *packet.EndpointWithdraw {
	m := packet.NewEndpointWithdraw()
	m.GUID = g
	m.Instance = p.instance
	m.Generation = gen

	return m
}

// feed encodes messages and hands them to engine as transport would
func (f *fixture) feed(t *testing.T, msgs ...packet.Provider) {
	t.Helper()

	for _, m := range msgs {
		buf, err := packet.Encode(m)
		require.NoError(t, err)
		require.NoError(t, f.engine.HandleMessage(buf, "loopback://test"))
	}
}
