package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/configuration"
	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/metrics"
	"github.com/VolantMQ/volantdds/packet"
	"github.com/VolantMQ/volantdds/qos"
)

type collisionKey struct {
	prefix   guid.Prefix
	instance uuid.UUID
}

type outbound struct {
	msg      packet.Provider
	dest     string
	critical bool
}

// Engine discovery engine of single local participant
type Engine struct {
	cfg     Config
	log     *zap.Logger
	clk     clock.Clock
	stat    metrics.Discovery
	packets metrics.Packets
	events  *dispatcher
	ctx     context.Context
	cancel  context.CancelFunc

	lock       sync.Mutex
	state      State
	announcing time.Time
	reg        *registry
	self       *participantRecord
	tombs      *tombstones
	pending    *pending
	outbox     []packet.Provider
	collisions map[collisionKey]struct{}
}

// New discovery engine. Engine stays in INITIALIZING state until first
// announcement has been sent either by Announce or Run
func New(cfg Config) (*Engine, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	tombs, err := newTombstones(cfg.Tombstones)
	if err != nil {
		return nil, err
	}

	pend, err := newPending(cfg.PendingEndpoints)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		log:        cfg.Log,
		clk:        cfg.Clock,
		stat:       cfg.Metrics.Discovery(),
		packets:    cfg.Metrics.Packets(),
		events:     newDispatcher(cfg.Listener),
		state:      StateInitializing,
		reg:        newRegistry(),
		tombs:      tombs,
		pending:    pend,
		collisions: make(map[collisionKey]struct{}),
	}

	if e.log == nil {
		e.log = configuration.GetLogger().Named("discovery")
	}

	e.log = e.log.With(zap.Stringer("prefix", cfg.Prefix))
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.self = &participantRecord{
		prefix:    cfg.Prefix,
		instance:  cfg.Instance,
		domain:    cfg.Domain,
		lease:     cfg.LeaseDuration,
		lastSeen:  e.clk.Now(),
		sequence:  1,
		locators:  append([]string(nil), cfg.Locators...),
		userData:  append([]byte(nil), cfg.UserData...),
		endpoints: make(map[guid.GUID]struct{}),
		local:     true,
	}

	e.reg.participants[cfg.Prefix] = e.self

	return e, nil
}

// Prefix of local participant
func (e *Engine) Prefix() guid.Prefix {
	return e.cfg.Prefix
}

// Instance token of local participant
func (e *Engine) Instance() uuid.UUID {
	return e.cfg.Instance
}

// State of local participant
func (e *Engine) State() State {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.state
}

// Run announcer and lease checker until ctx is done or engine closed
func (e *Engine) Run(ctx context.Context) error {
	announce := e.clk.Ticker(e.cfg.AnnounceInterval)
	defer announce.Stop()

	lease := e.clk.Ticker(e.cfg.LeaseCheck)
	defer lease.Stop()

	if err := e.Announce(ctx); err == ErrClosed {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.ctx.Done():
			return nil
		case <-announce.C:
			if err := e.Announce(ctx); err == ErrClosed {
				return nil
			}
		case <-lease.C:
			e.ExpireLeases()
		}
	}
}

// Announce sends one round of announcements: unsent critical messages,
// participant announcement and announcement of every local endpoint
func (e *Engine) Announce(ctx context.Context) error {
	e.lock.Lock()
	if e.state == StateShuttingDown {
		e.lock.Unlock()
		return ErrClosed
	}

	out := make([]outbound, 0, len(e.outbox)+len(e.self.endpoints)+1)
	critical := make(map[guid.GUID]struct{})

	for _, m := range e.outbox {
		out = append(out, outbound{msg: m, critical: true})
		if a, ok := m.(*packet.EndpointAnnounce); ok {
			critical[a.GUID] = struct{}{}
		}
	}

	out = append(out, outbound{msg: e.participantAnnouncement()})

	for _, g := range e.reg.sortedEndpoints(e.self.endpoints) {
		if _, ok := critical[g]; ok {
			continue
		}

		out = append(out, outbound{msg: e.endpointAnnouncement(e.reg.endpoint(g))})
	}
	e.lock.Unlock()

	selfSent, err := e.send(ctx, out)

	e.lock.Lock()
	defer e.lock.Unlock()

	now := e.clk.Now()

	switch e.state {
	case StateInitializing:
		if selfSent {
			e.state = StateAnnouncing
			e.announcing = now
			e.log.Info("announcing")
		}
	case StateAnnouncing:
		if len(e.outbox) == 0 && now.Sub(e.announcing) >= e.cfg.AnnounceInterval {
			e.state = StateOperational
			e.log.Info("operational")
		}
	}

	return err
}

// ExpireLeases removes remote participants silent for longer than their lease
func (e *Engine) ExpireLeases() {
	e.lock.Lock()

	now := e.clk.Now()

	var expired []*participantRecord
	for _, p := range e.reg.participants {
		if p.expired(now) {
			expired = append(expired, p)
		}
	}

	sortParticipants(expired)

	for _, p := range expired {
		e.log.Info("participant lease expired",
			zap.Stringer("remote", p.prefix),
			zap.Duration("lease", p.lease))
		e.dropParticipant(p, Reason{Kind: ReasonLivelinessLost})
	}

	if n := e.pending.expire(now, e.cfg.LeaseDuration); n > 0 {
		e.log.Debug("pending endpoints expired", zap.Int("count", n))
	}

	e.lock.Unlock()

	e.events.flush()
}

// Close withdraws every local endpoint, then local participant
func (e *Engine) Close(ctx context.Context) error {
	e.lock.Lock()
	if e.state == StateShuttingDown {
		e.lock.Unlock()
		return nil
	}

	e.state = StateShuttingDown

	var out []outbound

	for _, g := range e.reg.sortedEndpoints(e.self.endpoints) {
		rec := e.reg.endpoint(g)
		e.tombs.buryEndpoint(g, rec.sequence)
		e.dropEndpoint(rec, Reason{Kind: ReasonShutdown})
		out = append(out, outbound{msg: e.endpointWithdrawal(rec), critical: true})
	}

	w := packet.NewParticipantWithdraw()
	w.Prefix = e.cfg.Prefix
	w.Instance = e.cfg.Instance
	w.Generation = e.self.sequence
	out = append(out, outbound{msg: w, critical: true})

	e.lock.Unlock()

	e.events.flush()

	_, err := e.send(ctx, out)

	// local record stays visible until withdrawals are out
	e.lock.Lock()
	delete(e.reg.participants, e.cfg.Prefix)
	e.outbox = nil
	e.lock.Unlock()

	e.cancel()

	e.log.Info("closed")

	return err
}

// AnnounceLocalEndpoint registers local writer or reader, matches it against
// known endpoints and announces it
func (e *Engine) AnnounceLocalEndpoint(ep LocalEndpoint) error {
	if ep.GUID.Prefix != e.cfg.Prefix {
		return ErrNotLocal
	}

	if !ep.GUID.Entity.Kind.IsWriter() && !ep.GUID.Entity.Kind.IsReader() {
		return ErrInvalidEndpoint
	}

	e.lock.Lock()
	if e.state == StateShuttingDown {
		e.lock.Unlock()
		return ErrClosed
	}

	if e.reg.endpoint(ep.GUID) != nil {
		e.lock.Unlock()
		return ErrAlreadyExists
	}

	rec := &endpointRecord{
		guid:     ep.GUID,
		topic:    ep.Topic,
		typeName: ep.TypeName,
		qos:      ep.QoS.Clone(),
		sequence: 1,
		matched:  make(map[guid.GUID]struct{}),
		local:    true,
	}

	e.reg.addEndpoint(rec)
	e.stat.OnEndpoint(1)
	e.checkTopic(rec)
	e.runMatching(rec)

	msg := e.endpointAnnouncement(rec)
	e.outbox = append(e.outbox, msg)
	e.lock.Unlock()

	e.log.Debug("local endpoint announced",
		zap.Stringer("guid", ep.GUID),
		zap.String("topic", ep.Topic),
		zap.String("type", ep.TypeName))

	e.events.flush()
	e.sendAsync([]outbound{{msg: msg, critical: true}})

	return nil
}

// UpdateLocalEndpoint replaces policies of local endpoint and re-announces it
func (e *Engine) UpdateLocalEndpoint(g guid.GUID, q qos.Policies) error {
	e.lock.Lock()
	if e.state == StateShuttingDown {
		e.lock.Unlock()
		return ErrClosed
	}

	rec := e.reg.endpoint(g)
	if rec == nil || !rec.local {
		e.lock.Unlock()
		return ErrNotFound
	}

	e.dropCritical(g)
	e.updateEndpoint(rec, rec.topic, rec.typeName, q.Clone(), rec.sequence+1)

	msg := e.endpointAnnouncement(rec)
	e.outbox = append(e.outbox, msg)
	e.lock.Unlock()

	e.events.flush()
	e.sendAsync([]outbound{{msg: msg, critical: true}})

	return nil
}

// WithdrawLocalEndpoint removes local endpoint. Withdrawal is authoritative
// immediately, matches are torn down before the call returns
func (e *Engine) WithdrawLocalEndpoint(g guid.GUID) error {
	e.lock.Lock()
	if e.state == StateShuttingDown {
		e.lock.Unlock()
		return ErrClosed
	}

	rec := e.reg.endpoint(g)
	if rec == nil || !rec.local {
		e.lock.Unlock()
		return ErrNotFound
	}

	e.tombs.buryEndpoint(g, rec.sequence)
	e.dropEndpoint(rec, Reason{Kind: ReasonWithdrawn})
	e.dropCritical(g)

	msg := e.endpointWithdrawal(rec)
	e.outbox = append(e.outbox, msg)
	e.lock.Unlock()

	e.log.Debug("local endpoint withdrawn", zap.Stringer("guid", g))

	e.events.flush()
	e.sendAsync([]outbound{{msg: msg, critical: true}})

	return nil
}

// HandleMessage decodes and processes inbound discovery message.
// Malformed messages are dropped and counted
func (e *Engine) HandleMessage(payload []byte, from string) error {
	m, err := packet.Decode(payload)
	if err != nil {
		e.packets.OnMalformed()
		e.log.Debug("malformed message dropped", zap.String("from", from), zap.Error(err))
		return err
	}

	e.packets.OnRecv(m.Type())

	return e.Process(m, from)
}

// Process decoded discovery message
func (e *Engine) Process(m packet.Provider, from string) error {
	switch m.Type() {
	case packet.PARTICIPANT_ANNOUNCE, packet.ENDPOINT_ANNOUNCE:
		return e.OnRemoteAnnouncement(m, from)
	case packet.PARTICIPANT_WITHDRAW, packet.ENDPOINT_WITHDRAW:
		return e.OnRemoteWithdrawal(m)
	default:
		return ErrNotDiscovery
	}
}

// OnRemoteAnnouncement applies participant or endpoint announcement.
// Processing is idempotent, duplicates only refresh participant lease
func (e *Engine) OnRemoteAnnouncement(m packet.Provider, from string) error {
	var out []outbound

	e.lock.Lock()
	if e.state == StateShuttingDown {
		e.lock.Unlock()
		return ErrClosed
	}

	switch msg := m.(type) {
	case *packet.ParticipantAnnounce:
		out = e.participantAnnounced(msg, from)
	case *packet.EndpointAnnounce:
		e.endpointAnnounced(msg)
	default:
		e.lock.Unlock()
		return ErrNotDiscovery
	}
	e.lock.Unlock()

	e.events.flush()

	if len(out) > 0 {
		e.sendAsync(out)
	}

	return nil
}

// OnRemoteWithdrawal applies participant or endpoint withdrawal
func (e *Engine) OnRemoteWithdrawal(m packet.Provider) error {
	e.lock.Lock()
	if e.state == StateShuttingDown {
		e.lock.Unlock()
		return ErrClosed
	}

	switch msg := m.(type) {
	case *packet.ParticipantWithdraw:
		e.participantWithdrawn(msg)
	case *packet.EndpointWithdraw:
		e.endpointWithdrawn(msg)
	default:
		e.lock.Unlock()
		return ErrNotDiscovery
	}
	e.lock.Unlock()

	e.events.flush()

	return nil
}

func (e *Engine) participantAnnounced(msg *packet.ParticipantAnnounce, from string) []outbound {
	if msg.Domain != e.cfg.Domain {
		return nil
	}

	if msg.Prefix == e.cfg.Prefix {
		if msg.Instance != e.cfg.Instance {
			e.collide(msg.Prefix, msg.Instance)
		}

		return nil
	}

	now := e.clk.Now()

	locators := msg.Locators
	if len(locators) == 0 && len(from) > 0 {
		locators = []string{from}
	}

	rec := e.reg.participant(msg.Prefix)
	if rec == nil {
		if e.tombs.participantBuried(msg.Prefix, msg.Sequence) {
			e.stat.OnStale()
			return nil
		}

		e.tombs.unburyParticipant(msg.Prefix)

		rec = &participantRecord{
			prefix:    msg.Prefix,
			instance:  msg.Instance,
			domain:    msg.Domain,
			lease:     msg.Lease,
			lastSeen:  now,
			sequence:  msg.Sequence,
			locators:  append([]string(nil), locators...),
			userData:  append([]byte(nil), msg.UserData...),
			endpoints: make(map[guid.GUID]struct{}),
		}

		if rec.lease <= 0 {
			rec.lease = e.cfg.LeaseDuration
		}

		e.reg.participants[msg.Prefix] = rec
		e.stat.OnParticipant(1)
		e.events.push(event{kind: eventLiveliness, remote: guid.ParticipantGUID(msg.Prefix), alive: true})

		e.log.Info("participant discovered",
			zap.Stringer("remote", msg.Prefix),
			zap.Strings("locators", rec.locators))

		for _, ep := range e.pending.take(msg.Prefix) {
			e.endpointAnnounced(ep)
		}

		// newcomer learns about us without waiting for next tick
		return e.announcements()
	}

	if rec.collided {
		return nil
	}

	if rec.instance != msg.Instance {
		e.collide(msg.Prefix, msg.Instance)
		return nil
	}

	switch {
	case msg.Sequence < rec.sequence:
		e.stat.OnStale()
	case msg.Sequence == rec.sequence:
		rec.lastSeen = now
	default:
		rec.sequence = msg.Sequence
		rec.lastSeen = now
		rec.locators = append([]string(nil), locators...)
		rec.userData = append([]byte(nil), msg.UserData...)

		if msg.Lease > 0 {
			rec.lease = msg.Lease
		}
	}

	return nil
}

func (e *Engine) endpointAnnounced(msg *packet.EndpointAnnounce) {
	g := msg.GUID

	if g.Prefix == e.cfg.Prefix {
		if msg.Instance != e.cfg.Instance {
			e.collide(g.Prefix, msg.Instance)
		}

		return
	}

	if e.tombs.endpointBuried(g, msg.Sequence) || e.tombs.prefixBuried(g.Prefix) {
		e.stat.OnStale()
		return
	}

	p := e.reg.participant(g.Prefix)
	if p == nil {
		if e.pending.put(msg, e.clk.Now()) {
			e.stat.OnPendingEvicted()
			e.degraded("pending endpoint evicted")
		}

		return
	}

	if p.collided {
		return
	}

	if p.instance != msg.Instance {
		e.collide(g.Prefix, msg.Instance)
		return
	}

	// announcement of any kind proves participant is alive
	p.lastSeen = e.clk.Now()

	rec := e.reg.endpoint(g)
	if rec == nil {
		rec = &endpointRecord{
			guid:     g,
			topic:    msg.Topic,
			typeName: msg.TypeName,
			qos:      msg.QoS.Clone(),
			sequence: msg.Sequence,
			matched:  make(map[guid.GUID]struct{}),
		}

		e.reg.addEndpoint(rec)
		e.stat.OnEndpoint(1)
		e.events.push(event{kind: eventLiveliness, remote: g, alive: true})

		e.log.Debug("endpoint discovered",
			zap.Stringer("guid", g),
			zap.String("topic", msg.Topic),
			zap.String("type", msg.TypeName))

		e.checkTopic(rec)
		e.runMatching(rec)

		return
	}

	switch {
	case msg.Sequence < rec.sequence:
		e.stat.OnStale()
	case msg.Sequence > rec.sequence:
		e.updateEndpoint(rec, msg.Topic, msg.TypeName, msg.QoS.Clone(), msg.Sequence)
	}
}

func (e *Engine) participantWithdrawn(msg *packet.ParticipantWithdraw) {
	if msg.Prefix == e.cfg.Prefix {
		if msg.Instance != e.cfg.Instance {
			e.collide(msg.Prefix, msg.Instance)
		}

		return
	}

	rec := e.reg.participant(msg.Prefix)
	if rec != nil {
		if rec.instance != msg.Instance {
			return
		}

		if msg.Generation < rec.sequence {
			e.stat.OnStale()
			return
		}
	}

	e.buryParticipant(msg.Prefix, msg.Generation)
	e.pending.take(msg.Prefix)

	if rec != nil {
		e.log.Info("participant withdrawn", zap.Stringer("remote", msg.Prefix))
		e.dropParticipant(rec, Reason{Kind: ReasonWithdrawn})
	}
}

func (e *Engine) endpointWithdrawn(msg *packet.EndpointWithdraw) {
	g := msg.GUID

	if g.Prefix == e.cfg.Prefix {
		if msg.Instance != e.cfg.Instance {
			e.collide(g.Prefix, msg.Instance)
		}

		return
	}

	if p := e.reg.participant(g.Prefix); p != nil && (p.collided || p.instance != msg.Instance) {
		return
	}

	e.buryEndpoint(g, msg.Generation)
	e.pending.drop(g, msg.Generation)

	rec := e.reg.endpoint(g)
	if rec == nil {
		return
	}

	if msg.Generation < rec.sequence {
		e.stat.OnStale()
		return
	}

	e.log.Debug("endpoint withdrawn", zap.Stringer("guid", g))
	e.dropEndpoint(rec, Reason{Kind: ReasonWithdrawn})
}

func (e *Engine) buryEndpoint(g guid.GUID, generation uint64) {
	if e.tombs.buryEndpoint(g, generation) {
		e.stat.OnTombstoneEvicted()
		e.degraded("endpoint tombstone evicted")
	}
}

func (e *Engine) buryParticipant(p guid.Prefix, generation uint64) {
	if e.tombs.buryParticipant(p, generation) {
		e.stat.OnTombstoneEvicted()
		e.degraded("participant tombstone evicted")
	}
}

func (e *Engine) degraded(what string) {
	e.log.Warn("discovery degraded", zap.String("reason", what))
	e.events.push(event{kind: eventDegraded, what: what})
}

// collide reports foreign instance using known prefix. Matches of remote
// record are torn down and the record is left to lapse
func (e *Engine) collide(p guid.Prefix, instance uuid.UUID) {
	k := collisionKey{prefix: p, instance: instance}
	if _, ok := e.collisions[k]; ok {
		return
	}

	e.collisions[k] = struct{}{}
	e.stat.OnCollision()

	e.log.Warn("prefix collision",
		zap.Stringer("remote", p),
		zap.Stringer("instance", instance))

	e.events.push(event{kind: eventCollision, prefix: p})

	rec := e.reg.participant(p)
	if rec == nil || rec.local || rec.collided {
		return
	}

	rec.collided = true

	for _, g := range e.reg.sortedEndpoints(rec.endpoints) {
		if ep := e.reg.endpoint(g); ep != nil {
			e.unmatchAll(ep, Reason{Kind: ReasonCollision})
		}
	}
}

func (e *Engine) dropParticipant(p *participantRecord, reason Reason) {
	for _, g := range e.reg.sortedEndpoints(p.endpoints) {
		if ep := e.reg.endpoint(g); ep != nil {
			e.dropEndpoint(ep, reason)
		}
	}

	delete(e.reg.participants, p.prefix)

	for k := range e.collisions {
		if k.prefix == p.prefix {
			delete(e.collisions, k)
		}
	}

	e.stat.OnParticipant(-1)
	e.events.push(event{kind: eventLiveliness, remote: guid.ParticipantGUID(p.prefix), alive: false})
}

func (e *Engine) dropEndpoint(ep *endpointRecord, reason Reason) {
	e.unmatchAll(ep, reason)

	e.reg.removeEndpoint(ep.guid)
	e.cfg.Topics.Remove(ep.guid)
	e.stat.OnEndpoint(-1)

	if !ep.local {
		e.events.push(event{kind: eventLiveliness, remote: ep.guid, alive: false})
	}
}

func (e *Engine) updateEndpoint(rec *endpointRecord, topic, typeName string, q qos.Policies, sequence uint64) {
	rec.sequence = sequence

	if rec.topic != topic || rec.typeName != typeName {
		e.unmatchAll(rec, Reason{Kind: ReasonTopicChanged})

		for k := range e.reg.incompatible {
			if k.writer == rec.guid || k.reader == rec.guid {
				delete(e.reg.incompatible, k)
			}
		}

		e.reg.unindex(rec)
		e.cfg.Topics.Remove(rec.guid)

		rec.topic = topic
		rec.typeName = typeName
		rec.qos = q

		e.reg.index(rec)
		e.checkTopic(rec)
	} else {
		rec.qos = q
	}

	e.runMatching(rec)
}

func (e *Engine) checkTopic(rec *endpointRecord) {
	for _, c := range e.cfg.Topics.Add(rec.topic, rec.typeName, rec.guid, rec.local) {
		e.log.Warn("inconsistent topic",
			zap.String("topic", c.Topic),
			zap.Stringer("local", c.Local),
			zap.String("remoteType", c.RemoteType))

		e.events.push(event{
			kind:     eventInconsistentTopic,
			local:    c.Local,
			topic:    c.Topic,
			typeName: c.RemoteType,
		})
	}
}

// dropCritical removes unsent first announcement of endpoint from outbox
func (e *Engine) dropCritical(g guid.GUID) {
	kept := e.outbox[:0]

	for _, m := range e.outbox {
		if a, ok := m.(*packet.EndpointAnnounce); ok && a.GUID == g {
			continue
		}

		kept = append(kept, m)
	}

	e.outbox = kept
}

func (e *Engine) ack(m packet.Provider) {
	e.lock.Lock()
	defer e.lock.Unlock()

	for i, o := range e.outbox {
		if o == m {
			e.outbox = append(e.outbox[:i], e.outbox[i+1:]...)
			return
		}
	}
}

func (e *Engine) participantAnnouncement() *packet.ParticipantAnnounce {
	m := packet.NewParticipantAnnounce()
	m.Prefix = e.cfg.Prefix
	m.Instance = e.cfg.Instance
	m.Sequence = e.self.sequence
	m.Domain = e.cfg.Domain
	m.Lease = e.cfg.LeaseDuration
	m.Locators = e.self.locators
	m.UserData = e.self.userData

	return m
}

func (e *Engine) endpointAnnouncement(rec *endpointRecord) *packet.EndpointAnnounce {
	m := packet.NewEndpointAnnounce()
	m.GUID = rec.guid
	m.Instance = e.cfg.Instance
	m.Sequence = rec.sequence
	m.Topic = rec.topic
	m.TypeName = rec.typeName
	m.QoS = rec.qos.Clone()

	return m
}

func (e *Engine) endpointWithdrawal(rec *endpointRecord) *packet.EndpointWithdraw {
	m := packet.NewEndpointWithdraw()
	m.GUID = rec.guid
	m.Instance = e.cfg.Instance
	m.Generation = rec.sequence

	return m
}

// announcements of local participant and every local endpoint
func (e *Engine) announcements() []outbound {
	out := []outbound{{msg: e.participantAnnouncement()}}

	for _, g := range e.reg.sortedEndpoints(e.self.endpoints) {
		out = append(out, outbound{msg: e.endpointAnnouncement(e.reg.endpoint(g))})
	}

	return out
}

// sendAsync sends on behalf of inbound processing or local operation.
// Failures are transient, critical messages stay in outbox for next tick
func (e *Engine) sendAsync(out []outbound) {
	if _, err := e.send(e.ctx, out); err != nil {
		e.log.Debug("send failed", zap.Error(err))
	}
}

// send must be called without engine lock held.
// Returns true if participant announcement has been sent
func (e *Engine) send(ctx context.Context, out []outbound) (bool, error) {
	var err error

	selfSent := false

	for _, o := range out {
		buf, encErr := packet.Encode(o.msg)
		if encErr != nil {
			e.log.Error("couldn't encode message", zap.String("type", o.msg.Desc()), zap.Error(encErr))
			err = multierr.Append(err, encErr)
			continue
		}

		if sErr := e.cfg.Transport.Send(ctx, buf, o.dest); sErr != nil {
			e.packets.OnSendError()
			err = multierr.Append(err, sErr)
			continue
		}

		e.packets.OnSent(o.msg.Type())

		if o.critical {
			e.ack(o.msg)
		}

		if o.msg.Type() == packet.PARTICIPANT_ANNOUNCE {
			selfSent = true
		}
	}

	return selfSent, err
}
