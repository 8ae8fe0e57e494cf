// Copyright (c) 2017 The VolantMQ Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package participant

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/VolantMQ/volantdds/configuration"
	"github.com/VolantMQ/volantdds/discovery"
	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/metrics"
	"github.com/VolantMQ/volantdds/packet"
	persistenceTypes "github.com/VolantMQ/volantdds/persistence/types"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/session"
	"github.com/VolantMQ/volantdds/topics"
	"github.com/VolantMQ/volantdds/types"
)

// Participant local domain participant
type Participant struct {
	cfg      Config
	log      *zap.Logger
	prefix   guid.Prefix
	packets  metrics.Packets
	entities *guid.EntityAllocator
	engine   *discovery.Engine
	sessions *session.Manager
	topics   *topics.Registry
	history  persistenceTypes.History
	group    *errgroup.Group
	cancel   context.CancelFunc
	onClose  func(p *Participant)
	once     types.Once
	closeErr error

	lock    sync.RWMutex
	writers map[guid.GUID]*DataWriter
	readers map[guid.GUID]*DataReader
}

func newParticipant(prefix guid.Prefix, cfg Config) (*Participant, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Participant{
		cfg:      cfg,
		log:      cfg.Log,
		prefix:   prefix,
		packets:  cfg.Metrics.Packets(),
		entities: guid.NewEntityAllocator(),
		topics:   topics.NewRegistry(),
		writers:  make(map[guid.GUID]*DataWriter),
		readers:  make(map[guid.GUID]*DataReader),
	}

	if p.log == nil {
		p.log = configuration.GetLogger().Named("participant")
	}

	p.log = p.log.With(zap.Stringer("prefix", prefix))

	if cfg.Persistence != nil {
		h, err := cfg.Persistence.History()
		if err != nil {
			return nil, err
		}

		p.history = h
	}

	var err error

	p.engine, err = discovery.New(discovery.Config{
		Prefix:           prefix,
		Instance:         uuid.New(),
		Domain:           cfg.Domain,
		AnnounceInterval: cfg.AnnounceInterval,
		LeaseDuration:    cfg.LeaseDuration,
		LeaseCheck:       cfg.LeaseCheck,
		Tombstones:       cfg.Tombstones,
		PendingEndpoints: cfg.PendingEndpoints,
		Locators:         []string{cfg.Transport.Locator()},
		UserData:         cfg.UserData,
		Transport:        cfg.Transport,
		Listener:         p,
		Topics:           p.topics,
		Metrics:          cfg.Metrics,
		Clock:            cfg.Clock,
		Log:              p.log.Named("discovery"),
	})
	if err != nil {
		return nil, err
	}

	p.sessions, err = session.NewManager(session.Config{
		Prefix:            prefix,
		Transport:         cfg.Transport,
		History:           p.history,
		Listener:          p,
		Deliver:           p.deliver,
		Clock:             cfg.Clock,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReplayDepth:       cfg.ReplayDepth,
		ReplayMaxAge:      cfg.ReplayMaxAge,
		Metrics:           cfg.Metrics,
		Log:               p.log.Named("session"),
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// start attaches transport and spawns announcer, lease checker and heartbeats
func (p *Participant) start() {
	p.cfg.Transport.OnReceive(p.receive)

	var ctx context.Context
	ctx, p.cancel = context.WithCancel(context.Background())
	p.group, ctx = errgroup.WithContext(ctx)

	p.group.Go(func() error {
		return p.engine.Run(ctx)
	})

	p.group.Go(func() error {
		return p.sessions.Run(ctx)
	})

	p.log.Info("participant started",
		zap.Uint32("domain", p.cfg.Domain),
		zap.String("locator", p.cfg.Transport.Locator()))
}

// receive decodes inbound payload once and routes it either to discovery
// or to delivery sessions
func (p *Participant) receive(payload []byte, from string) {
	m, err := packet.Decode(payload)
	if err != nil {
		p.packets.OnMalformed()
		p.log.Debug("malformed message dropped", zap.String("from", from), zap.Error(err))
		return
	}

	p.packets.OnRecv(m.Type())

	switch m.Type() {
	case packet.PARTICIPANT_ANNOUNCE, packet.PARTICIPANT_WITHDRAW, packet.ENDPOINT_ANNOUNCE, packet.ENDPOINT_WITHDRAW:
		err = p.engine.Process(m, from)
	default:
		err = p.sessions.HandleMessage(m)
	}

	if err != nil && err != session.ErrNotFound && err != discovery.ErrClosed {
		p.log.Debug("message rejected", zap.String("type", m.Desc()), zap.String("from", from), zap.Error(err))
	}
}

// Prefix of participant
func (p *Participant) Prefix() guid.Prefix {
	return p.prefix
}

// GUID of participant entity
func (p *Participant) GUID() guid.GUID {
	return guid.New(p.prefix, guid.EntityParticipant)
}

// Domain participant belongs to
func (p *Participant) Domain() uint32 {
	return p.cfg.Domain
}

// State of discovery
func (p *Participant) State() discovery.State {
	return p.engine.State()
}

// Discovery engine of participant
func (p *Participant) Discovery() *discovery.Engine {
	return p.engine
}

// Sessions manager of participant
func (p *Participant) Sessions() *session.Manager {
	return p.sessions
}

// Topics registry of participant
func (p *Participant) Topics() *topics.Registry {
	return p.topics
}

// CreateWriter creates data writer and announces it
func (p *Participant) CreateWriter(topic, typeName string, q qos.Policies) (*DataWriter, error) {
	if topic == "" || typeName == "" {
		return nil, ErrInvalidTopic
	}

	if p.once.Done() {
		return nil, ErrClosed
	}

	id, err := p.entities.Next(guid.KindUserWriter, false)
	if err != nil {
		return nil, err
	}

	w := &DataWriter{
		p:        p,
		guid:     guid.New(p.prefix, id),
		topic:    topic,
		typeName: typeName,
		qos:      q.Clone(),
	}

	if err = p.sessions.AddWriter(w.guid, q); err != nil {
		return nil, p.endpointErr(err)
	}

	p.lock.Lock()
	p.writers[w.guid] = w
	p.lock.Unlock()

	if err = p.engine.AnnounceLocalEndpoint(discovery.LocalEndpoint{
		GUID:     w.guid,
		Topic:    topic,
		TypeName: typeName,
		QoS:      q,
	}); err != nil {
		p.forget(w.guid)
		return nil, p.endpointErr(err)
	}

	p.log.Debug("writer created", zap.Stringer("guid", w.guid), zap.String("topic", topic))

	return w, nil
}

// CreateReader creates data reader and announces it
func (p *Participant) CreateReader(topic, typeName string, q qos.Policies) (*DataReader, error) {
	if topic == "" || typeName == "" {
		return nil, ErrInvalidTopic
	}

	if p.once.Done() {
		return nil, ErrClosed
	}

	id, err := p.entities.Next(guid.KindUserReader, false)
	if err != nil {
		return nil, err
	}

	r := newDataReader(p, guid.New(p.prefix, id), topic, typeName, q)

	if err = p.sessions.AddReader(r.guid, q); err != nil {
		return nil, p.endpointErr(err)
	}

	p.lock.Lock()
	p.readers[r.guid] = r
	p.lock.Unlock()

	if err = p.engine.AnnounceLocalEndpoint(discovery.LocalEndpoint{
		GUID:     r.guid,
		Topic:    topic,
		TypeName: typeName,
		QoS:      q,
	}); err != nil {
		p.forget(r.guid)
		return nil, p.endpointErr(err)
	}

	p.log.Debug("reader created", zap.Stringer("guid", r.guid), zap.String("topic", topic))

	return r, nil
}

// Writers of participant
func (p *Participant) Writers() []*DataWriter {
	p.lock.RLock()
	defer p.lock.RUnlock()

	res := make([]*DataWriter, 0, len(p.writers))
	for _, w := range p.writers {
		res = append(res, w)
	}

	return res
}

// Readers of participant
func (p *Participant) Readers() []*DataReader {
	p.lock.RLock()
	defer p.lock.RUnlock()

	res := make([]*DataReader, 0, len(p.readers))
	for _, r := range p.readers {
		res = append(res, r)
	}

	return res
}

// deleteEndpoint withdraws endpoint and drops its sessions
func (p *Participant) deleteEndpoint(g guid.GUID) error {
	err := p.engine.WithdrawLocalEndpoint(g)
	p.forget(g)

	return p.endpointErr(err)
}

func (p *Participant) forget(g guid.GUID) {
	p.lock.Lock()
	delete(p.writers, g)
	r := p.readers[g]
	delete(p.readers, g)
	p.lock.Unlock()

	p.sessions.RemoveEndpoint(g)

	if r != nil {
		r.shutdown()
	}
}

// deliver hands in-order sample to local reader cache
func (p *Participant) deliver(reader guid.GUID, s session.Sample) {
	p.lock.RLock()
	r := p.readers[reader]
	p.lock.RUnlock()

	if r != nil {
		r.push(s)
	}
}

func (p *Participant) endpointErr(err error) error {
	switch err {
	case discovery.ErrClosed, session.ErrClosed:
		return ErrClosed
	case discovery.ErrNotFound, session.ErrUnknownEndpoint:
		return ErrEndpointGone
	default:
		return err
	}
}

// Close withdraws every endpoint and participant itself, then stops
// background loops and transport
func (p *Participant) Close(ctx context.Context) error {
	p.once.Do(func() {
		err := p.engine.Close(ctx)
		err = multierr.Append(err, p.sessions.Shutdown())

		p.cancel()
		err = multierr.Append(err, p.group.Wait())
		err = multierr.Append(err, p.cfg.Transport.Close())

		p.lock.Lock()
		readers := make([]*DataReader, 0, len(p.readers))
		for g, r := range p.readers {
			readers = append(readers, r)
			delete(p.readers, g)
		}

		for g := range p.writers {
			delete(p.writers, g)
		}
		p.lock.Unlock()

		for _, r := range readers {
			r.shutdown()
		}

		if p.onClose != nil {
			p.onClose(p)
		}

		p.closeErr = err

		p.log.Info("participant closed")
	})

	return p.closeErr
}
