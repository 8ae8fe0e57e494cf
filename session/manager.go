package session

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/configuration"
	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/metrics"
	"github.com/VolantMQ/volantdds/packet"
	persistenceTypes "github.com/VolantMQ/volantdds/persistence/types"
	"github.com/VolantMQ/volantdds/qos"
)

type pairKey struct {
	writer guid.GUID
	reader guid.GUID
}

type localWriter struct {
	lock     sync.Mutex
	guid     guid.GUID
	qos      qos.Policies
	seq      uint64
	sessions map[guid.GUID]*writerSession
}

type localReader struct {
	guid guid.GUID
	qos  qos.Policies
}

// Manager owns every delivery session of participant
type Manager struct {
	cfg      Config
	log      *zap.Logger
	stat     metrics.Delivery
	packets  metrics.Packets
	ctx      context.Context
	cancel   context.CancelFunc
	lock     sync.RWMutex
	writers  map[guid.GUID]*localWriter
	readers  map[guid.GUID]*localReader
	wSession map[pairKey]*writerSession
	rSession map[pairKey]*readerSession
	closed   bool
}

// NewManager creates session manager
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		log:      cfg.Log,
		stat:     cfg.Metrics.Delivery(),
		packets:  cfg.Metrics.Packets(),
		writers:  make(map[guid.GUID]*localWriter),
		readers:  make(map[guid.GUID]*localReader),
		wSession: make(map[pairKey]*writerSession),
		rSession: make(map[pairKey]*readerSession),
	}

	if m.log == nil {
		m.log = configuration.GetLogger().Named("session")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	return m, nil
}

// AddWriter registers local writer
func (m *Manager) AddWriter(g guid.GUID, q qos.Policies) error {
	if !g.Entity.Kind.IsWriter() {
		return ErrInvalidArgs
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if m.closed {
		return ErrClosed
	}

	if _, ok := m.writers[g]; ok {
		return ErrAlreadyExists
	}

	m.writers[g] = &localWriter{
		guid:     g,
		qos:      q.Clone(),
		sessions: make(map[guid.GUID]*writerSession),
	}

	return nil
}

// AddReader registers local reader
func (m *Manager) AddReader(g guid.GUID, q qos.Policies) error {
	if !g.Entity.Kind.IsReader() {
		return ErrInvalidArgs
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if m.closed {
		return ErrClosed
	}

	if _, ok := m.readers[g]; ok {
		return ErrAlreadyExists
	}

	m.readers[g] = &localReader{guid: g, qos: q.Clone()}

	return nil
}

// SetQoS replaces policies of local endpoint. Open sessions keep
// reliability they were negotiated with
func (m *Manager) SetQoS(g guid.GUID, q qos.Policies) error {
	m.lock.Lock()

	if r, ok := m.readers[g]; ok {
		r.qos = q.Clone()
		m.lock.Unlock()

		return nil
	}

	w, ok := m.writers[g]
	m.lock.Unlock()

	if !ok {
		return ErrUnknownEndpoint
	}

	// writer lock is taken after manager lock is released, Write holds
	// it while dispatching to local readers
	w.lock.Lock()
	w.qos = q.Clone()
	w.lock.Unlock()

	return nil
}

// RemoveEndpoint drops local writer or reader with every its session.
// Durable history of writer is removed as well
func (m *Manager) RemoveEndpoint(g guid.GUID) {
	m.lock.Lock()

	n := 0

	if _, ok := m.writers[g]; ok {
		delete(m.writers, g)

		for k, s := range m.wSession {
			if k.writer == g {
				s.close()
				delete(m.wSession, k)
				n++
			}
		}
	}

	if _, ok := m.readers[g]; ok {
		delete(m.readers, g)

		for k, s := range m.rSession {
			if k.reader == g {
				s.close()
				delete(m.rSession, k)
				n++
			}
		}
	}

	m.lock.Unlock()

	if n > 0 {
		m.stat.OnSession(-n)
	}

	if m.cfg.History != nil && g.Entity.Kind.IsWriter() {
		if err := m.cfg.History.Delete(g); err != nil && err != persistenceTypes.ErrNotFound {
			m.log.Error("couldn't delete writer history", zap.Stringer("writer", g), zap.Error(err))
		}
	}
}

// Open session between local endpoint and matched remote one.
// remote is a reader if local is a writer and vice versa
func (m *Manager) Open(local, remote guid.GUID, remoteQoS qos.Policies, locator string) error {
	if local.Entity.Kind.IsWriter() {
		return m.openWriter(local, remote, remoteQoS, locator)
	}

	return m.openReader(local, remote, locator)
}

func (m *Manager) openWriter(writer, reader guid.GUID, readerQoS qos.Policies, locator string) error {
	m.lock.Lock()

	if m.closed {
		m.lock.Unlock()
		return ErrClosed
	}

	w, ok := m.writers[writer]
	if !ok {
		m.lock.Unlock()
		return ErrUnknownEndpoint
	}

	k := pairKey{writer: writer, reader: reader}
	if _, ok = m.wSession[k]; ok {
		m.lock.Unlock()
		return ErrAlreadyExists
	}

	// reader requested reliability decides, writer always offers at least as much
	s := newWriterSession(writer, reader, locator, readerQoS.Reliability == qos.Reliable,
		m.cfg.ReplayDepth, m.cfg.ReplayMaxAge)

	m.wSession[k] = s
	m.lock.Unlock()

	m.stat.OnSession(1)

	m.log.Debug("writer session opened",
		zap.Stringer("writer", writer),
		zap.Stringer("reader", reader),
		zap.Bool("reliable", s.reliable))

	w.lock.Lock()
	defer w.lock.Unlock()

	w.sessions[reader] = s

	if m.cfg.History == nil || readerQoS.Durability < qos.TransientLocal || w.qos.Durability < qos.TransientLocal {
		return nil
	}

	// late joiner catches up with writer history
	now := m.cfg.Clock.Now()
	err := m.cfg.History.ForEach(writer, func(smp persistenceTypes.Sample) error {
		m.apply(s.reader, s.locator, writer, reader, s.send(smp.Payload, smp.Timestamp, now))
		return nil
	})

	if err != nil && err != persistenceTypes.ErrNotFound {
		m.log.Error("couldn't replay writer history", zap.Stringer("writer", writer), zap.Error(err))
	}

	return nil
}

func (m *Manager) openReader(reader, writer guid.GUID, locator string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.closed {
		return ErrClosed
	}

	r, ok := m.readers[reader]
	if !ok {
		return ErrUnknownEndpoint
	}

	k := pairKey{writer: writer, reader: reader}
	if _, ok = m.rSession[k]; ok {
		return ErrAlreadyExists
	}

	m.rSession[k] = newReaderSession(writer, reader, locator, r.qos.Reliability == qos.Reliable,
		m.cfg.ReplayDepth, m.cfg.Deliver)
	m.stat.OnSession(1)

	m.log.Debug("reader session opened", zap.Stringer("writer", writer), zap.Stringer("reader", reader))

	return nil
}

// Close session of local endpoint with remote one. Everything pending is discarded
func (m *Manager) Close(local, remote guid.GUID) bool {
	k := pairKey{writer: local, reader: remote}
	if !local.Entity.Kind.IsWriter() {
		k = pairKey{writer: remote, reader: local}
	}

	m.lock.Lock()

	var closer interface{ close() }
	var w *localWriter

	if s, ok := m.wSession[k]; ok && local.Entity.Kind.IsWriter() {
		delete(m.wSession, k)
		closer = s
		w = m.writers[k.writer]
	} else if s, ok := m.rSession[k]; ok && local.Entity.Kind.IsReader() {
		delete(m.rSession, k)
		closer = s
	}

	m.lock.Unlock()

	if closer == nil {
		return false
	}

	closer.close()

	if w != nil {
		w.lock.Lock()
		if s, ok := w.sessions[k.reader]; ok && s == closer {
			delete(w.sessions, k.reader)
		}
		w.lock.Unlock()
	}
	m.stat.OnSession(-1)

	m.log.Debug("session closed", zap.Stringer("local", local), zap.Stringer("remote", remote))

	return true
}

// Write publishes sample of local writer to every matched reader.
// Returns writer level sequence counting every sample the writer ever
// produced. Each session numbers its samples independently starting at 1,
// so Sample.Sequence seen by reader differs from returned value once the
// session was opened after earlier writes
func (m *Manager) Write(writer guid.GUID, payload []byte) (uint64, error) {
	m.lock.RLock()
	w, ok := m.writers[writer]
	closed := m.closed
	m.lock.RUnlock()

	if closed {
		return 0, ErrClosed
	}

	if !ok {
		return 0, ErrUnknownEndpoint
	}

	now := m.cfg.Clock.Now()
	ts := now.UnixNano()

	w.lock.Lock()
	defer w.lock.Unlock()

	w.seq++

	if m.cfg.History != nil && w.qos.Durability >= qos.TransientLocal {
		if err := m.store(w, persistenceTypes.Sample{Sequence: w.seq, Timestamp: ts, Payload: payload}); err != nil {
			return 0, err
		}
	}

	readers := make([]guid.GUID, 0, len(w.sessions))
	for r := range w.sessions {
		readers = append(readers, r)
	}

	sort.Slice(readers, func(i, j int) bool {
		return readers[i].String() < readers[j].String()
	})

	for _, r := range readers {
		s := w.sessions[r]
		m.apply(s.reader, s.locator, writer, r, s.send(payload, ts, now))
	}

	return w.seq, nil
}

func (m *Manager) store(w *localWriter, smp persistenceTypes.Sample) error {
	if err := m.cfg.History.Store(w.guid, smp); err != nil {
		return err
	}

	keep := 0

	switch {
	case w.qos.History.Kind == qos.KeepLast:
		keep = int(w.qos.History.Depth)
		if keep <= 0 {
			keep = 1
		}
	case w.qos.ResourceLimits.MaxSamples > 0:
		keep = int(w.qos.ResourceLimits.MaxSamples)
	}

	return m.cfg.History.Trim(w.guid, keep)
}

// Heartbeat sends heartbeats of every reliable writer session with
// unacknowledged samples and reports aged out samples as lost
func (m *Manager) Heartbeat() {
	m.lock.RLock()
	sessions := make([]*writerSession, 0, len(m.wSession))
	for _, s := range m.wSession {
		sessions = append(sessions, s)
	}
	m.lock.RUnlock()

	now := m.cfg.Clock.Now()

	for _, s := range sessions {
		m.apply(s.reader, s.locator, s.writer, s.reader, s.heartbeat(now))
	}
}

// Run heartbeat loop until ctx is done or manager closed
func (m *Manager) Run(ctx context.Context) error {
	t := m.cfg.Clock.Ticker(m.cfg.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.ctx.Done():
			return nil
		case <-t.C:
			m.Heartbeat()
		}
	}
}

// HandleMessage routes delivery message to its session.
// Messages of unknown sessions are dropped
func (m *Manager) HandleMessage(msg packet.Provider) error {
	switch p := msg.(type) {
	case *packet.Data:
		s := m.readerSession(p.Writer, p.Reader)
		if s == nil {
			return ErrNotFound
		}

		if n := s.onData(p); n > 0 {
			m.stat.OnDelivered(n)
		}
	case *packet.Heartbeat:
		s := m.readerSession(p.Writer, p.Reader)
		if s == nil {
			return ErrNotFound
		}

		ack, lost, n := s.onHeartbeat(p)
		if n > 0 {
			m.stat.OnDelivered(n)
		}

		m.lost(p.Writer, p.Reader, lost)

		if ack != nil {
			m.emit(p.Writer, s.locator, ack)
		}
	case *packet.Gap:
		s := m.readerSession(p.Writer, p.Reader)
		if s == nil {
			return ErrNotFound
		}

		lost, n := s.onGap(p)
		if n > 0 {
			m.stat.OnDelivered(n)
		}

		m.lost(p.Writer, p.Reader, lost)
	case *packet.AckNack:
		m.lock.RLock()
		s := m.wSession[pairKey{writer: p.Writer, reader: p.Reader}]
		m.lock.RUnlock()

		if s == nil {
			return ErrNotFound
		}

		m.apply(s.reader, s.locator, p.Writer, p.Reader, s.onAckNack(p))
	default:
		return ErrNotDelivery
	}

	return nil
}

func (m *Manager) readerSession(writer, reader guid.GUID) *readerSession {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.rSession[pairKey{writer: writer, reader: reader}]
}

// apply sends outcome of writer session step to remote endpoint and reports anomalies
func (m *Manager) apply(remote guid.GUID, locator string, writer, reader guid.GUID, o outcome) {
	if o.retransmits > 0 {
		m.stat.OnRetransmit(o.retransmits)
	}

	if o.degraded {
		m.stat.OnDegraded()
		m.log.Warn("replay buffer overflow", zap.Stringer("writer", writer), zap.Stringer("reader", reader))
		m.cfg.Listener.OnDegraded(writer, reader)
	}

	m.lost(writer, reader, ranges(o.lost))

	m.emit(remote, locator, o.out...)
}

func (m *Manager) lost(writer, reader guid.GUID, lost []Range) {
	if len(lost) == 0 {
		return
	}

	n := count(lost)

	m.stat.OnLost(n)
	m.log.Debug("samples lost",
		zap.Stringer("writer", writer),
		zap.Stringer("reader", reader),
		zap.Uint64("first", lost[0].First),
		zap.Uint64("count", n))
	m.cfg.Listener.OnSampleLost(writer, reader, lost)
}

// emit sends messages to remote endpoint. Endpoints of local participant
// are served without transport
func (m *Manager) emit(remote guid.GUID, locator string, msgs ...packet.Provider) {
	for _, msg := range msgs {
		if remote.Prefix == m.cfg.Prefix {
			if err := m.HandleMessage(msg); err != nil && err != ErrNotFound {
				m.log.Debug("local dispatch failed", zap.String("type", msg.Desc()), zap.Error(err))
			}

			continue
		}

		buf, err := packet.Encode(msg)
		if err != nil {
			m.log.Error("couldn't encode message", zap.String("type", msg.Desc()), zap.Error(err))
			continue
		}

		if err = m.cfg.Transport.Send(m.ctx, buf, locator); err != nil {
			m.packets.OnSendError()
			m.log.Debug("send failed", zap.String("locator", locator), zap.Error(err))
			continue
		}

		m.packets.OnSent(msg.Type())
	}
}

// Sessions snapshot ordered by writer then reader
func (m *Manager) Sessions() []Info {
	m.lock.RLock()

	res := make([]Info, 0, len(m.wSession)+len(m.rSession))

	ws := make([]*writerSession, 0, len(m.wSession))
	for _, s := range m.wSession {
		ws = append(ws, s)
	}

	rs := make([]*readerSession, 0, len(m.rSession))
	for _, s := range m.rSession {
		rs = append(rs, s)
	}

	m.lock.RUnlock()

	for _, s := range ws {
		res = append(res, s.info())
	}

	for _, s := range rs {
		res = append(res, s.info())
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].Writer != res[j].Writer {
			return res[i].Writer.String() < res[j].Writer.String()
		}

		if res[i].Reader != res[j].Reader {
			return res[i].Reader.String() < res[j].Reader.String()
		}

		return res[i].LocalWriter
	})

	return res
}

// Session snapshot of local endpoint with remote one
func (m *Manager) Session(local, remote guid.GUID) (Info, bool) {
	m.lock.RLock()

	var info func() Info

	if local.Entity.Kind.IsWriter() {
		if s, ok := m.wSession[pairKey{writer: local, reader: remote}]; ok {
			info = s.info
		}
	} else if s, ok := m.rSession[pairKey{writer: remote, reader: local}]; ok {
		info = s.info
	}

	m.lock.RUnlock()

	if info == nil {
		return Info{}, false
	}

	return info(), true
}

// Shutdown closes every session
func (m *Manager) Shutdown() error {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return nil
	}

	m.closed = true

	n := len(m.wSession) + len(m.rSession)

	for k, s := range m.wSession {
		s.close()
		delete(m.wSession, k)
	}

	for k, s := range m.rSession {
		s.close()
		delete(m.rSession, k)
	}

	m.lock.Unlock()

	m.cancel()

	if n > 0 {
		m.stat.OnSession(-n)
	}

	return nil
}
