package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/packet"
	"github.com/VolantMQ/volantdds/persistence/mem"
	persistenceTypes "github.com/VolantMQ/volantdds/persistence/types"
	"github.com/VolantMQ/volantdds/qos"
)

var (
	prefixA = guid.Prefix{0x01, 0x56, 0xA}
	prefixB = guid.Prefix{0x01, 0x56, 0xB}
)

// network routes payloads between managers by locator
type network struct {
	lock    sync.Mutex
	nodes   map[string]*Manager
	drop    func(m packet.Provider) bool
	history []packet.Provider
}

func newNetwork() *network {
	return &network{nodes: make(map[string]*Manager)}
}

type port struct {
	net *network
}

func (p *port) Send(_ context.Context, payload []byte, dest string) error {
	m, err := packet.Decode(payload)
	if err != nil {
		return err
	}

	p.net.lock.Lock()
	p.net.history = append(p.net.history, m)
	drop := p.net.drop != nil && p.net.drop(m)
	node := p.net.nodes[dest]
	p.net.lock.Unlock()

	if drop || node == nil {
		return nil
	}

	_ = node.HandleMessage(m)

	return nil
}

func (n *network) sent(t packet.Type) []packet.Provider {
	n.lock.Lock()
	defer n.lock.Unlock()

	var res []packet.Provider
	for _, m := range n.history {
		if m.Type() == t {
			res = append(res, m)
		}
	}

	return res
}

func (n *network) reset() {
	n.lock.Lock()
	n.history = nil
	n.lock.Unlock()
}

type lostEvent struct {
	writer guid.GUID
	reader guid.GUID
	lost   []Range
}

type collector struct {
	lock      sync.Mutex
	delivered map[guid.GUID][]Sample
	lost      []lostEvent
	degraded  int
}

func newCollector() *collector {
	return &collector{delivered: make(map[guid.GUID][]Sample)}
}

func (c *collector) deliver(r guid.GUID, s Sample) {
	c.lock.Lock()
	c.delivered[r] = append(c.delivered[r], s)
	c.lock.Unlock()
}

func (c *collector) OnSampleLost(w, r guid.GUID, lost []Range) {
	c.lock.Lock()
	c.lost = append(c.lost, lostEvent{writer: w, reader: r, lost: lost})
	c.lock.Unlock()
}

func (c *collector) OnDegraded(guid.GUID, guid.GUID) {
	c.lock.Lock()
	c.degraded++
	c.lock.Unlock()
}

func (c *collector) payloads(r guid.GUID) []byte {
	c.lock.Lock()
	defer c.lock.Unlock()

	var res []byte
	for _, s := range c.delivered[r] {
		res = append(res, s.Payload...)
	}

	return res
}

func (c *collector) sequences(r guid.GUID) []uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	var res []uint64
	for _, s := range c.delivered[r] {
		res = append(res, s.Sequence)
	}

	return res
}

type node struct {
	mgr *Manager
	col *collector
}

func newNode(t *testing.T, n *network, prefix guid.Prefix, locator string, clk clock.Clock, opts ...func(c *Config)) *node {
	t.Helper()

	col := newCollector()

	cfg := Config{
		Prefix:    prefix,
		Transport: &port{net: n},
		Listener:  col,
		Deliver:   col.deliver,
		Clock:     clk,
		Log:       zap.NewNop(),
	}

	for _, o := range opts {
		o(&cfg)
	}

	m, err := NewManager(cfg)
	require.NoError(t, err)

	n.lock.Lock()
	n.nodes[locator] = m
	n.lock.Unlock()

	return &node{mgr: m, col: col}
}

func writerOf(p guid.Prefix) guid.GUID {
	return guid.New(p, guid.BuildEntityID(guid.KindUserWriter, false, 1))
}

func readerOf(p guid.Prefix) guid.GUID {
	return guid.New(p, guid.BuildEntityID(guid.KindUserReader, false, 2))
}

func reliableReader() qos.Policies {
	q := qos.DefaultReader()
	q.Reliability = qos.Reliable

	return q
}

// pair connects writer on prefixA with reader on prefixB
func pair(t *testing.T, n *network, wq, rq qos.Policies, clk clock.Clock, opts ...func(c *Config)) (*node, *node, guid.GUID, guid.GUID) {
	t.Helper()

	a := newNode(t, n, prefixA, "a", clk, opts...)
	b := newNode(t, n, prefixB, "b", clk, opts...)

	w := writerOf(prefixA)
	r := readerOf(prefixB)

	require.NoError(t, a.mgr.AddWriter(w, wq))
	require.NoError(t, b.mgr.AddReader(r, rq))
	require.NoError(t, b.mgr.Open(r, w, wq, "a"))
	require.NoError(t, a.mgr.Open(w, r, rq, "b"))

	return a, b, w, r
}

func dataSequences(msgs []packet.Provider) []uint64 {
	var res []uint64
	for _, m := range msgs {
		res = append(res, m.(*packet.Data).Sequence)
	}

	return res
}

func TestReliableRetransmitsMissing(t *testing.T) {
	n := newNetwork()
	a, b, w, r := pair(t, n, qos.DefaultWriter(), reliableReader(), clock.NewMock())

	dropped := map[uint64]bool{3: false, 7: false}
	n.drop = func(m packet.Provider) bool {
		d, ok := m.(*packet.Data)
		if !ok {
			return false
		}

		if done, ok := dropped[d.Sequence]; ok && !done {
			dropped[d.Sequence] = true
			return true
		}

		return false
	}

	for i := 1; i <= 10; i++ {
		_, err := a.mgr.Write(w, []byte{byte(i)})
		require.NoError(t, err)
	}

	require.Equal(t, []uint64{1, 2}, b.col.sequences(r))

	info, ok := a.mgr.Session(w, r)
	require.True(t, ok)
	require.Equal(t, 10, info.Pending)

	n.reset()
	a.mgr.Heartbeat()

	require.Equal(t, []uint64{3, 7}, dataSequences(n.sent(packet.DATA)))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, b.col.payloads(r))

	acks := n.sent(packet.ACKNACK)
	require.Len(t, acks, 1)
	require.Equal(t, uint64(2), acks[0].(*packet.AckNack).Highest)
	require.Equal(t, []uint64{3, 7}, acks[0].(*packet.AckNack).Missing)

	a.mgr.Heartbeat()

	info, _ = a.mgr.Session(w, r)
	require.Equal(t, 0, info.Pending)
	require.Equal(t, uint64(10), info.Acked)

	// nothing left to announce
	n.reset()
	a.mgr.Heartbeat()
	require.Empty(t, n.sent(packet.HEARTBEAT))
	require.Empty(t, a.col.lost)
}

func TestBestEffortNeverRetransmits(t *testing.T) {
	n := newNetwork()
	a, b, w, r := pair(t, n, qos.DefaultWriter(), qos.DefaultReader(), clock.NewMock())

	n.drop = func(m packet.Provider) bool {
		d, ok := m.(*packet.Data)
		return ok && d.Sequence == 3
	}

	for i := 1; i <= 5; i++ {
		_, err := a.mgr.Write(w, []byte{byte(i)})
		require.NoError(t, err)
	}

	require.Equal(t, []uint64{1, 2, 4, 5}, b.col.sequences(r))

	n.reset()
	a.mgr.Heartbeat()
	require.Empty(t, n.history)

	info, _ := a.mgr.Session(w, r)
	require.False(t, info.Reliable)
	require.Equal(t, 0, info.Pending)
}

func TestReplayOverflowDegrades(t *testing.T) {
	n := newNetwork()
	a, b, w, r := pair(t, n, qos.DefaultWriter(), reliableReader(), clock.NewMock(),
		func(c *Config) { c.ReplayDepth = 2 })

	n.drop = func(m packet.Provider) bool {
		return m.Type() == packet.DATA
	}

	for i := 1; i <= 3; i++ {
		_, err := a.mgr.Write(w, []byte{byte(i)})
		require.NoError(t, err)
	}

	require.Equal(t, 1, a.col.degraded)
	require.Equal(t, []lostEvent{{writer: w, reader: r, lost: []Range{{First: 1, Count: 1}}}}, a.col.lost)

	// reader learns about the gap from GAP message
	require.Equal(t, []lostEvent{{writer: w, reader: r, lost: []Range{{First: 1, Count: 1}}}}, b.col.lost)

	info, _ := a.mgr.Session(w, r)
	require.Equal(t, 2, info.Pending)

	n.drop = nil
	a.mgr.Heartbeat()
	require.Equal(t, []uint64{2, 3}, b.col.sequences(r))
}

func TestReplayAgeExpiry(t *testing.T) {
	clk := clock.NewMock()
	n := newNetwork()
	a, b, w, r := pair(t, n, qos.DefaultWriter(), reliableReader(), clk,
		func(c *Config) { c.ReplayMaxAge = time.Second })

	n.drop = func(m packet.Provider) bool {
		d, ok := m.(*packet.Data)
		return ok && d.Sequence == 1
	}

	_, err := a.mgr.Write(w, []byte{1})
	require.NoError(t, err)

	clk.Add(2 * time.Second)

	_, err = a.mgr.Write(w, []byte{2})
	require.NoError(t, err)
	require.Empty(t, b.col.sequences(r))

	a.mgr.Heartbeat()

	require.Equal(t, []lostEvent{{writer: w, reader: r, lost: []Range{{First: 1, Count: 1}}}}, a.col.lost)
	require.Equal(t, []uint64{2}, b.col.sequences(r))
	require.Equal(t, 0, a.col.degraded)
}

func TestWriteSequenceIsWriterLevel(t *testing.T) {
	n := newNetwork()
	a, b, w, r := pair(t, n, qos.DefaultWriter(), reliableReader(), clock.NewMock())

	for i := 1; i <= 2; i++ {
		seq, err := a.mgr.Write(w, []byte{byte(i)})
		require.NoError(t, err)
		require.Equal(t, uint64(i), seq)
	}

	r2 := guid.New(prefixB, guid.BuildEntityID(guid.KindUserReader, false, 3))
	require.NoError(t, b.mgr.AddReader(r2, reliableReader()))
	require.NoError(t, b.mgr.Open(r2, w, qos.DefaultWriter(), "a"))
	require.NoError(t, a.mgr.Open(w, r2, reliableReader(), "b"))

	seq, err := a.mgr.Write(w, []byte{3})
	require.NoError(t, err)
	require.Equal(t, uint64(3), seq)

	require.Equal(t, []uint64{1, 2, 3}, b.col.sequences(r))
	require.Equal(t, []uint64{1}, b.col.sequences(r2))
	require.Equal(t, []byte{3}, b.col.payloads(r2))
}

func TestLateJoinerReceivesHistory(t *testing.T) {
	p, err := mem.New(&persistenceTypes.MemConfig{})
	require.NoError(t, err)

	h, err := p.History()
	require.NoError(t, err)

	wq := qos.DefaultWriter()
	wq.Durability = qos.TransientLocal
	wq.History = qos.History{Kind: qos.KeepLast, Depth: 2}

	rq := reliableReader()
	rq.Durability = qos.TransientLocal

	n := newNetwork()
	a := newNode(t, n, prefixA, "a", clock.NewMock(), func(c *Config) { c.History = h })
	b := newNode(t, n, prefixB, "b", clock.NewMock())

	w := writerOf(prefixA)
	r := readerOf(prefixB)

	require.NoError(t, a.mgr.AddWriter(w, wq))

	for i := 1; i <= 3; i++ {
		seq, err := a.mgr.Write(w, []byte{byte(i)})
		require.NoError(t, err)
		require.Equal(t, uint64(i), seq)
	}

	require.NoError(t, b.mgr.AddReader(r, rq))
	require.NoError(t, b.mgr.Open(r, w, wq, "a"))
	require.NoError(t, a.mgr.Open(w, r, rq, "b"))

	require.Equal(t, []byte{2, 3}, b.col.payloads(r))
	require.Equal(t, []uint64{1, 2}, b.col.sequences(r))

	// volatile reader gets nothing old
	r2 := guid.New(prefixB, guid.BuildEntityID(guid.KindUserReader, false, 3))
	require.NoError(t, b.mgr.AddReader(r2, reliableReader()))
	require.NoError(t, b.mgr.Open(r2, w, wq, "a"))
	require.NoError(t, a.mgr.Open(w, r2, reliableReader(), "b"))
	require.Empty(t, b.col.sequences(r2))

	a.mgr.RemoveEndpoint(w)

	count := 0
	_ = h.ForEach(w, func(persistenceTypes.Sample) error {
		count++
		return nil
	})
	require.Equal(t, 0, count)
}

func TestClosedSessionDropsTraffic(t *testing.T) {
	n := newNetwork()
	a, b, w, r := pair(t, n, qos.DefaultWriter(), reliableReader(), clock.NewMock())

	n.drop = func(m packet.Provider) bool { return m.Type() == packet.DATA }

	_, err := a.mgr.Write(w, []byte{1})
	require.NoError(t, err)

	require.True(t, a.mgr.Close(w, r))
	require.False(t, a.mgr.Close(w, r))

	n.drop = nil
	n.reset()

	a.mgr.Heartbeat()
	require.Empty(t, n.history)

	ack := packet.NewAckNack()
	ack.Writer = w
	ack.Reader = r
	ack.Missing = []uint64{1}
	require.Equal(t, ErrNotFound, a.mgr.HandleMessage(ack))

	require.True(t, b.mgr.Close(r, w))

	d := packet.NewData()
	d.Writer = w
	d.Reader = r
	d.Sequence = 1
	require.Equal(t, ErrNotFound, b.mgr.HandleMessage(d))
	require.Empty(t, b.col.sequences(r))
}

func TestLocalPairBypassesTransport(t *testing.T) {
	n := newNetwork()
	a := newNode(t, n, prefixA, "a", clock.NewMock())

	w := writerOf(prefixA)
	r := readerOf(prefixA)

	require.NoError(t, a.mgr.AddWriter(w, qos.DefaultWriter()))
	require.NoError(t, a.mgr.AddReader(r, reliableReader()))
	require.NoError(t, a.mgr.Open(w, r, reliableReader(), ""))
	require.NoError(t, a.mgr.Open(r, w, qos.DefaultWriter(), ""))

	_, err := a.mgr.Write(w, []byte{1})
	require.NoError(t, err)
	a.mgr.Heartbeat()

	require.Equal(t, []uint64{1}, a.col.sequences(r))
	require.Empty(t, n.history)

	info, _ := a.mgr.Session(w, r)
	require.Equal(t, 0, info.Pending)
	require.Len(t, a.mgr.Sessions(), 2)
}

func TestManagerErrors(t *testing.T) {
	_, err := NewManager(Config{})
	require.Equal(t, ErrInvalidArgs, err)

	n := newNetwork()
	a := newNode(t, n, prefixA, "a", clock.NewMock())

	w := writerOf(prefixA)
	r := readerOf(prefixB)

	require.Equal(t, ErrInvalidArgs, a.mgr.AddWriter(r, qos.DefaultWriter()))
	require.Equal(t, ErrInvalidArgs, a.mgr.AddReader(w, qos.DefaultReader()))
	require.Equal(t, ErrUnknownEndpoint, a.mgr.Open(w, r, qos.DefaultReader(), "b"))

	_, err = a.mgr.Write(w, nil)
	require.Equal(t, ErrUnknownEndpoint, err)

	require.NoError(t, a.mgr.AddWriter(w, qos.DefaultWriter()))
	require.Equal(t, ErrAlreadyExists, a.mgr.AddWriter(w, qos.DefaultWriter()))
	require.NoError(t, a.mgr.Open(w, r, qos.DefaultReader(), "b"))
	require.Equal(t, ErrAlreadyExists, a.mgr.Open(w, r, qos.DefaultReader(), "b"))

	require.Equal(t, ErrNotDelivery, a.mgr.HandleMessage(packet.NewParticipantAnnounce()))

	require.NoError(t, a.mgr.Shutdown())
	require.NoError(t, a.mgr.Shutdown())
	require.Empty(t, a.mgr.Sessions())

	_, err = a.mgr.Write(w, nil)
	require.Equal(t, ErrClosed, err)
}

func TestRunSendsHeartbeats(t *testing.T) {
	clk := clock.NewMock()
	n := newNetwork()
	a, _, w, r := pair(t, n, qos.DefaultWriter(), reliableReader(), clk)

	n.drop = func(m packet.Provider) bool { return m.Type() == packet.DATA }

	_, err := a.mgr.Write(w, []byte{1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)

	go func() {
		done <- a.mgr.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		clk.Add(200 * time.Millisecond)
		return len(n.sent(packet.HEARTBEAT)) > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	info, _ := a.mgr.Session(w, r)
	require.Equal(t, 1, info.Pending)
}

func TestSetQoSAffectsNewSessionsOnly(t *testing.T) {
	n := newNetwork()
	a := newNode(t, n, prefixA, "a", clock.NewMock())

	w := writerOf(prefixA)
	r := readerOf(prefixB)

	require.Equal(t, ErrUnknownEndpoint, a.mgr.SetQoS(w, qos.DefaultWriter()))
	require.NoError(t, a.mgr.AddWriter(w, qos.DefaultWriter()))
	require.NoError(t, a.mgr.Open(w, r, reliableReader(), "b"))

	q := qos.DefaultWriter()
	q.History = qos.History{Kind: qos.KeepLast, Depth: 5}
	require.NoError(t, a.mgr.SetQoS(w, q))

	info, ok := a.mgr.Session(w, r)
	require.True(t, ok)
	require.True(t, info.Reliable)

	a.mgr.RemoveEndpoint(w)
	_, ok = a.mgr.Session(w, r)
	require.False(t, ok)
	require.Equal(t, ErrUnknownEndpoint, a.mgr.SetQoS(w, q))
}
