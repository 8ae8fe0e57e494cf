package session

import (
	"sort"
	"sync"
	"time"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/packet"
)

// writerSession writer side of single match
type writerSession struct {
	lock     sync.Mutex
	writer   guid.GUID
	reader   guid.GUID
	locator  string
	reliable bool
	last     uint64
	acked    uint64
	pending  map[uint64]struct{}
	replay   *replayBuffer
	closed   bool
}

// outcome of session step, applied by manager outside session lock
type outcome struct {
	out         []packet.Provider
	lost        []uint64
	retransmits int
	degraded    bool
}

func newWriterSession(writer, reader guid.GUID, locator string, reliable bool, depth int, maxAge time.Duration) *writerSession {
	return &writerSession{
		writer:   writer,
		reader:   reader,
		locator:  locator,
		reliable: reliable,
		pending:  make(map[uint64]struct{}),
		replay:   newReplayBuffer(depth, maxAge),
	}
}

func (s *writerSession) data(seq uint64, ts int64, payload []byte) *packet.Data {
	m := packet.NewData()
	m.Writer = s.writer
	m.Reader = s.reader
	m.Sequence = seq
	m.Timestamp = ts
	m.Payload = payload

	return m
}

func (s *writerSession) gap(seqs []uint64) *packet.Gap {
	m := packet.NewGap()
	m.Writer = s.writer
	m.Reader = s.reader
	m.Sequences = seqs

	return m
}

// send assigns next sequence to payload
func (s *writerSession) send(payload []byte, ts int64, now time.Time) outcome {
	s.lock.Lock()
	defer s.lock.Unlock()

	var res outcome

	if s.closed {
		return res
	}

	s.last++
	res.out = append(res.out, s.data(s.last, ts, payload))

	if !s.reliable {
		return res
	}

	s.pending[s.last] = struct{}{}

	if evicted, ok := s.replay.push(replayEntry{seq: s.last, at: now, ts: ts, payload: payload}); ok {
		delete(s.pending, evicted.seq)
		res.lost = append(res.lost, evicted.seq)
		res.degraded = true
		res.out = append(res.out, s.gap(res.lost))
	}

	return res
}

// onAckNack drops acknowledged samples, retransmits missing ones still
// held in replay buffer and declares others lost
func (s *writerSession) onAckNack(msg *packet.AckNack) outcome {
	s.lock.Lock()
	defer s.lock.Unlock()

	var res outcome

	if s.closed || !s.reliable {
		return res
	}

	highest := msg.Highest
	if highest > s.last {
		highest = s.last
	}

	if highest > s.acked {
		s.acked = highest
	}

	s.replay.release(highest)

	missing := make(map[uint64]struct{}, len(msg.Missing))
	var maxMissing uint64

	for _, m := range msg.Missing {
		missing[m] = struct{}{}
		if m > maxMissing {
			maxMissing = m
		}
	}

	for seq := range s.pending {
		if seq <= highest {
			delete(s.pending, seq)
			continue
		}

		// reader reported everything below its highest missing sequence
		if _, ok := missing[seq]; !ok && seq < maxMissing {
			delete(s.pending, seq)
			s.replay.remove(seq)
		}
	}

	requested := make([]uint64, 0, len(missing))
	for m := range missing {
		if m <= s.last {
			requested = append(requested, m)
		}
	}

	sort.Slice(requested, func(i, j int) bool { return requested[i] < requested[j] })

	var gaps []uint64

	for _, seq := range requested {
		if e, ok := s.replay.get(seq); ok {
			res.out = append(res.out, s.data(seq, e.ts, e.payload))
			res.retransmits++
			continue
		}

		gaps = append(gaps, seq)

		if _, ok := s.pending[seq]; ok {
			delete(s.pending, seq)
			res.lost = append(res.lost, seq)
		}
	}

	if len(gaps) > 0 {
		res.out = append(res.out, s.gap(gaps))
	}

	return res
}

// heartbeat expires aged samples and advertises available range while
// anything is unacknowledged
func (s *writerSession) heartbeat(now time.Time) outcome {
	s.lock.Lock()
	defer s.lock.Unlock()

	var res outcome

	if s.closed || !s.reliable {
		return res
	}

	for _, e := range s.replay.expire(now) {
		if _, ok := s.pending[e.seq]; ok {
			delete(s.pending, e.seq)
			res.lost = append(res.lost, e.seq)
		}
	}

	if len(res.lost) > 0 {
		res.out = append(res.out, s.gap(res.lost))
	}

	if len(s.pending) == 0 {
		return res
	}

	hb := packet.NewHeartbeat()
	hb.Writer = s.writer
	hb.Reader = s.reader
	hb.Last = s.last
	hb.First = s.last + 1

	if first, ok := s.replay.first(); ok {
		hb.First = first
	}

	res.out = append(res.out, hb)

	return res
}

func (s *writerSession) close() {
	s.lock.Lock()
	s.closed = true
	s.pending = make(map[uint64]struct{})
	s.replay = newReplayBuffer(s.replay.depth, s.replay.maxAge)
	s.lock.Unlock()
}

func (s *writerSession) info() Info {
	s.lock.Lock()
	defer s.lock.Unlock()

	return Info{
		Writer:      s.writer,
		Reader:      s.reader,
		Locator:     s.locator,
		Reliable:    s.reliable,
		LocalWriter: true,
		Last:        s.last,
		Acked:       s.acked,
		Pending:     len(s.pending),
	}
}
