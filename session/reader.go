package session

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/packet"
)

// maxMissing caps number of sequences requested by single ACKNACK
const maxMissing = 256

// readerSession reader side of single match. Samples are accepted only
// within window after last delivered sequence, older or farther ones are
// dropped and recovered from writer heartbeats
type readerSession struct {
	lock       sync.Mutex
	writer     guid.GUID
	reader     guid.GUID
	locator    string
	reliable   bool
	window     uint64
	contiguous uint64
	highest    uint64
	held       map[uint64]Sample
	lost       map[uint64]struct{}
	deliver    DeliverFunc
	closed     bool
}

func newReaderSession(writer, reader guid.GUID, locator string, reliable bool, window int, deliver DeliverFunc) *readerSession {
	if window <= 0 {
		window = 1
	}

	return &readerSession{
		writer:   writer,
		reader:   reader,
		locator:  locator,
		reliable: reliable,
		window:   uint64(window),
		held:     make(map[uint64]Sample),
		lost:     make(map[uint64]struct{}),
		deliver:  deliver,
	}
}

// inWindow seq must be above contiguous
func (s *readerSession) inWindow(seq uint64) bool {
	return seq-s.contiguous <= s.window
}

// limit highest sequence within window
func (s *readerSession) limit() uint64 {
	if l := s.contiguous + s.window; l > s.contiguous {
		return l
	}

	return math.MaxUint64
}

// onData returns number of samples delivered
func (s *readerSession) onData(msg *packet.Data) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed || msg.Sequence <= s.contiguous {
		return 0
	}

	smp := Sample{
		Writer:    msg.Writer,
		Sequence:  msg.Sequence,
		Timestamp: time.Unix(0, msg.Timestamp),
		Payload:   msg.Payload,
	}

	if !s.reliable {
		// newest wins, late samples are dropped instead of reordered
		s.contiguous = msg.Sequence
		s.highest = msg.Sequence
		s.deliver(s.reader, smp)

		return 1
	}

	if !s.inWindow(msg.Sequence) {
		return 0
	}

	if _, ok := s.held[msg.Sequence]; ok {
		return 0
	}

	if msg.Sequence > s.highest {
		s.highest = msg.Sequence
	}

	delete(s.lost, msg.Sequence)
	s.held[msg.Sequence] = smp

	return s.advance()
}

// advance delivers held samples in order skipping lost sequences
func (s *readerSession) advance() int {
	delivered := 0

	for {
		next := s.contiguous + 1

		if smp, ok := s.held[next]; ok {
			delete(s.held, next)
			s.contiguous = next
			s.deliver(s.reader, smp)
			delivered++

			continue
		}

		if _, ok := s.lost[next]; ok {
			delete(s.lost, next)
			s.contiguous = next

			continue
		}

		return delivered
	}
}

// skipTo moves contiguous to target. Held samples up to target are
// delivered in order, sequences neither held nor already reported are
// returned as lost ranges
func (s *readerSession) skipTo(target uint64) ([]Range, int) {
	keys := make([]uint64, 0, len(s.held)+len(s.lost))

	for seq := range s.held {
		if seq <= target {
			keys = append(keys, seq)
		}
	}

	for seq := range s.lost {
		if seq <= target {
			keys = append(keys, seq)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var lost []Range

	delivered := 0
	next := s.contiguous + 1

	for _, seq := range keys {
		if seq > next {
			lost = append(lost, Range{First: next, Count: seq - next})
		}

		if smp, ok := s.held[seq]; ok {
			delete(s.held, seq)
			s.deliver(s.reader, smp)
			delivered++
		} else {
			delete(s.lost, seq)
		}

		next = seq + 1
	}

	if target >= next {
		lost = append(lost, Range{First: next, Count: target - next + 1})
	}

	s.contiguous = target
	if target > s.highest {
		s.highest = target
	}

	return lost, delivered
}

// onHeartbeat acknowledges received range and requests missing sequences.
// Sequences below advertised First that never arrived are lost
func (s *readerSession) onHeartbeat(msg *packet.Heartbeat) (*packet.AckNack, []Range, int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed || !s.reliable {
		return nil, nil, 0
	}

	var lost []Range

	delivered := 0

	if msg.First > s.contiguous+1 {
		lost, delivered = s.skipTo(msg.First - 1)
	}

	delivered += s.advance()

	upper := msg.Last
	if s.highest > upper {
		upper = s.highest
	}

	if l := s.limit(); upper > l {
		upper = l
	}

	ack := packet.NewAckNack()
	ack.Reader = s.reader
	ack.Writer = s.writer
	ack.Highest = s.contiguous

	for seq := s.contiguous + 1; seq <= upper && seq > s.contiguous && len(ack.Missing) < maxMissing; seq++ {
		if _, ok := s.held[seq]; ok {
			continue
		}

		if _, ok := s.lost[seq]; ok {
			continue
		}

		ack.Missing = append(ack.Missing, seq)
	}

	return ack, lost, delivered
}

// onGap marks sequences the writer will never send. Best effort sessions
// never wait for a sequence thus keep no loss bookkeeping
func (s *readerSession) onGap(msg *packet.Gap) ([]Range, int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed || !s.reliable {
		return nil, 0
	}

	var seqs []uint64

	for _, seq := range msg.Sequences {
		if seq <= s.contiguous || !s.inWindow(seq) {
			continue
		}

		if _, ok := s.held[seq]; ok {
			continue
		}

		if _, ok := s.lost[seq]; ok {
			continue
		}

		s.lost[seq] = struct{}{}
		seqs = append(seqs, seq)

		if seq > s.highest {
			s.highest = seq
		}
	}

	return ranges(seqs), s.advance()
}

func (s *readerSession) close() {
	s.lock.Lock()
	s.closed = true
	s.held = make(map[uint64]Sample)
	s.lost = make(map[uint64]struct{})
	s.lock.Unlock()
}

func (s *readerSession) info() Info {
	s.lock.Lock()
	defer s.lock.Unlock()

	return Info{
		Writer:   s.writer,
		Reader:   s.reader,
		Locator:  s.locator,
		Reliable: s.reliable,
		Last:     s.highest,
		Acked:    s.contiguous,
		Held:     len(s.held),
		Lost:     len(s.lost),
	}
}
