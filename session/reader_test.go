package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/volantdds/packet"
)

func newTestReader(reliable bool, window int) (*readerSession, *collector) {
	col := newCollector()

	return newReaderSession(writerOf(prefixA), readerOf(prefixB), "a", reliable, window, col.deliver), col
}

func dataMsg(seq uint64) *packet.Data {
	m := packet.NewData()
	m.Writer = writerOf(prefixA)
	m.Reader = readerOf(prefixB)
	m.Sequence = seq
	m.Payload = []byte{byte(seq)}

	return m
}

func heartbeatMsg(first, last uint64) *packet.Heartbeat {
	m := packet.NewHeartbeat()
	m.Writer = writerOf(prefixA)
	m.Reader = readerOf(prefixB)
	m.First = first
	m.Last = last

	return m
}

func gapMsg(seqs ...uint64) *packet.Gap {
	m := packet.NewGap()
	m.Writer = writerOf(prefixA)
	m.Reader = readerOf(prefixB)
	m.Sequences = seqs

	return m
}

func TestReaderHeartbeatFarAheadSkipsAsRange(t *testing.T) {
	s, col := newTestReader(true, 16)

	const first = uint64(1) << 40

	ack, lost, delivered := s.onHeartbeat(heartbeatMsg(first, first))
	require.Equal(t, 0, delivered)
	require.Equal(t, []Range{{First: 1, Count: first - 1}}, lost)
	require.NotNil(t, ack)
	require.Equal(t, first-1, ack.Highest)
	require.Equal(t, []uint64{first}, ack.Missing)

	info := s.info()
	require.Equal(t, first-1, info.Acked)
	require.Equal(t, 0, info.Held)
	require.Equal(t, 0, info.Lost)
	require.Empty(t, col.sequences(s.reader))
}

func TestReaderHeartbeatDeliversHeldBeforeSkip(t *testing.T) {
	s, col := newTestReader(true, 16)

	require.Equal(t, 0, s.onData(dataMsg(3)))
	require.Equal(t, 0, s.onData(dataMsg(6)))

	_, lost, delivered := s.onHeartbeat(heartbeatMsg(5, 8))
	require.Equal(t, 1, delivered)
	require.Equal(t, []Range{{First: 1, Count: 2}, {First: 4, Count: 1}}, lost)
	require.Equal(t, []uint64{3}, col.sequences(s.reader))

	// 5 still expected, 6 held
	info := s.info()
	require.Equal(t, uint64(4), info.Acked)
	require.Equal(t, 1, info.Held)

	require.Equal(t, 2, s.onData(dataMsg(5)))
	require.Equal(t, []uint64{3, 5, 6}, col.sequences(s.reader))
}

func TestReaderDropsDataOutsideWindow(t *testing.T) {
	s, col := newTestReader(true, 4)

	require.Equal(t, 0, s.onData(dataMsg(1000)))
	require.Equal(t, 0, s.onData(dataMsg(5)))
	require.Equal(t, 0, s.onData(dataMsg(4)))
	require.Equal(t, 0, s.onData(dataMsg(4)))

	info := s.info()
	require.Equal(t, 1, info.Held)
	require.Equal(t, uint64(4), info.Last)

	ack, lost, _ := s.onHeartbeat(heartbeatMsg(1, 1000))
	require.Empty(t, lost)
	// requests are capped by window
	require.Equal(t, []uint64{1, 2, 3}, ack.Missing)

	for seq := uint64(1); seq <= 3; seq++ {
		s.onData(dataMsg(seq))
	}

	require.Equal(t, []uint64{1, 2, 3, 4}, col.sequences(s.reader))
	require.Equal(t, 0, s.info().Held)
}

func TestReaderGapRecordsOnlyWithinWindow(t *testing.T) {
	s, _ := newTestReader(true, 4)

	seqs := make([]uint64, 0, 10000)
	for seq := uint64(2); seq < 10002; seq++ {
		seqs = append(seqs, seq)
	}

	lost, delivered := s.onGap(gapMsg(seqs...))
	require.Equal(t, 0, delivered)
	require.Equal(t, []Range{{First: 2, Count: 3}}, lost)
	require.Equal(t, 3, s.info().Lost)

	// sequence 1 arriving releases everything recorded as lost
	require.Equal(t, 1, s.onData(dataMsg(1)))

	info := s.info()
	require.Equal(t, uint64(4), info.Acked)
	require.Equal(t, 0, info.Lost)
}

func TestReaderBestEffortIgnoresGap(t *testing.T) {
	s, col := newTestReader(false, 4)

	lost, delivered := s.onGap(gapMsg(1, 2, 3))
	require.Empty(t, lost)
	require.Equal(t, 0, delivered)
	require.Equal(t, 0, s.info().Lost)

	require.Equal(t, 1, s.onData(dataMsg(7)))
	require.Equal(t, 0, s.onData(dataMsg(5)))
	require.Equal(t, []uint64{7}, col.sequences(s.reader))

	ack, lost, _ := s.onHeartbeat(heartbeatMsg(100, 200))
	require.Nil(t, ack)
	require.Empty(t, lost)
}

func TestRangesCoalesce(t *testing.T) {
	require.Nil(t, ranges(nil))
	require.Equal(t, []Range{{First: 1, Count: 3}, {First: 7, Count: 1}, {First: 9, Count: 2}},
		ranges([]uint64{10, 2, 1, 3, 7, 9, 3}))
	require.Equal(t, uint64(6), count([]Range{{First: 1, Count: 3}, {First: 7, Count: 1}, {First: 9, Count: 2}}))
	require.Equal(t, uint64(9), Range{First: 7, Count: 3}.Last())
}
