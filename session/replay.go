package session

import (
	"sort"
	"time"
)

type replayEntry struct {
	seq     uint64
	at      time.Time
	ts      int64
	payload []byte
}

// replayBuffer keeps unacknowledged samples ordered by sequence,
// bounded by depth and age
type replayBuffer struct {
	depth   int
	maxAge  time.Duration
	entries []replayEntry
}

func newReplayBuffer(depth int, maxAge time.Duration) *replayBuffer {
	return &replayBuffer{
		depth:  depth,
		maxAge: maxAge,
	}
}

// push appends newest entry, evicting oldest one when full
func (b *replayBuffer) push(e replayEntry) (replayEntry, bool) {
	var evicted replayEntry

	full := len(b.entries) >= b.depth
	if full {
		evicted = b.entries[0]
		b.entries = b.entries[1:]
	}

	b.entries = append(b.entries, e)

	return evicted, full
}

func (b *replayBuffer) find(seq uint64) int {
	return sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].seq >= seq
	})
}

func (b *replayBuffer) get(seq uint64) (replayEntry, bool) {
	i := b.find(seq)
	if i < len(b.entries) && b.entries[i].seq == seq {
		return b.entries[i], true
	}

	return replayEntry{}, false
}

func (b *replayBuffer) remove(seq uint64) {
	i := b.find(seq)
	if i < len(b.entries) && b.entries[i].seq == seq {
		b.entries = append(b.entries[:i], b.entries[i+1:]...)
	}
}

// release drops every entry up to and including seq
func (b *replayBuffer) release(seq uint64) {
	i := b.find(seq + 1)
	b.entries = b.entries[i:]
}

// expire drops entries older than max age
func (b *replayBuffer) expire(now time.Time) []replayEntry {
	i := 0
	for i < len(b.entries) && now.Sub(b.entries[i].at) > b.maxAge {
		i++
	}

	if i == 0 {
		return nil
	}

	expired := append([]replayEntry(nil), b.entries[:i]...)
	b.entries = b.entries[i:]

	return expired
}

func (b *replayBuffer) first() (uint64, bool) {
	if len(b.entries) == 0 {
		return 0, false
	}

	return b.entries[0].seq, true
}

func (b *replayBuffer) len() int {
	return len(b.entries)
}
