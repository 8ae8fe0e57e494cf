package systree

import (
	"sync/atomic"
)

type stat struct {
	curr *dynamicValueInteger
	max  *dynamicValueInteger
}

type matchStat struct {
	stat
}

type livelinessStat struct {
	stat
}

func newStat(topicPrefix string, values *[]DynamicValue) stat {
	s := stat{
		curr: newDynamicValueInteger(topicPrefix + "/current"),
		max:  newDynamicValueInteger(topicPrefix + "/max"),
	}

	*values = append(*values, s.max)
	*values = append(*values, s.curr)

	return s
}

func newMatchStat(topicPrefix string, values *[]DynamicValue) matchStat {
	return matchStat{
		stat: newStat(topicPrefix+"/matches", values),
	}
}

func newLivelinessStat(topicPrefix string, values *[]DynamicValue) livelinessStat {
	return livelinessStat{
		stat: newStat(topicPrefix+"/alive", values),
	}
}

func (t *stat) inc() {
	newVal := atomic.AddUint64(&t.curr.val, 1)
	for {
		old := atomic.LoadUint64(&t.max.val)
		if old >= newVal || atomic.CompareAndSwapUint64(&t.max.val, old, newVal) {
			return
		}
	}
}

func (t *stat) dec() {
	for {
		old := atomic.LoadUint64(&t.curr.val)
		if old == 0 || atomic.CompareAndSwapUint64(&t.curr.val, old, old-1) {
			return
		}
	}
}

// Current value of counter
func (t *stat) Current() uint64 {
	return atomic.LoadUint64(&t.curr.val)
}

// Max value counter ever reached
func (t *stat) Max() uint64 {
	return atomic.LoadUint64(&t.max.val)
}

// Matched add match to statistic
func (t *matchStat) Matched() {
	t.inc()
}

// Unmatched remove match from statistic
func (t *matchStat) Unmatched() {
	t.dec()
}

// Alive remote entity became alive
func (t *livelinessStat) Alive() {
	t.inc()
}

// Lost remote entity lost its liveliness
func (t *livelinessStat) Lost() {
	t.dec()
}
