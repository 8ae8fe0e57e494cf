package systree

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// DynamicValue interface describes states of the dynamic value
type DynamicValue interface {
	Topic() string
	// Value rendered on every request and on every periodic publish
	Value() []byte
}

type dynamicValue struct {
	topic    string
	getValue func() []byte
}

type dynamicValueInteger struct {
	dynamicValue
	val uint64
}

type dynamicValueUpTime struct {
	dynamicValue
	clk       clock.Clock
	startTime time.Time
}

type dynamicValueCurrentTime struct {
	dynamicValue
	clk clock.Clock
}

type dynamicValueJSON struct {
	dynamicValue
	get func() interface{}
}

type staticValue struct {
	topic   string
	payload []byte
}

func newDynamicValueInteger(topic string) *dynamicValueInteger {
	v := &dynamicValueInteger{}
	v.topic = topic
	v.getValue = v.get

	return v
}

func newDynamicValueUpTime(topic string, clk clock.Clock) *dynamicValueUpTime {
	v := &dynamicValueUpTime{
		clk:       clk,
		startTime: clk.Now(),
	}

	v.topic = topic
	v.getValue = v.get

	return v
}

func newDynamicValueCurrentTime(topic string, clk clock.Clock) *dynamicValueCurrentTime {
	v := &dynamicValueCurrentTime{clk: clk}
	v.topic = topic
	v.getValue = v.get

	return v
}

func newDynamicValueJSON(topic string, get func() interface{}) *dynamicValueJSON {
	v := &dynamicValueJSON{get: get}
	v.topic = topic
	v.getValue = v.marshal

	return v
}

func newStaticValue(topic string, payload []byte) *staticValue {
	return &staticValue{topic: topic, payload: payload}
}

func (v *dynamicValueInteger) get() []byte {
	val := strconv.FormatUint(atomic.LoadUint64(&v.val), 10)
	return []byte(val)
}

func (v *dynamicValueUpTime) get() []byte {
	diff := v.clk.Since(v.startTime)

	return []byte(diff.String())
}

func (v *dynamicValueCurrentTime) get() []byte {
	val := v.clk.Now().UTC().Format(time.RFC3339)
	return []byte(val)
}

func (v *dynamicValueJSON) marshal() []byte {
	out, err := json.Marshal(v.get())
	if err != nil {
		return []byte("data error")
	}

	return out
}

func (m *dynamicValue) Topic() string {
	return m.topic
}

func (m *dynamicValue) Value() []byte {
	return m.getValue()
}

func (s *staticValue) Topic() string {
	return s.topic
}

func (s *staticValue) Value() []byte {
	return s.payload
}
