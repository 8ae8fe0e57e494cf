// Package session implements per-match delivery sessions between a writer
// and a reader: sequencing, replay buffer, heartbeats, acknowledgements and
// loss reporting.
package session

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/metrics"
	persistenceTypes "github.com/VolantMQ/volantdds/persistence/types"
	"github.com/VolantMQ/volantdds/types"
)

// nolint: golint
var (
	ErrInvalidArgs     = errors.New("session: invalid arguments")
	ErrUnknownEndpoint = errors.New("session: unknown local endpoint")
	ErrAlreadyExists   = errors.New("session: already exists")
	ErrNotFound        = errors.New("session: not found")
	ErrNotDelivery     = errors.New("session: not a delivery message")
	ErrClosed          = errors.New("session: manager closed")
)

// Sample delivered to local reader
type Sample struct {
	Writer    guid.GUID
	Sequence  uint64
	Timestamp time.Time
	Payload   []byte
}

// Range of consecutive sequences starting at First
type Range struct {
	First uint64
	Count uint64
}

// Last sequence of range
func (r Range) Last() uint64 {
	return r.First + r.Count - 1
}

// DeliveryListener receives delivery anomalies
type DeliveryListener interface {
	// OnSampleLost ascending ranges of pair that will never be delivered
	OnSampleLost(writer, reader guid.GUID, lost []Range)

	// OnDegraded replay buffer overflowed with unacknowledged samples
	OnDegraded(writer, reader guid.GUID)
}

// DeliverFunc receives in-order samples of local reader.
// Invoked under session lock, must not block or call back into manager
type DeliverFunc func(reader guid.GUID, s Sample)

// Sender outbound side of transport
type Sender interface {
	Send(ctx context.Context, payload []byte, dest string) error
}

// Config of session manager
type Config struct {
	Prefix            guid.Prefix
	Transport         Sender
	History           persistenceTypes.History
	Listener          DeliveryListener
	Deliver           DeliverFunc
	Clock             clock.Clock
	HeartbeatInterval time.Duration
	ReplayDepth       int
	ReplayMaxAge      time.Duration
	Metrics           metrics.Informer
	Log               *zap.Logger
}

type nopListener struct{}

func (nopListener) OnSampleLost(guid.GUID, guid.GUID, []Range) {}
func (nopListener) OnDegraded(guid.GUID, guid.GUID)             {}

func (c *Config) setDefaults() error {
	if c.Transport == nil || c.Prefix.IsZero() {
		return ErrInvalidArgs
	}

	if c.Listener == nil {
		c.Listener = nopListener{}
	}

	if c.Deliver == nil {
		c.Deliver = func(guid.GUID, Sample) {}
	}

	if c.Clock == nil {
		c.Clock = clock.New()
	}

	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = types.DefaultHeartbeatInterval
	}

	if c.ReplayDepth <= 0 {
		c.ReplayDepth = types.DefaultReplayDepth
	}

	if c.ReplayMaxAge <= 0 {
		c.ReplayMaxAge = types.DefaultReplayMaxAge
	}

	if c.Metrics == nil {
		c.Metrics = metrics.Nop()
	}

	return nil
}

// ranges coalesces sequences into ascending ranges
func ranges(seqs []uint64) []Range {
	if len(seqs) == 0 {
		return nil
	}

	sorted := append([]uint64(nil), seqs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var res []Range

	for _, s := range sorted {
		if n := len(res); n > 0 {
			last := res[n-1].Last()
			if s == last {
				continue
			}

			if s == last+1 {
				res[n-1].Count++
				continue
			}
		}

		res = append(res, Range{First: s, Count: 1})
	}

	return res
}

func count(lost []Range) uint64 {
	var n uint64
	for _, r := range lost {
		n += r.Count
	}

	return n
}

// Info snapshot of single session
type Info struct {
	Writer   guid.GUID
	Reader   guid.GUID
	Locator  string
	Reliable bool
	// LocalWriter session lives on writer side
	LocalWriter bool
	// Last sequence sent by writer side or highest seen by reader side
	Last uint64
	// Acked highest contiguously acknowledged (writer) or delivered (reader) sequence
	Acked   uint64
	Pending int
	Held    int
	Lost    int
}
