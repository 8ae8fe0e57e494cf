// Package metrics exposes discovery and delivery counters as prometheus collectors.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/VolantMQ/volantdds/packet"
	"github.com/VolantMQ/volantdds/qos"
)

const namespace = "volantdds"

type bytes struct {
	sent prometheus.Counter
	recv prometheus.Counter
}

type packets struct {
	sent      *prometheus.CounterVec
	recv      *prometheus.CounterVec
	malformed prometheus.Counter
	sendError prometheus.Counter
}

type discovery struct {
	participants      prometheus.Gauge
	endpoints         prometheus.Gauge
	matched           prometheus.Counter
	unmatched         prometheus.Counter
	incompatible      *prometheus.CounterVec
	tombstoneEvicted  prometheus.Counter
	pendingEvicted    prometheus.Counter
	collisions        prometheus.Counter
	staleAnnouncement prometheus.Counter
}

type delivery struct {
	sessions    prometheus.Gauge
	retransmits prometheus.Counter
	lost        prometheus.Counter
	degraded    prometheus.Counter
	delivered   prometheus.Counter
}

type impl struct {
	bytes     bytes
	packets   packets
	discovery discovery
	delivery  delivery
}

var _ Informer = (*impl)(nil)

func counter(subsystem, name, help string, labels prometheus.Labels) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}

func gauge(subsystem, name, help string, labels prometheus.Labels) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}

func counterVec(subsystem, name, help string, labels prometheus.Labels, vars ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, vars)
}

// New creates informer and registers its collectors.
// Participant prefix goes into labels so several participants share registry
func New(reg prometheus.Registerer, labels prometheus.Labels) (Informer, error) {
	m := &impl{
		bytes: bytes{
			sent: counter("transport", "bytes_sent_total", "Bytes handed to transport", labels),
			recv: counter("transport", "bytes_received_total", "Bytes received from transport", labels),
		},
		packets: packets{
			sent:      counterVec("transport", "messages_sent_total", "Messages sent by type", labels, "type"),
			recv:      counterVec("transport", "messages_received_total", "Messages received by type", labels, "type"),
			malformed: counter("transport", "messages_malformed_total", "Inbound messages dropped as malformed", labels),
			sendError: counter("transport", "send_errors_total", "Failed transport sends", labels),
		},
		discovery: discovery{
			participants:      gauge("discovery", "remote_participants", "Known remote participants", labels),
			endpoints:         gauge("discovery", "endpoints", "Known endpoints", labels),
			matched:           counter("discovery", "matches_total", "Writer/reader pairs matched", labels),
			unmatched:         counter("discovery", "unmatches_total", "Writer/reader pairs torn down", labels),
			incompatible:      counterVec("discovery", "incompatible_qos_total", "Incompatible pairs by failed policy", labels, "policy"),
			tombstoneEvicted:  counter("discovery", "tombstones_evicted_total", "Tombstones evicted from bounded table", labels),
			pendingEvicted:    counter("discovery", "pending_evicted_total", "Pending endpoint announcements evicted", labels),
			collisions:        counter("discovery", "prefix_collisions_total", "Prefix collisions detected", labels),
			staleAnnouncement: counter("discovery", "stale_announcements_total", "Announcements ignored as stale or tombstoned", labels),
		},
		delivery: delivery{
			sessions:    gauge("session", "active", "Active delivery sessions", labels),
			retransmits: counter("session", "retransmits_total", "Samples retransmitted", labels),
			lost:        counter("session", "lost_total", "Samples reported lost", labels),
			degraded:    counter("session", "degraded_total", "Replay buffer evictions of unacknowledged samples", labels),
			delivered:   counter("session", "delivered_total", "Samples delivered to readers", labels),
		},
	}

	collectors := []prometheus.Collector{
		m.bytes.sent,
		m.bytes.recv,
		m.packets.sent,
		m.packets.recv,
		m.packets.malformed,
		m.packets.sendError,
		m.discovery.participants,
		m.discovery.endpoints,
		m.discovery.matched,
		m.discovery.unmatched,
		m.discovery.incompatible,
		m.discovery.tombstoneEvicted,
		m.discovery.pendingEvicted,
		m.discovery.collisions,
		m.discovery.staleAnnouncement,
		m.delivery.sessions,
		m.delivery.retransmits,
		m.delivery.lost,
		m.delivery.degraded,
		m.delivery.delivered,
	}

	if reg != nil {
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				return nil, errors.Wrap(err, "metrics: register")
			}
		}
	}

	return m, nil
}

func (m *impl) Bytes() Bytes {
	return &m.bytes
}

func (m *impl) Packets() Packets {
	return &m.packets
}

func (m *impl) Discovery() Discovery {
	return &m.discovery
}

func (m *impl) Delivery() Delivery {
	return &m.delivery
}

func (b *bytes) OnSent(n int) {
	b.sent.Add(float64(n))
}

func (b *bytes) OnRecv(n int) {
	b.recv.Add(float64(n))
}

func (p *packets) OnSent(t packet.Type) {
	p.sent.WithLabelValues(t.Name()).Inc()
}

func (p *packets) OnRecv(t packet.Type) {
	p.recv.WithLabelValues(t.Name()).Inc()
}

func (p *packets) OnMalformed() {
	p.malformed.Inc()
}

func (p *packets) OnSendError() {
	p.sendError.Inc()
}

func (d *discovery) OnParticipant(delta int) {
	d.participants.Add(float64(delta))
}

func (d *discovery) OnEndpoint(delta int) {
	d.endpoints.Add(float64(delta))
}

func (d *discovery) OnMatched() {
	d.matched.Inc()
}

func (d *discovery) OnUnmatched() {
	d.unmatched.Inc()
}

func (d *discovery) OnIncompatible(p qos.PolicyID) {
	d.incompatible.WithLabelValues(p.String()).Inc()
}

func (d *discovery) OnTombstoneEvicted() {
	d.tombstoneEvicted.Inc()
}

func (d *discovery) OnPendingEvicted() {
	d.pendingEvicted.Inc()
}

func (d *discovery) OnCollision() {
	d.collisions.Inc()
}

func (d *discovery) OnStale() {
	d.staleAnnouncement.Inc()
}

func (d *delivery) OnSession(delta int) {
	d.sessions.Add(float64(delta))
}

func (d *delivery) OnRetransmit(n int) {
	d.retransmits.Add(float64(n))
}

func (d *delivery) OnLost(n uint64) {
	d.lost.Add(float64(n))
}

func (d *delivery) OnDegraded() {
	d.degraded.Inc()
}

func (d *delivery) OnDelivered(n int) {
	d.delivered.Add(float64(n))
}

// Nop informer which discards everything
func Nop() Informer {
	m, _ := New(nil, nil)
	return m
}
