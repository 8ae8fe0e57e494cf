package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/volantdds/packet"
	"github.com/VolantMQ/volantdds/qos"
)

func TestInformer(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg, prometheus.Labels{"participant": "p1"})
	require.NoError(t, err)

	m.Packets().OnRecv(packet.DATA)
	m.Packets().OnRecv(packet.DATA)
	m.Packets().OnMalformed()
	m.Discovery().OnParticipant(1)
	m.Discovery().OnParticipant(1)
	m.Discovery().OnParticipant(-1)
	m.Discovery().OnIncompatible(qos.PolicyReliability)
	m.Delivery().OnLost(2)

	impl := m.(*impl)
	require.Equal(t, float64(2), testutil.ToFloat64(impl.packets.recv.WithLabelValues("DATA")))
	require.Equal(t, float64(1), testutil.ToFloat64(impl.packets.malformed))
	require.Equal(t, float64(1), testutil.ToFloat64(impl.discovery.participants))
	require.Equal(t, float64(1), testutil.ToFloat64(impl.discovery.incompatible.WithLabelValues("RELIABILITY")))
	require.Equal(t, float64(2), testutil.ToFloat64(impl.delivery.lost))

	// same labels twice must fail
	_, err = New(reg, prometheus.Labels{"participant": "p1"})
	require.Error(t, err)

	_, err = New(reg, prometheus.Labels{"participant": "p2"})
	require.NoError(t, err)
}

func TestNop(t *testing.T) {
	m := Nop()
	m.Bytes().OnSent(10)
	m.Delivery().OnDegraded()
}
