package metrics

import (
	"github.com/VolantMQ/volantdds/packet"
	"github.com/VolantMQ/volantdds/qos"
)

// Bytes transport traffic
type Bytes interface {
	OnSent(int)
	OnRecv(int)
}

// Packets wire messages by type
type Packets interface {
	OnSent(t packet.Type)
	OnRecv(t packet.Type)
	OnMalformed()
	OnSendError()
}

// Discovery state of discovery engine
type Discovery interface {
	OnParticipant(delta int)
	OnEndpoint(delta int)
	OnMatched()
	OnUnmatched()
	OnIncompatible(p qos.PolicyID)
	OnTombstoneEvicted()
	OnPendingEvicted()
	OnCollision()
	OnStale()
}

// Delivery state of reliable sessions
type Delivery interface {
	OnSession(delta int)
	OnRetransmit(n int)
	OnLost(n uint64)
	OnDegraded()
	OnDelivered(n int)
}

// Informer groups every metrics family
type Informer interface {
	Bytes() Bytes
	Packets() Packets
	Discovery() Discovery
	Delivery() Delivery
}
