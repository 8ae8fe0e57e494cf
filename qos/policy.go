// Package qos defines the quality of service policies exchanged during
// discovery and the offered/requested compatibility rules between writers
// and readers.
package qos

import (
	"time"
)

// PolicyID identifies policy
type PolicyID uint32

// Policy identifiers as numbered by DDS
const (
	PolicyInvalid          PolicyID = 0
	PolicyUserData         PolicyID = 1
	PolicyDurability       PolicyID = 2
	PolicyPresentation     PolicyID = 3
	PolicyDeadline         PolicyID = 4
	PolicyLatencyBudget    PolicyID = 5
	PolicyOwnership        PolicyID = 6
	PolicyLiveliness       PolicyID = 8
	PolicyPartition        PolicyID = 10
	PolicyReliability      PolicyID = 11
	PolicyDestinationOrder PolicyID = 12
	PolicyHistory          PolicyID = 13
	PolicyResourceLimits   PolicyID = 14
	PolicyLifespan         PolicyID = 21
)

// String get string representation of policy id
func (p PolicyID) String() string {
	switch p {
	case PolicyUserData:
		return "USER_DATA"
	case PolicyDurability:
		return "DURABILITY"
	case PolicyPresentation:
		return "PRESENTATION"
	case PolicyDeadline:
		return "DEADLINE"
	case PolicyLatencyBudget:
		return "LATENCY_BUDGET"
	case PolicyOwnership:
		return "OWNERSHIP"
	case PolicyLiveliness:
		return "LIVELINESS"
	case PolicyPartition:
		return "PARTITION"
	case PolicyReliability:
		return "RELIABILITY"
	case PolicyDestinationOrder:
		return "DESTINATION_ORDER"
	case PolicyHistory:
		return "HISTORY"
	case PolicyResourceLimits:
		return "RESOURCE_LIMITS"
	case PolicyLifespan:
		return "LIFESPAN"
	default:
		return "INVALID"
	}
}

// ReliabilityKind ordered BestEffort < Reliable
type ReliabilityKind byte

// nolint: golint
const (
	BestEffort ReliabilityKind = iota
	Reliable
)

func (k ReliabilityKind) String() string {
	switch k {
	case BestEffort:
		return "BEST_EFFORT"
	case Reliable:
		return "RELIABLE"
	default:
		return "INVALID"
	}
}

// DurabilityKind ordered Volatile < TransientLocal < Transient < Persistent
type DurabilityKind byte

// nolint: golint
const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

func (k DurabilityKind) String() string {
	switch k {
	case Volatile:
		return "VOLATILE"
	case TransientLocal:
		return "TRANSIENT_LOCAL"
	case Transient:
		return "TRANSIENT"
	case Persistent:
		return "PERSISTENT"
	default:
		return "INVALID"
	}
}

// AccessScope ordered Instance < Topic < Group
type AccessScope byte

// nolint: golint
const (
	ScopeInstance AccessScope = iota
	ScopeTopic
	ScopeGroup
)

// LivelinessKind ordered Automatic < ManualByParticipant < ManualByTopic
type LivelinessKind byte

// nolint: golint
const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

// OwnershipKind must be equal on both sides
type OwnershipKind byte

// nolint: golint
const (
	Shared OwnershipKind = iota
	Exclusive
)

// DestinationOrderKind ordered ByReception < BySource
type DestinationOrderKind byte

// nolint: golint
const (
	ByReceptionTimestamp DestinationOrderKind = iota
	BySourceTimestamp
)

// HistoryKind of writer/reader cache
type HistoryKind byte

// nolint: golint
const (
	KeepLast HistoryKind = iota
	KeepAll
)

// Presentation policy
type Presentation struct {
	Scope    AccessScope
	Coherent bool
	Ordered  bool
}

// Liveliness policy. Zero lease means infinite
type Liveliness struct {
	Kind  LivelinessKind
	Lease time.Duration
}

// History policy
type History struct {
	Kind  HistoryKind
	Depth int32
}

// ResourceLimits policy. Non positive values mean unlimited
type ResourceLimits struct {
	MaxSamples int32
}

// Policies full set of policies of writer or reader
// Zero durations of Deadline, LatencyBudget and Lifespan mean infinite
type Policies struct {
	Reliability      ReliabilityKind
	Durability       DurabilityKind
	Presentation     Presentation
	Deadline         time.Duration
	LatencyBudget    time.Duration
	Liveliness       Liveliness
	Ownership        OwnershipKind
	DestinationOrder DestinationOrderKind
	Partition        []string
	History          History
	ResourceLimits   ResourceLimits
	Lifespan         time.Duration
	UserData         []byte
}

// DefaultWriter default policies of data writer
func DefaultWriter() Policies {
	return Policies{
		Reliability: Reliable,
		Durability:  Volatile,
		History:     History{Kind: KeepLast, Depth: 1},
	}
}

// DefaultReader default policies of data reader
func DefaultReader() Policies {
	return Policies{
		Reliability: BestEffort,
		Durability:  Volatile,
		History:     History{Kind: KeepLast, Depth: 1},
	}
}

// Equal deep comparison of two policy sets
func (p *Policies) Equal(o *Policies) bool {
	if p.Reliability != o.Reliability ||
		p.Durability != o.Durability ||
		p.Presentation != o.Presentation ||
		p.Deadline != o.Deadline ||
		p.LatencyBudget != o.LatencyBudget ||
		p.Liveliness != o.Liveliness ||
		p.Ownership != o.Ownership ||
		p.DestinationOrder != o.DestinationOrder ||
		p.History != o.History ||
		p.ResourceLimits != o.ResourceLimits ||
		p.Lifespan != o.Lifespan {
		return false
	}

	if len(p.Partition) != len(o.Partition) || len(p.UserData) != len(o.UserData) {
		return false
	}

	for i := range p.Partition {
		if p.Partition[i] != o.Partition[i] {
			return false
		}
	}

	for i := range p.UserData {
		if p.UserData[i] != o.UserData[i] {
			return false
		}
	}

	return true
}

// Clone deep copy of policy set
func (p Policies) Clone() Policies {
	c := p
	if p.Partition != nil {
		c.Partition = append([]string(nil), p.Partition...)
	}

	if p.UserData != nil {
		c.UserData = append([]byte(nil), p.UserData...)
	}

	return c
}
