// Copyright (c) 2017 The VolantMQ Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package packet

import (
	"github.com/VolantMQ/volantdds/qos"
)

func encodePolicies(w *writer, p *qos.Policies) {
	w.byte(byte(p.Reliability))
	w.byte(byte(p.Durability))
	w.byte(byte(p.Presentation.Scope))
	w.bool(p.Presentation.Coherent)
	w.bool(p.Presentation.Ordered)
	w.duration(p.Deadline)
	w.duration(p.LatencyBudget)
	w.byte(byte(p.Liveliness.Kind))
	w.duration(p.Liveliness.Lease)
	w.byte(byte(p.Ownership))
	w.byte(byte(p.DestinationOrder))
	w.strings(p.Partition)
	w.byte(byte(p.History.Kind))
	w.uint32(uint32(p.History.Depth))
	w.uint32(uint32(p.ResourceLimits.MaxSamples))
	w.duration(p.Lifespan)
	w.bytes(p.UserData)
}

func decodePolicies(r *reader) qos.Policies {
	var p qos.Policies

	p.Reliability = qos.ReliabilityKind(r.byte())
	p.Durability = qos.DurabilityKind(r.byte())
	p.Presentation.Scope = qos.AccessScope(r.byte())
	p.Presentation.Coherent = r.bool()
	p.Presentation.Ordered = r.bool()
	p.Deadline = r.duration()
	p.LatencyBudget = r.duration()
	p.Liveliness.Kind = qos.LivelinessKind(r.byte())
	p.Liveliness.Lease = r.duration()
	p.Ownership = qos.OwnershipKind(r.byte())
	p.DestinationOrder = qos.DestinationOrderKind(r.byte())
	p.Partition = r.strings()
	p.History.Kind = qos.HistoryKind(r.byte())
	p.History.Depth = int32(r.uint32())
	p.ResourceLimits.MaxSamples = int32(r.uint32())
	p.Lifespan = r.duration()
	p.UserData = r.bytes()

	return p
}

func validatePolicies(p *qos.Policies) error {
	if p.Reliability > qos.Reliable ||
		p.Durability > qos.Persistent ||
		p.Presentation.Scope > qos.ScopeGroup ||
		p.Liveliness.Kind > qos.ManualByTopic ||
		p.Ownership > qos.Exclusive ||
		p.DestinationOrder > qos.BySourceTimestamp ||
		p.History.Kind > qos.KeepAll ||
		p.Deadline < 0 || p.LatencyBudget < 0 || p.Liveliness.Lease < 0 || p.Lifespan < 0 {
		return ErrInvalidQoS
	}

	if len(p.Partition) > MaxElements {
		return ErrTooManyElements
	}

	return nil
}
