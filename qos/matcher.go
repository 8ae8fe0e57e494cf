package qos

import (
	"path"
	"strings"
	"time"
)

// Verdict outcome of writer/reader evaluation
type Verdict struct {
	Compatible bool
	Failed     PolicyID
}

// Compatible verdict
var Compatible = Verdict{Compatible: true}

// Incompatible verdict with failed policy
func Incompatible(p PolicyID) Verdict {
	return Verdict{Failed: p}
}

func (v Verdict) String() string {
	if v.Compatible {
		return "COMPATIBLE"
	}

	return "INCOMPATIBLE(" + v.Failed.String() + ")"
}

type check struct {
	id PolicyID
	ok func(offered, requested *Policies) bool
}

// checks are evaluated in this order, first failure is reported
var checks = []check{
	{PolicyReliability, reliabilityOk},
	{PolicyDurability, durabilityOk},
	{PolicyPresentation, presentationOk},
	{PolicyDeadline, deadlineOk},
	{PolicyLatencyBudget, latencyOk},
	{PolicyLiveliness, livelinessOk},
	{PolicyOwnership, ownershipOk},
	{PolicyDestinationOrder, destinationOrderOk},
	{PolicyPartition, partitionOk},
}

// Evaluate compatibility of writer offered policies with reader requested ones
func Evaluate(writer, reader *Policies) Verdict {
	for _, c := range checks {
		if !c.ok(writer, reader) {
			return Incompatible(c.id)
		}
	}

	return Compatible
}

// EvaluateAll reports every failed policy in check order.
// Used for diagnostics only, matching relies on Evaluate
func EvaluateAll(writer, reader *Policies) []PolicyID {
	var failed []PolicyID

	for _, c := range checks {
		if !c.ok(writer, reader) {
			failed = append(failed, c.id)
		}
	}

	return failed
}

func reliabilityOk(o, r *Policies) bool {
	return o.Reliability >= r.Reliability
}

func durabilityOk(o, r *Policies) bool {
	return o.Durability >= r.Durability
}

func presentationOk(o, r *Policies) bool {
	if o.Presentation.Scope < r.Presentation.Scope {
		return false
	}

	if r.Presentation.Coherent && !o.Presentation.Coherent {
		return false
	}

	return !r.Presentation.Ordered || o.Presentation.Ordered
}

// infinite zero duration is the weakest requested and the weakest offered value
func periodOk(offered, requested time.Duration) bool {
	if requested == 0 {
		return true
	}

	if offered == 0 {
		return false
	}

	return offered <= requested
}

func deadlineOk(o, r *Policies) bool {
	return periodOk(o.Deadline, r.Deadline)
}

func latencyOk(o, r *Policies) bool {
	return periodOk(o.LatencyBudget, r.LatencyBudget)
}

func livelinessOk(o, r *Policies) bool {
	if o.Liveliness.Kind < r.Liveliness.Kind {
		return false
	}

	return periodOk(o.Liveliness.Lease, r.Liveliness.Lease)
}

func ownershipOk(o, r *Policies) bool {
	return o.Ownership == r.Ownership
}

func destinationOrderOk(o, r *Policies) bool {
	return o.DestinationOrder >= r.DestinationOrder
}

func partitions(p []string) []string {
	if len(p) == 0 {
		return []string{""}
	}

	return p
}

func wildcard(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// partitionMatch two patterns never match each other unless identical,
// pattern is applied only against plain name
func partitionMatch(a, b string) bool {
	if a == b {
		return true
	}

	pattern, name := a, b

	switch wa, wb := wildcard(a), wildcard(b); {
	case wa && wb, !wa && !wb:
		return false
	case wb:
		pattern, name = b, a
	}

	ok, err := path.Match(pattern, name)

	return err == nil && ok
}

func partitionOk(o, r *Policies) bool {
	for _, wp := range partitions(o.Partition) {
		for _, rp := range partitions(r.Partition) {
			if partitionMatch(wp, rp) {
				return true
			}
		}
	}

	return false
}
