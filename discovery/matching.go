package discovery

import (
	"bytes"
	"sort"

	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
)

// runMatching evaluates endpoint against every peer of opposite role sharing
// exact topic and type names
func (e *Engine) runMatching(rec *endpointRecord) {
	for _, peer := range e.reg.peers(rec) {
		if rec.isWriter() {
			e.evaluate(rec, peer)
		} else {
			e.evaluate(peer, rec)
		}
	}
}

func (e *Engine) evaluate(w, r *endpointRecord) {
	k := pairKey{writer: w.guid, reader: r.guid}
	v := qos.Evaluate(&w.qos, &r.qos)

	_, matched := e.reg.matches[k]

	if v.Compatible {
		delete(e.reg.incompatible, k)

		if !matched {
			e.match(w, r)
		}

		return
	}

	if matched {
		e.unmatch(w, r, Reason{Kind: ReasonIncompatible, Policy: v.Failed})
	}

	if prev, ok := e.reg.incompatible[k]; ok && prev == v.Failed {
		return
	}

	e.reg.incompatible[k] = v.Failed
	e.stat.OnIncompatible(v.Failed)

	e.log.Debug("incompatible qos",
		zap.Stringer("writer", w.guid),
		zap.Stringer("reader", r.guid),
		zap.Stringer("policy", v.Failed))

	for _, side := range []*endpointRecord{w, r} {
		if side.local {
			e.events.push(event{kind: eventIncompatible, local: side.guid, policy: v.Failed})
		}
	}
}

func (e *Engine) match(w, r *endpointRecord) {
	k := pairKey{writer: w.guid, reader: r.guid}

	e.reg.matches[k] = &matchRecord{pairKey: k, since: e.clk.Now()}
	w.matched[r.guid] = struct{}{}
	r.matched[w.guid] = struct{}{}

	e.stat.OnMatched()

	e.log.Debug("matched", zap.Stringer("writer", w.guid), zap.Stringer("reader", r.guid))

	if w.local {
		e.events.push(event{kind: eventMatch, local: w.guid, remote: r.guid, qos: r.qos.Clone()})
	}

	if r.local {
		e.events.push(event{kind: eventMatch, local: r.guid, remote: w.guid, qos: w.qos.Clone()})
	}
}

func (e *Engine) unmatch(w, r *endpointRecord, reason Reason) {
	k := pairKey{writer: w.guid, reader: r.guid}
	if _, ok := e.reg.matches[k]; !ok {
		return
	}

	delete(e.reg.matches, k)
	delete(w.matched, r.guid)
	delete(r.matched, w.guid)

	e.stat.OnUnmatched()

	e.log.Debug("unmatched",
		zap.Stringer("writer", w.guid),
		zap.Stringer("reader", r.guid),
		zap.Stringer("reason", reason))

	if w.local {
		e.events.push(event{kind: eventUnmatch, local: w.guid, remote: r.guid, reason: reason})
	}

	if r.local {
		e.events.push(event{kind: eventUnmatch, local: r.guid, remote: w.guid, reason: reason})
	}
}

func (e *Engine) unmatchAll(rec *endpointRecord, reason Reason) {
	for _, g := range e.reg.sortedEndpoints(rec.matched) {
		peer := e.reg.endpoint(g)
		if peer == nil {
			delete(rec.matched, g)
			continue
		}

		if rec.isWriter() {
			e.unmatch(rec, peer, reason)
		} else {
			e.unmatch(peer, rec, reason)
		}
	}
}

func sortParticipants(s []*participantRecord) {
	sort.Slice(s, func(i, j int) bool {
		return bytes.Compare(s[i].prefix[:], s[j].prefix[:]) < 0
	})
}

func sortedPrefixes(m map[guid.Prefix]*participantRecord) []guid.Prefix {
	res := make([]guid.Prefix, 0, len(m))
	for p := range m {
		res = append(res, p)
	}

	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i][:], res[j][:]) < 0
	})

	return res
}
