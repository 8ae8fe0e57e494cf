package discovery

import (
	"sort"

	"github.com/VolantMQ/volantdds/guid"
)

// Participants known to engine including local one, ordered by prefix
func (e *Engine) Participants() []ParticipantInfo {
	e.lock.Lock()
	defer e.lock.Unlock()

	res := make([]ParticipantInfo, 0, len(e.reg.participants))
	for _, p := range sortedPrefixes(e.reg.participants) {
		res = append(res, e.reg.participants[p].info())
	}

	return res
}

// Participant snapshot by prefix
func (e *Engine) Participant(p guid.Prefix) (ParticipantInfo, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	rec := e.reg.participant(p)
	if rec == nil {
		return ParticipantInfo{}, false
	}

	return rec.info(), true
}

// Endpoints known to engine, ordered by GUID
func (e *Engine) Endpoints() []EndpointInfo {
	e.lock.Lock()
	defer e.lock.Unlock()

	res := make([]EndpointInfo, 0, len(e.reg.endpoints))
	for _, rec := range e.reg.endpoints {
		res = append(res, rec.info())
	}

	sort.Slice(res, func(i, j int) bool {
		return lessGUID(res[i].GUID, res[j].GUID)
	})

	return res
}

// Endpoint snapshot by GUID
func (e *Engine) Endpoint(g guid.GUID) (EndpointInfo, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	rec := e.reg.endpoint(g)
	if rec == nil {
		return EndpointInfo{}, false
	}

	return rec.info(), true
}

// Matches currently established, ordered by writer then reader
func (e *Engine) Matches() []MatchInfo {
	e.lock.Lock()
	defer e.lock.Unlock()

	res := make([]MatchInfo, 0, len(e.reg.matches))
	for _, m := range e.reg.matches {
		res = append(res, MatchInfo{Writer: m.writer, Reader: m.reader, Since: m.since})
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].Writer != res[j].Writer {
			return lessGUID(res[i].Writer, res[j].Writer)
		}

		return lessGUID(res[i].Reader, res[j].Reader)
	})

	return res
}

// Locators of remote participant
func (e *Engine) Locators(p guid.Prefix) []string {
	e.lock.Lock()
	defer e.lock.Unlock()

	if rec := e.reg.participant(p); rec != nil {
		return append([]string(nil), rec.locators...)
	}

	return nil
}

// Pending number of endpoint announcements waiting for their participant
func (e *Engine) Pending() int {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.pending.len()
}
