package systree

import (
	"time"

	"github.com/VolantMQ/volantdds/discovery"
	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/session"
	"github.com/VolantMQ/volantdds/topics"
)

// ParticipantData entry of DCPSParticipant
type ParticipantData struct {
	Prefix    string   `json:"prefix"`
	Vendor    string   `json:"vendor"`
	Instance  string   `json:"instance"`
	Domain    uint32   `json:"domain"`
	Lease     string   `json:"lease"`
	LastSeen  string   `json:"lastSeen,omitempty"`
	Sequence  uint64   `json:"sequence"`
	Locators  []string `json:"locators,omitempty"`
	Endpoints int      `json:"endpoints"`
	Local     bool     `json:"local"`
}

// QoSData policies of endpoint in readable form
type QoSData struct {
	Reliability string   `json:"reliability"`
	Durability  string   `json:"durability"`
	Deadline    string   `json:"deadline,omitempty"`
	Liveliness  string   `json:"livelinessLease,omitempty"`
	Ownership   uint8    `json:"ownership"`
	Partition   []string `json:"partition,omitempty"`
	HistoryKind uint8    `json:"historyKind"`
	Depth       int32    `json:"historyDepth"`
}

// EndpointData entry of DCPSPublication and DCPSSubscription
type EndpointData struct {
	GUID     string   `json:"guid"`
	Kind     string   `json:"kind"`
	Topic    string   `json:"topic"`
	TypeName string   `json:"type"`
	Sequence uint64   `json:"sequence"`
	QoS      QoSData  `json:"qos"`
	Matched  []string `json:"matched,omitempty"`
	Local    bool     `json:"local"`
}

// TopicData entry of DCPSTopic
type TopicData struct {
	Name       string   `json:"name"`
	Types      []string `json:"types"`
	Writers    int      `json:"writers"`
	Readers    int      `json:"readers"`
	Consistent bool     `json:"consistent"`
}

// MatchData entry of matches list
type MatchData struct {
	Writer string `json:"writer"`
	Reader string `json:"reader"`
	Since  string `json:"since"`
}

// SessionData entry of sessions list
type SessionData struct {
	Writer   string `json:"writer"`
	Reader   string `json:"reader"`
	Side     string `json:"side"`
	Locator  string `json:"locator,omitempty"`
	Reliable bool   `json:"reliable"`
	Last     uint64 `json:"last"`
	Acked    uint64 `json:"acked"`
	Pending  int    `json:"pending,omitempty"`
	Held     int    `json:"held,omitempty"`
}

func durationString(d time.Duration) string {
	if d <= 0 {
		return ""
	}

	return d.String()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func guids(in []guid.GUID) []string {
	if len(in) == 0 {
		return nil
	}

	res := make([]string, 0, len(in))
	for _, g := range in {
		res = append(res, g.String())
	}

	return res
}

func qosData(q *qos.Policies) QoSData {
	return QoSData{
		Reliability: q.Reliability.String(),
		Durability:  q.Durability.String(),
		Deadline:    durationString(q.Deadline),
		Liveliness:  durationString(q.Liveliness.Lease),
		Ownership:   uint8(q.Ownership),
		Partition:   q.Partition,
		HistoryKind: uint8(q.History.Kind),
		Depth:       q.History.Depth,
	}
}

func participantData(in []discovery.ParticipantInfo) []ParticipantData {
	res := make([]ParticipantData, 0, len(in))

	for i := range in {
		p := &in[i]
		res = append(res, ParticipantData{
			Prefix:    p.Prefix.String(),
			Vendor:    p.Prefix.Vendor().String(),
			Instance:  p.Instance.String(),
			Domain:    p.Domain,
			Lease:     p.Lease.String(),
			LastSeen:  stamp(p.LastSeen),
			Sequence:  p.Sequence,
			Locators:  p.Locators,
			Endpoints: len(p.Endpoints),
			Local:     p.Local,
		})
	}

	return res
}

// endpointData splits endpoints into publications and subscriptions
func endpointData(in []discovery.EndpointInfo) ([]EndpointData, []EndpointData) {
	pubs := make([]EndpointData, 0)
	subs := make([]EndpointData, 0)

	for i := range in {
		e := &in[i]
		d := EndpointData{
			GUID:     e.GUID.String(),
			Kind:     e.GUID.Entity.EntityKind().String(),
			Topic:    e.Topic,
			TypeName: e.TypeName,
			Sequence: e.Sequence,
			QoS:      qosData(&e.QoS),
			Matched:  guids(e.Matched),
			Local:    e.Local,
		}

		if e.IsWriter() {
			pubs = append(pubs, d)
		} else {
			subs = append(subs, d)
		}
	}

	return pubs, subs
}

func topicData(in []topics.Info) []TopicData {
	res := make([]TopicData, 0, len(in))

	for _, t := range in {
		res = append(res, TopicData{
			Name:       t.Name,
			Types:      t.Types,
			Writers:    t.Writers,
			Readers:    t.Readers,
			Consistent: len(t.Types) <= 1,
		})
	}

	return res
}

func matchData(in []discovery.MatchInfo) []MatchData {
	res := make([]MatchData, 0, len(in))

	for _, m := range in {
		res = append(res, MatchData{
			Writer: m.Writer.String(),
			Reader: m.Reader.String(),
			Since:  stamp(m.Since),
		})
	}

	return res
}

func sessionData(in []session.Info) []SessionData {
	res := make([]SessionData, 0, len(in))

	for _, s := range in {
		side := "reader"
		if s.LocalWriter {
			side = "writer"
		}

		res = append(res, SessionData{
			Writer:   s.Writer.String(),
			Reader:   s.Reader.String(),
			Side:     side,
			Locator:  s.Locator,
			Reliable: s.Reliable,
			Last:     s.Last,
			Acked:    s.Acked,
			Pending:  s.Pending,
			Held:     s.Held,
		})
	}

	return res
}
