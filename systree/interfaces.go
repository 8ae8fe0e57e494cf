package systree

import (
	"context"
	"net/http"

	"github.com/VolantMQ/volantdds/discovery"
	"github.com/VolantMQ/volantdds/session"
	"github.com/VolantMQ/volantdds/topics"
)

// Provider systree provider
type Provider interface {
	Matches() MatchStat
	Liveliness() LivelinessStat
	Values() []DynamicValue
	Get(topic string) ([]byte, bool)
	Handler() http.Handler
	Run(ctx context.Context, publish PublishFunc) error
}

// MatchStat statistic of matches
type MatchStat interface {
	Matched()
	Unmatched()
	Current() uint64
	Max() uint64
}

// LivelinessStat statistic of remote entities alive
type LivelinessStat interface {
	Alive()
	Lost()
	Current() uint64
	Max() uint64
}

// PublishFunc receives every value on periodic update
type PublishFunc func(topic string, payload []byte) error

// Discovery source of discovered entities
type Discovery interface {
	State() discovery.State
	Participants() []discovery.ParticipantInfo
	Endpoints() []discovery.EndpointInfo
	Matches() []discovery.MatchInfo
	Pending() int
}

// Topics source of topic bookkeeping
type Topics interface {
	Topics() []topics.Info
}

// Sessions source of delivery sessions
type Sessions interface {
	Sessions() []session.Info
}
