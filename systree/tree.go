// Package systree exposes the builtin topics of a participant: discovered
// participants, publications, subscriptions, topics, matches and delivery
// sessions rendered as JSON, plus server level counters.
package systree

import (
	"context"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/configuration"
)

// Builtin topic names
const (
	TopicParticipant  = "DCPSParticipant"
	TopicPublication  = "DCPSPublication"
	TopicSubscription = "DCPSSubscription"
	TopicTopic        = "DCPSTopic"
	TopicMatches      = "matches"
	TopicSessions     = "sessions"
	TopicState        = "state"
)

// Config of systree provider
type Config struct {
	// Base prefix of every value topic
	Base         string
	Capabilities Capabilities
	Discovery    Discovery
	Topics       Topics
	Sessions     Sessions
	// Interval of periodic publish
	Interval time.Duration
	Clock    clock.Clock
	Log      *zap.Logger
}

type impl struct {
	cfg        Config
	log        *zap.Logger
	server     server
	matches    matchStat
	liveliness livelinessStat
	values     []DynamicValue
	index      map[string]DynamicValue
}

var _ Provider = (*impl)(nil)

// NewTree allocate systree provider
func NewTree(cfg Config) (Provider, error) {
	if cfg.Discovery == nil {
		return nil, ErrInvalidArgs
	}

	if cfg.Base == "" {
		cfg.Base = "$SYS"
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}

	dynValues := []DynamicValue{}
	staticValues := []DynamicValue{}

	tr := &impl{
		cfg:        cfg,
		log:        cfg.Log,
		server:     newServer(cfg.Base, cfg.Capabilities, cfg.Clock, &dynValues, &staticValues),
		matches:    newMatchStat(cfg.Base+"/stats", &dynValues),
		liveliness: newLivelinessStat(cfg.Base+"/stats", &dynValues),
		index:      make(map[string]DynamicValue),
	}

	if tr.log == nil {
		tr.log = configuration.GetLogger().Named("systree")
	}

	dynValues = append(dynValues, tr.builtin()...)

	tr.values = append(dynValues, staticValues...)

	sort.Slice(tr.values, func(i, j int) bool {
		return tr.values[i].Topic() < tr.values[j].Topic()
	})

	for _, v := range tr.values {
		tr.index[v.Topic()] = v
	}

	return tr, nil
}

func (t *impl) builtin() []DynamicValue {
	base := t.cfg.Base + "/"

	values := []DynamicValue{
		newDynamicValueJSON(base+TopicState, func() interface{} {
			return map[string]interface{}{
				"state":   t.cfg.Discovery.State().String(),
				"pending": t.cfg.Discovery.Pending(),
			}
		}),
		newDynamicValueJSON(base+TopicParticipant, func() interface{} {
			return participantData(t.cfg.Discovery.Participants())
		}),
		newDynamicValueJSON(base+TopicPublication, func() interface{} {
			pubs, _ := endpointData(t.cfg.Discovery.Endpoints())
			return pubs
		}),
		newDynamicValueJSON(base+TopicSubscription, func() interface{} {
			_, subs := endpointData(t.cfg.Discovery.Endpoints())
			return subs
		}),
		newDynamicValueJSON(base+TopicMatches, func() interface{} {
			return matchData(t.cfg.Discovery.Matches())
		}),
	}

	if t.cfg.Topics != nil {
		values = append(values, newDynamicValueJSON(base+TopicTopic, func() interface{} {
			return topicData(t.cfg.Topics.Topics())
		}))
	}

	if t.cfg.Sessions != nil {
		values = append(values, newDynamicValueJSON(base+TopicSessions, func() interface{} {
			return sessionData(t.cfg.Sessions.Sessions())
		}))
	}

	return values
}

// Matches get match stat provider
func (t *impl) Matches() MatchStat {
	return &t.matches
}

// Liveliness get liveliness stat provider
func (t *impl) Liveliness() LivelinessStat {
	return &t.liveliness
}

// Values every value ordered by topic
func (t *impl) Values() []DynamicValue {
	return t.values
}

// Get current value of topic
func (t *impl) Get(topic string) ([]byte, bool) {
	v, ok := t.index[topic]
	if !ok {
		return nil, false
	}

	return v.Value(), true
}

// Run publishes every value on configured interval until ctx is done
func (t *impl) Run(ctx context.Context, publish PublishFunc) error {
	tm := t.cfg.Clock.Ticker(t.cfg.Interval)
	defer tm.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tm.C:
			for _, v := range t.values {
				if err := publish(v.Topic(), v.Value()); err != nil {
					t.log.Debug("couldn't publish value", zap.String("topic", v.Topic()), zap.Error(err))
				}
			}
		}
	}
}
