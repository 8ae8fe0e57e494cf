// Package participant ties discovery, matching and delivery sessions of a
// domain participant together and hands out data writers and readers.
package participant

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/discovery"
	"github.com/VolantMQ/volantdds/metrics"
	persistenceTypes "github.com/VolantMQ/volantdds/persistence/types"
	"github.com/VolantMQ/volantdds/transport"
)

// nolint: golint
var (
	ErrClosed       = errors.New("participant: closed")
	ErrInvalidTopic = errors.New("participant: topic and type names are required")
	ErrEndpointGone = errors.New("participant: endpoint closed")
	ErrNoTransport  = errors.New("participant: transport is required")
)

// Listener application side of participant events.
// Optional capabilities are discovered by type assertion:
// discovery.CollisionListener, discovery.InconsistentTopicListener,
// discovery.DegradedListener and session.DeliveryListener
type Listener = discovery.Listener

// Config of participant. Everything is fixed at creation
type Config struct {
	Domain            uint32
	AnnounceInterval  time.Duration
	LeaseDuration     time.Duration
	LeaseCheck        time.Duration
	HeartbeatInterval time.Duration
	ReplayDepth       int
	ReplayMaxAge      time.Duration
	Tombstones        int
	PendingEndpoints  int
	UserData          []byte

	// Transport used for discovery and delivery, closed with participant
	Transport transport.Provider

	// Persistence optional durability store of writer history, owned by caller
	Persistence persistenceTypes.Provider

	Listener Listener
	Metrics  metrics.Informer
	Clock    clock.Clock
	Log      *zap.Logger
}

func (c *Config) validate() error {
	if c.Transport == nil {
		return ErrNoTransport
	}

	if c.Listener == nil {
		c.Listener = discovery.NopListener{}
	}

	if c.Metrics == nil {
		c.Metrics = metrics.Nop()
	}

	if c.Clock == nil {
		c.Clock = clock.New()
	}

	return nil
}
