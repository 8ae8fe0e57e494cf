// Package discovery keeps the view of remote participants and endpoints,
// announces local ones and decides which writer/reader pairs are matched.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/metrics"
	"github.com/VolantMQ/volantdds/qos"
	"github.com/VolantMQ/volantdds/topics"
	"github.com/VolantMQ/volantdds/types"
)

// nolint: golint
var (
	ErrPrefixCollision = errors.New("discovery: prefix collision")
	ErrClosed          = errors.New("discovery: engine closed")
	ErrNotLocal        = errors.New("discovery: endpoint does not belong to local participant")
	ErrInvalidEndpoint = errors.New("discovery: endpoint must be writer or reader")
	ErrAlreadyExists   = errors.New("discovery: endpoint already exists")
	ErrNotFound        = errors.New("discovery: endpoint not found")
	ErrNotDiscovery    = errors.New("discovery: not a discovery message")
	ErrInvalidArgs     = errors.New("discovery: invalid arguments")
)

// State of local participant discovery
type State byte

// nolint: golint
const (
	StateInitializing State = iota
	StateAnnouncing
	StateOperational
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateAnnouncing:
		return "ANNOUNCING"
	case StateOperational:
		return "OPERATIONAL"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// ReasonKind why match has been torn down
type ReasonKind byte

// nolint: golint
const (
	ReasonWithdrawn ReasonKind = iota
	ReasonIncompatible
	ReasonLivelinessLost
	ReasonCollision
	ReasonTopicChanged
	ReasonShutdown
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonWithdrawn:
		return "WITHDRAWN"
	case ReasonIncompatible:
		return "INCOMPATIBLE"
	case ReasonLivelinessLost:
		return "LIVELINESS_LOST"
	case ReasonCollision:
		return "COLLISION"
	case ReasonTopicChanged:
		return "TOPIC_CHANGED"
	case ReasonShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// Reason of unmatch. Policy is set for ReasonIncompatible only
type Reason struct {
	Kind   ReasonKind
	Policy qos.PolicyID
}

func (r Reason) String() string {
	if r.Kind == ReasonIncompatible {
		return r.Kind.String() + "(" + r.Policy.String() + ")"
	}

	return r.Kind.String()
}

// Listener receives discovery events of local endpoints.
// Callbacks are invoked one at a time, never under engine lock, thus
// listener may call back into engine
type Listener interface {
	OnMatch(local, remote guid.GUID, q qos.Policies)
	OnUnmatch(local, remote guid.GUID, reason Reason)
	OnIncompatibleQos(local guid.GUID, failed qos.PolicyID)
	OnLivelinessChanged(g guid.GUID, alive bool)
}

// CollisionListener optional capability of Listener
type CollisionListener interface {
	OnPrefixCollision(prefix guid.Prefix, err error)
}

// InconsistentTopicListener optional capability of Listener
type InconsistentTopicListener interface {
	OnInconsistentTopic(local guid.GUID, topic, remoteType string)
}

// DegradedListener optional capability of Listener.
// Invoked when bounded discovery tables drop state
type DegradedListener interface {
	OnDiscoveryDegraded(what string)
}

// NopListener ignores every event. Embed it to implement part of Listener
type NopListener struct{}

var _ Listener = NopListener{}

// OnMatch no-op
func (NopListener) OnMatch(guid.GUID, guid.GUID, qos.Policies) {}

// OnUnmatch no-op
func (NopListener) OnUnmatch(guid.GUID, guid.GUID, Reason) {}

// OnIncompatibleQos no-op
func (NopListener) OnIncompatibleQos(guid.GUID, qos.PolicyID) {}

// OnLivelinessChanged no-op
func (NopListener) OnLivelinessChanged(guid.GUID, bool) {}

// Sender outbound side of transport
type Sender interface {
	Send(ctx context.Context, payload []byte, dest string) error
}

// LocalEndpoint description of local writer or reader
type LocalEndpoint struct {
	GUID     guid.GUID
	Topic    string
	TypeName string
	QoS      qos.Policies
}

// Config of discovery engine
type Config struct {
	Prefix           guid.Prefix
	Instance         uuid.UUID
	Domain           uint32
	AnnounceInterval time.Duration
	LeaseDuration    time.Duration
	LeaseCheck       time.Duration
	Tombstones       int
	PendingEndpoints int
	Locators         []string
	UserData         []byte
	Transport        Sender
	Listener         Listener
	Topics           *topics.Registry
	Metrics          metrics.Informer
	Clock            clock.Clock
	Log              *zap.Logger
}

func (c *Config) setDefaults() error {
	if c.Prefix.IsZero() || c.Transport == nil {
		return ErrInvalidArgs
	}

	if c.Instance == uuid.Nil {
		c.Instance = uuid.New()
	}

	if c.AnnounceInterval <= 0 {
		c.AnnounceInterval = types.DefaultAnnounceInterval
	}

	if c.LeaseDuration <= 0 {
		c.LeaseDuration = types.DefaultLeaseDuration
	}

	if c.LeaseCheck <= 0 {
		c.LeaseCheck = types.DefaultLeaseCheck
	}

	if c.Tombstones <= 0 {
		c.Tombstones = types.DefaultTombstones
	}

	if c.PendingEndpoints <= 0 {
		c.PendingEndpoints = types.DefaultPendingEndpoints
	}

	if c.Listener == nil {
		c.Listener = NopListener{}
	}

	if c.Topics == nil {
		c.Topics = topics.NewRegistry()
	}

	if c.Metrics == nil {
		c.Metrics = metrics.Nop()
	}

	if c.Clock == nil {
		c.Clock = clock.New()
	}

	return nil
}
