package configuration

import (
	"crypto/tls"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
)

// Duration yaml friendly time.Duration accepting values like 500ms or 10s
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}

	*d = Duration(v)

	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std converts to time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// TimestampConfig entry in system.log.console.timestamp
type TimestampConfig struct {
	Format string `yaml:"format,omitempty"`
}

// ConsoleLogConfig entry in system.log.console
type ConsoleLogConfig struct {
	Level     string           `yaml:"level,omitempty"`
	Timestamp *TimestampConfig `yaml:"timestamp,omitempty"`
}

// LogConfig entry in system.log
type LogConfig struct {
	Console ConsoleLogConfig `yaml:"console,omitempty"`
}

// HTTPConfig entry in system.http
type HTTPConfig struct {
	Port string `yaml:"port,omitempty"`
}

// SystreeConfig entry in system.systree
type SystreeConfig struct {
	Enabled  bool     `yaml:"enabled,omitempty"`
	Base     string   `yaml:"base,omitempty"`
	Interval Duration `yaml:"interval,omitempty"`
	// Topic when set systree values are published as samples of it
	Topic string `yaml:"topic,omitempty"`
}

// SystemConfig entry in system
type SystemConfig struct {
	Log     LogConfig     `yaml:"log,omitempty"`
	HTTP    HTTPConfig    `yaml:"http,omitempty"`
	Systree SystreeConfig `yaml:"systree,omitempty"`
}

// TLSConfig used by ws transport
type TLSConfig struct {
	Cert string `yaml:"cert,omitempty"`
	Key  string `yaml:"key,omitempty"`
}

// ReplayConfig entry in participant.replay
type ReplayConfig struct {
	Depth  int      `yaml:"depth,omitempty"`
	MaxAge Duration `yaml:"maxAge,omitempty"`
}

// ParticipantConfig entry in participant
type ParticipantConfig struct {
	Domain            uint32       `yaml:"domain,omitempty"`
	Vendor            string       `yaml:"vendor,omitempty"`
	AnnounceInterval  Duration     `yaml:"announceInterval,omitempty"`
	LeaseDuration     Duration     `yaml:"leaseDuration,omitempty"`
	HeartbeatInterval Duration     `yaml:"heartbeatInterval,omitempty"`
	Replay            ReplayConfig `yaml:"replay,omitempty"`
	Tombstones        int          `yaml:"tombstones,omitempty"`
	PendingEndpoints  int          `yaml:"pendingEndpoints,omitempty"`
}

// UDPConfig entry in transport.udp
type UDPConfig struct {
	Listen    string   `yaml:"listen,omitempty"`
	Group     string   `yaml:"group,omitempty"`
	Interface string   `yaml:"interface,omitempty"`
	Loopback  bool     `yaml:"loopback,omitempty"`
	Peers     []string `yaml:"peers,omitempty"`
}

// WSConfig entry in transport.ws
type WSConfig struct {
	Listen       string     `yaml:"listen,omitempty"`
	Path         string     `yaml:"path,omitempty"`
	Peers        []string   `yaml:"peers,omitempty"`
	TLS          *TLSConfig `yaml:"tls,omitempty"`
	QueueSize    int        `yaml:"queueSize,omitempty"`
	WriteTimeout Duration   `yaml:"writeTimeout,omitempty"`
}

// TransportConfig entry in transport
type TransportConfig struct {
	Type string    `yaml:"type,omitempty"`
	UDP  UDPConfig `yaml:"udp,omitempty"`
	WS   WSConfig  `yaml:"ws,omitempty"`
}

// BoltConfig entry in persistence.bolt
type BoltConfig struct {
	File string `yaml:"file,omitempty"`
}

// PersistenceConfig entry in persistence
type PersistenceConfig struct {
	Type string     `yaml:"type,omitempty"`
	Bolt BoltConfig `yaml:"bolt,omitempty"`
}

// LivelinessConfig entry in topics.qos.liveliness
type LivelinessConfig struct {
	Kind  string   `yaml:"kind,omitempty"`
	Lease Duration `yaml:"lease,omitempty"`
}

// HistoryConfig entry in topics.qos.history
type HistoryConfig struct {
	Kind  string `yaml:"kind,omitempty"`
	Depth int32  `yaml:"depth,omitempty"`
}

// PresentationConfig entry in topics.qos.presentation
type PresentationConfig struct {
	Scope    string `yaml:"scope,omitempty"`
	Coherent bool   `yaml:"coherent,omitempty"`
	Ordered  bool   `yaml:"ordered,omitempty"`
}

// QoSConfig entry in topics.qos
type QoSConfig struct {
	Reliability      string             `yaml:"reliability,omitempty"`
	Durability       string             `yaml:"durability,omitempty"`
	Presentation     PresentationConfig `yaml:"presentation,omitempty"`
	Deadline         Duration           `yaml:"deadline,omitempty"`
	LatencyBudget    Duration           `yaml:"latencyBudget,omitempty"`
	Liveliness       LivelinessConfig   `yaml:"liveliness,omitempty"`
	Ownership        string             `yaml:"ownership,omitempty"`
	DestinationOrder string             `yaml:"destinationOrder,omitempty"`
	Partition        []string           `yaml:"partition,omitempty"`
	History          HistoryConfig      `yaml:"history,omitempty"`
	MaxSamples       int32              `yaml:"maxSamples,omitempty"`
	Lifespan         Duration           `yaml:"lifespan,omitempty"`
}

// TopicConfig entry in topics
type TopicConfig struct {
	Name string    `yaml:"name"`
	Type string    `yaml:"type"`
	Role string    `yaml:"role"`
	QoS  QoSConfig `yaml:"qos,omitempty"`
}

// Config system-wide config
type Config struct {
	Version     string            `yaml:"version,omitempty"`
	System      SystemConfig      `yaml:"system,omitempty"`
	Participant ParticipantConfig `yaml:"participant,omitempty"`
	Transport   TransportConfig   `yaml:"transport,omitempty"`
	Persistence PersistenceConfig `yaml:"persistence,omitempty"`
	Topics      []TopicConfig     `yaml:"topics,omitempty"`
}

// nolint: golint
const (
	RoleWriter = "writer"
	RoleReader = "reader"
)

// Validate loads certificate pair
func (t *TLSConfig) Validate() (tls.Certificate, error) {
	if len(t.Cert) == 0 {
		return tls.Certificate{}, errors.New("empty certificate name")
	}

	if len(t.Key) == 0 {
		return tls.Certificate{}, errors.New("empty key name")
	}

	certPEMBlock, err := os.ReadFile(t.Cert)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "tls: read certificate: "+t.Cert)
	}

	keyPEMBlock, err := os.ReadFile(t.Key)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "tls: read key: "+t.Key)
	}

	return tls.X509KeyPair(certPEMBlock, keyPEMBlock)
}

// LoadConfig builds tls config
func (t *TLSConfig) LoadConfig() (*tls.Config, error) {
	certs, err := t.Validate()
	if err != nil {
		return nil, err
	}

	c := &tls.Config{}

	c.Certificates = append(c.Certificates, certs)

	return c, nil
}

// VendorID parses vendor name or four hex digits
func (p *ParticipantConfig) VendorID() (guid.VendorID, error) {
	switch strings.ToLower(p.Vendor) {
	case "", "volant":
		return guid.VendorVolant, nil
	case "oci", "opendds":
		return guid.VendorOCI, nil
	}

	b, err := hex.DecodeString(p.Vendor)
	if err != nil || len(b) != 2 {
		return guid.VendorUnknown, errors.Errorf("invalid vendor \"%s\"", p.Vendor)
	}

	return guid.VendorID{b[0], b[1]}, nil
}

func parseEnum(name, value string, values map[string]byte) (byte, error) {
	if len(value) == 0 {
		return 0, nil
	}

	v, ok := values[strings.ToLower(value)]
	if !ok {
		return 0, errors.Errorf("invalid %s \"%s\"", name, value)
	}

	return v, nil
}

var (
	reliabilityValues = map[string]byte{
		"best_effort": byte(qos.BestEffort),
		"reliable":    byte(qos.Reliable),
	}
	durabilityValues = map[string]byte{
		"volatile":        byte(qos.Volatile),
		"transient_local": byte(qos.TransientLocal),
		"transient":       byte(qos.Transient),
		"persistent":      byte(qos.Persistent),
	}
	scopeValues = map[string]byte{
		"instance": byte(qos.ScopeInstance),
		"topic":    byte(qos.ScopeTopic),
		"group":    byte(qos.ScopeGroup),
	}
	livelinessValues = map[string]byte{
		"automatic":             byte(qos.Automatic),
		"manual_by_participant": byte(qos.ManualByParticipant),
		"manual_by_topic":       byte(qos.ManualByTopic),
	}
	ownershipValues = map[string]byte{
		"shared":    byte(qos.Shared),
		"exclusive": byte(qos.Exclusive),
	}
	orderValues = map[string]byte{
		"by_reception_timestamp": byte(qos.ByReceptionTimestamp),
		"by_source_timestamp":    byte(qos.BySourceTimestamp),
	}
	historyValues = map[string]byte{
		"keep_last": byte(qos.KeepLast),
		"keep_all":  byte(qos.KeepAll),
	}
)

// Policies converts topic qos entry into policy set.
// Unset entries keep role defaults
func (t *TopicConfig) Policies() (qos.Policies, error) {
	var p qos.Policies

	switch t.Role {
	case RoleWriter:
		p = qos.DefaultWriter()
	case RoleReader:
		p = qos.DefaultReader()
	default:
		return p, errors.Errorf("topic %s: invalid role \"%s\"", t.Name, t.Role)
	}

	c := &t.QoS

	type field struct {
		name   string
		value  string
		values map[string]byte
		set    func(byte)
	}

	fields := []field{
		{"reliability", c.Reliability, reliabilityValues, func(v byte) { p.Reliability = qos.ReliabilityKind(v) }},
		{"durability", c.Durability, durabilityValues, func(v byte) { p.Durability = qos.DurabilityKind(v) }},
		{"presentation scope", c.Presentation.Scope, scopeValues, func(v byte) { p.Presentation.Scope = qos.AccessScope(v) }},
		{"liveliness", c.Liveliness.Kind, livelinessValues, func(v byte) { p.Liveliness.Kind = qos.LivelinessKind(v) }},
		{"ownership", c.Ownership, ownershipValues, func(v byte) { p.Ownership = qos.OwnershipKind(v) }},
		{"destination order", c.DestinationOrder, orderValues, func(v byte) { p.DestinationOrder = qos.DestinationOrderKind(v) }},
		{"history", c.History.Kind, historyValues, func(v byte) { p.History.Kind = qos.HistoryKind(v) }},
	}

	for _, f := range fields {
		if len(f.value) == 0 {
			continue
		}

		v, err := parseEnum(f.name, f.value, f.values)
		if err != nil {
			return p, errors.Wrapf(err, "topic %s", t.Name)
		}

		f.set(v)
	}

	p.Presentation.Coherent = c.Presentation.Coherent
	p.Presentation.Ordered = c.Presentation.Ordered
	p.Deadline = c.Deadline.Std()
	p.LatencyBudget = c.LatencyBudget.Std()
	p.Liveliness.Lease = c.Liveliness.Lease.Std()
	p.Partition = append([]string(nil), c.Partition...)
	p.ResourceLimits.MaxSamples = c.MaxSamples
	p.Lifespan = c.Lifespan.Std()

	if c.History.Depth > 0 {
		p.History.Depth = c.History.Depth
	}

	return p, nil
}
