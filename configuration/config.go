package configuration

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/VolantMQ/volantdds/types"
)

// nolint: golint
var (
	ErrInvalidTransport   = errors.New("config: unknown transport type")
	ErrInvalidPersistence = errors.New("config: unknown persistence type")
)

// DefaultConfig Load minimum working configuration to allow
// participant start without user provided one
func DefaultConfig() *Config {
	c := Config{}
	if err := yaml.Unmarshal(defaultConfig, &c); err != nil {
		panic(err.Error())
	}

	return &c
}

// ReadConfig read service configuration
func ReadConfig() (*Config, error) {
	log := GetHumanLogger()
	log.Info("loading config")

	if !flag.Parsed() {
		flag.Parse()
	}

	c := DefaultConfig()

	if len(configFile) == 0 {
		log.Info("No config file provided\nuse --config option or VOLANTDDS_CONFIG environment variable to provide own")
		log.Info("default config: \n", string(defaultConfig))
	} else {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "config: read")
		}

		if err = Parse(data, c); err != nil {
			return nil, err
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Parse overlays yaml document on top of c
func Parse(data []byte, c *Config) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "config: parse")
	}

	return nil
}

// Validate checks config and fills unset values with defaults
func (c *Config) Validate() error {
	p := &c.Participant

	if _, err := p.VendorID(); err != nil {
		return errors.Wrap(err, "config")
	}

	if p.AnnounceInterval <= 0 {
		p.AnnounceInterval = Duration(types.DefaultAnnounceInterval)
	}

	if p.LeaseDuration <= 0 {
		p.LeaseDuration = Duration(types.DefaultLeaseDuration)
	}

	if p.LeaseDuration <= p.AnnounceInterval {
		return errors.New("config: participant.leaseDuration must exceed participant.announceInterval")
	}

	if p.HeartbeatInterval <= 0 {
		p.HeartbeatInterval = Duration(types.DefaultHeartbeatInterval)
	}

	if p.Replay.Depth <= 0 {
		p.Replay.Depth = types.DefaultReplayDepth
	}

	if p.Replay.MaxAge <= 0 {
		p.Replay.MaxAge = Duration(types.DefaultReplayMaxAge)
	}

	if p.Tombstones <= 0 {
		p.Tombstones = types.DefaultTombstones
	}

	if p.PendingEndpoints <= 0 {
		p.PendingEndpoints = types.DefaultPendingEndpoints
	}

	switch c.Transport.Type {
	case "loopback", "udp", "ws":
	default:
		return errors.Wrap(ErrInvalidTransport, c.Transport.Type)
	}

	switch c.Persistence.Type {
	case "mem":
	case "bolt":
		if len(c.Persistence.Bolt.File) == 0 {
			return errors.New("config: persistence.bolt.file is empty")
		}
	default:
		return errors.Wrap(ErrInvalidPersistence, c.Persistence.Type)
	}

	if len(c.System.HTTP.Port) == 0 {
		c.System.HTTP.Port = types.DefaultHTTPPort
	}

	if c.System.Systree.Interval <= 0 {
		c.System.Systree.Interval = Duration(5 * time.Second)
	}

	for i := range c.Topics {
		if len(c.Topics[i].Name) == 0 || len(c.Topics[i].Type) == 0 {
			return errors.Errorf("config: topic #%d: name and type are required", i)
		}

		if _, err := c.Topics[i].Policies(); err != nil {
			return errors.Wrap(err, "config")
		}
	}

	return nil
}
