package systree

import (
	"encoding/json"

	"github.com/benbjohnson/clock"

	"github.com/VolantMQ/volantdds/packet"
)

// Version of the middleware reported by systree
const Version = "0.1.0"

// Capabilities static description of participant
type Capabilities struct {
	ProtocolVersion uint8    `json:"protocolVersion"`
	Vendor          string   `json:"vendor"`
	Domain          uint32   `json:"domain"`
	Transports      []string `json:"transports"`
	Persistence     string   `json:"persistence,omitempty"`
	ReplayDepth     int      `json:"replayDepth"`
	ReplayMaxAge    string   `json:"replayMaxAge"`
	Announce        string   `json:"announceInterval"`
	Lease           string   `json:"leaseDuration"`
}

type server struct {
	version      string
	upTime       *dynamicValueUpTime
	currTime     *dynamicValueCurrentTime
	capabilities Capabilities
}

func newServer(topicPrefix string, caps Capabilities, clk clock.Clock, dynValues, staticValues *[]DynamicValue) server {
	b := server{
		upTime:       newDynamicValueUpTime(topicPrefix+"/uptime", clk),
		currTime:     newDynamicValueCurrentTime(topicPrefix+"/datetime", clk),
		version:      Version,
		capabilities: caps,
	}

	if b.capabilities.ProtocolVersion == 0 {
		b.capabilities.ProtocolVersion = uint8(packet.ProtocolV1)
	}

	*dynValues = append(*dynValues, b.upTime)
	*dynValues = append(*dynValues, b.currTime)
	*staticValues = append(*staticValues, newStaticValue(topicPrefix+"/version", []byte(b.version)))

	data, err := json.Marshal(&b.capabilities)
	if err != nil {
		data = []byte(err.Error())
	}

	*staticValues = append(*staticValues, newStaticValue(topicPrefix+"/capabilities", data))

	return b
}
