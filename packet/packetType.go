package packet

// Type of message
type Type byte

// ProtocolVersion wire layout version
type ProtocolVersion byte

// nolint: golint
const (
	ProtocolV1 ProtocolVersion = 1
)

// Magic leading bytes of every message
var Magic = [4]byte{'V', 'D', 'D', 'S'}

const (
	// RESERVED is a reserved value and should be considered an invalid message type
	RESERVED Type = iota

	// PARTICIPANT_ANNOUNCE participant is alive, periodically re-sent
	PARTICIPANT_ANNOUNCE // nolint: golint

	// PARTICIPANT_WITHDRAW participant is leaving the domain
	PARTICIPANT_WITHDRAW // nolint: golint

	// ENDPOINT_ANNOUNCE writer or reader is present, periodically re-sent
	ENDPOINT_ANNOUNCE // nolint: golint

	// ENDPOINT_WITHDRAW writer or reader is deleted
	ENDPOINT_WITHDRAW // nolint: golint

	// DATA sample from writer to reader
	DATA

	// HEARTBEAT writer advertises range of available sequences
	HEARTBEAT

	// ACKNACK reader acknowledges and requests missing sequences
	ACKNACK

	// GAP writer declares sequences permanently lost
	GAP
)

var typeName = [GAP + 1]string{
	"RESERVED",
	"PARTICIPANT_ANNOUNCE",
	"PARTICIPANT_WITHDRAW",
	"ENDPOINT_ANNOUNCE",
	"ENDPOINT_WITHDRAW",
	"DATA",
	"HEARTBEAT",
	"ACKNACK",
	"GAP",
}

var typeDescription = [GAP + 1]string{
	"Reserved",
	"Participant announcement",
	"Participant withdrawal",
	"Endpoint announcement",
	"Endpoint withdrawal",
	"Data sample",
	"Writer heartbeat",
	"Reader acknowledgement",
	"Lost sequences",
}

// Name returns the name of the message type
func (t Type) Name() string {
	if t > GAP {
		return "UNKNOWN"
	}

	return typeName[t]
}

// Desc returns the description of the message type
func (t Type) Desc() string {
	if t > GAP {
		return "UNKNOWN"
	}

	return typeDescription[t]
}

func (t Type) String() string {
	return t.Name()
}

// Valid returns a boolean indicating whether the message type is valid or not.
func (t Type) Valid() bool {
	return t > RESERVED && t <= GAP
}

// IsDiscovery message belongs to discovery protocol
func (t Type) IsDiscovery() bool {
	return t >= PARTICIPANT_ANNOUNCE && t <= ENDPOINT_WITHDRAW
}
