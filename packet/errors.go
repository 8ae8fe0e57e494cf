package packet

// Error errors
type Error byte

// nolint: golint
const (
	// ErrInvalid generic malformed message
	ErrInvalid Error = iota
	// ErrInvalidMagic message does not start with protocol magic
	ErrInvalidMagic
	// ErrInvalidProtocolVersion unsupported protocol version
	ErrInvalidProtocolVersion
	// ErrInvalidMessageType Invalid message type
	ErrInvalidMessageType
	// ErrInvalidLength Invalid message length
	ErrInvalidLength
	// ErrInsufficientBufferSize Insufficient buffer size
	ErrInsufficientBufferSize
	// ErrInsufficientDataSize message truncated
	ErrInsufficientDataSize
	// ErrInvalidLPStringSize LP string size is bigger than expected
	ErrInvalidLPStringSize
	// ErrInvalidUtf8 string is not UTF8
	ErrInvalidUtf8
	// ErrInvalidQoS policy value out of range
	ErrInvalidQoS
	// ErrInvalidGUID malformed or unknown entity identifier
	ErrInvalidGUID
	// ErrInvalidTopic Topic is empty
	ErrInvalidTopic
	// ErrInvalidSequence sequence number cannot be 0
	ErrInvalidSequence
	// ErrTooManyElements list length exceeds limit
	ErrTooManyElements
)

// Error returns the corresponding error string
func (e Error) Error() string {
	switch e {
	case ErrInvalid:
		return "Invalid message"
	case ErrInvalidMagic:
		return "Invalid protocol magic"
	case ErrInvalidProtocolVersion:
		return "Invalid protocol version"
	case ErrInvalidMessageType:
		return "Invalid message type"
	case ErrInvalidLength:
		return "Invalid message length"
	case ErrInsufficientBufferSize:
		return "Insufficient buffer size"
	case ErrInsufficientDataSize:
		return "Insufficient data size"
	case ErrInvalidLPStringSize:
		return "Invalid LP string size"
	case ErrInvalidUtf8:
		return "String is not UTF8"
	case ErrInvalidQoS:
		return "Invalid QoS policy value"
	case ErrInvalidGUID:
		return "Invalid GUID"
	case ErrInvalidTopic:
		return "Invalid topic name"
	case ErrInvalidSequence:
		return "Sequence number cannot be 0"
	case ErrTooManyElements:
		return "Too many elements"
	}

	return "Unknown error"
}
