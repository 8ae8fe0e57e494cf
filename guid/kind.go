package guid

// EntityKind logical role of the entity
type EntityKind uint8

// nolint: golint
const (
	KindUnknown EntityKind = iota
	KindUserWriter
	KindUserReader
	KindUserTopic
	KindBuiltinWriter
	KindBuiltinReader
	KindBuiltinTopic
	KindPublisher
	KindSubscriber
	KindUser
)

// String get string representation of entity kind
func (k EntityKind) String() string {
	switch k {
	case KindUserWriter:
		return "USER_WRITER"
	case KindUserReader:
		return "USER_READER"
	case KindUserTopic:
		return "USER_TOPIC"
	case KindBuiltinWriter:
		return "BUILTIN_WRITER"
	case KindBuiltinReader:
		return "BUILTIN_READER"
	case KindBuiltinTopic:
		return "BUILTIN_TOPIC"
	case KindPublisher:
		return "PUBLISHER"
	case KindSubscriber:
		return "SUBSCRIBER"
	case KindUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// Tag entity kind byte stored in the last octet of the entity id
type Tag byte

// Tag values as assigned by RTPS (0x0X user, 0xCX builtin) and the
// vendor specific range (0x4X)
const (
	TagUserUnknown          Tag = 0x00
	TagUserWriterWithKey    Tag = 0x02
	TagUserWriterNoKey      Tag = 0x03
	TagUserReaderNoKey      Tag = 0x04
	TagUserReaderWithKey    Tag = 0x07
	TagVendorSubscriber     Tag = 0x41
	TagVendorPublisher      Tag = 0x42
	TagVendorTopic          Tag = 0x45
	TagVendorUser           Tag = 0x4A
	TagBuiltinUnknown       Tag = 0xC0
	TagBuiltinParticipant   Tag = 0xC1
	TagBuiltinWriterWithKey Tag = 0xC2
	TagBuiltinWriterNoKey   Tag = 0xC3
	TagBuiltinReaderNoKey   Tag = 0xC4
	TagBuiltinTopic         Tag = 0xC5
	TagBuiltinReaderWithKey Tag = 0xC7

	maskBuiltin Tag = 0xC0
)

// Classify maps entity kind to its canonical tag.
// For user writer, reader and topic makeBuiltin selects the discovery channel
// flavour of the same role. Kinds this build does not know yield TagUserUnknown.
func Classify(kind EntityKind, makeBuiltin bool) Tag {
	switch kind {
	case KindUserWriter:
		if makeBuiltin {
			return TagBuiltinWriterWithKey
		}
		return TagUserWriterWithKey
	case KindUserReader:
		if makeBuiltin {
			return TagBuiltinReaderWithKey
		}
		return TagUserReaderWithKey
	case KindUserTopic:
		if makeBuiltin {
			return TagBuiltinTopic
		}
		return TagVendorTopic
	case KindBuiltinWriter:
		return TagBuiltinWriterWithKey
	case KindBuiltinReader:
		return TagBuiltinReaderWithKey
	case KindBuiltinTopic:
		return TagBuiltinTopic
	case KindPublisher:
		return TagVendorPublisher
	case KindSubscriber:
		return TagVendorSubscriber
	case KindUser:
		return TagVendorUser
	case KindUnknown:
		return TagUserUnknown
	default:
		return TagUserUnknown
	}
}

// KindOf decodes tag received from the wire.
// Tags from newer peers that are not known here decode to KindUnknown.
func KindOf(t Tag) EntityKind {
	switch t {
	case TagUserWriterWithKey, TagUserWriterNoKey:
		return KindUserWriter
	case TagUserReaderWithKey, TagUserReaderNoKey:
		return KindUserReader
	case TagVendorTopic:
		return KindUserTopic
	case TagBuiltinWriterWithKey, TagBuiltinWriterNoKey:
		return KindBuiltinWriter
	case TagBuiltinReaderWithKey, TagBuiltinReaderNoKey:
		return KindBuiltinReader
	case TagBuiltinTopic:
		return KindBuiltinTopic
	case TagVendorPublisher:
		return KindPublisher
	case TagVendorSubscriber:
		return KindSubscriber
	case TagVendorUser:
		return KindUser
	default:
		return KindUnknown
	}
}

// IsBuiltin tag belongs to discovery channel entities
func (t Tag) IsBuiltin() bool {
	return t&maskBuiltin == maskBuiltin
}

// IsWriter tag denotes data writer either user or builtin
func (t Tag) IsWriter() bool {
	switch KindOf(t) {
	case KindUserWriter, KindBuiltinWriter:
		return true
	}

	return false
}

// IsReader tag denotes data reader either user or builtin
func (t Tag) IsReader() bool {
	switch KindOf(t) {
	case KindUserReader, KindBuiltinReader:
		return true
	}

	return false
}

// IsTopic tag denotes topic either user or builtin
func (t Tag) IsTopic() bool {
	switch KindOf(t) {
	case KindUserTopic, KindBuiltinTopic:
		return true
	}

	return false
}

// IsParticipant tag of participant entity
func (t Tag) IsParticipant() bool {
	return t == TagBuiltinParticipant
}

func (t Tag) String() string {
	if t.IsParticipant() {
		return "PARTICIPANT"
	}

	return KindOf(t).String()
}
