// Package guid builds and decodes the globally unique identifiers carried by
// every participant, topic, publisher, subscriber, writer and reader.
//
// A GUID is a 12 byte participant prefix followed by a 4 byte entity id. The
// prefix starts with the vendor tag and is unique per participant; the entity
// id is unique within the participant and ends with the entity kind tag.
package guid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// PrefixLen length of participant prefix in bytes
	PrefixLen = 12
	// EntityKeyLen length of entity key in bytes
	EntityKeyLen = 3
	// Len total length of encoded GUID
	Len = PrefixLen + EntityKeyLen + 1

	// MaxEntityKey biggest key that fits into the entity id
	MaxEntityKey = 0xFFFFFF
)

// nolint: golint
var (
	ErrInvalidFormat = errors.New("guid: invalid format")
	ErrInvalidLength = errors.New("guid: invalid length")
)

// VendorID two byte vendor tag placed in front of every prefix
type VendorID [2]byte

// Known vendor tags
var (
	VendorUnknown = VendorID{0x00, 0x00}
	VendorOCI     = VendorID{0x01, 0x03}
	VendorVolant  = VendorID{0x01, 0x56}
)

func (v VendorID) String() string {
	return hex.EncodeToString(v[:])
}

// Prefix identifies participant
type Prefix [PrefixLen]byte

// Vendor tag of the prefix
func (p Prefix) Vendor() VendorID {
	return VendorID{p[0], p[1]}
}

// IsZero prefix has not been assigned
func (p Prefix) IsZero() bool {
	return p == Prefix{}
}

func (p Prefix) String() string {
	return hex.EncodeToString(p[0:4]) + "." + hex.EncodeToString(p[4:8]) + "." + hex.EncodeToString(p[8:12])
}

// EntityID identifies entity within participant
type EntityID struct {
	Key  [EntityKeyLen]byte
	Kind Tag
}

// Reserved entity ids of the participant itself and of the discovery channel
// writers and readers
var (
	EntityUnknown           = EntityID{}
	EntityParticipant       = EntityID{Key: [3]byte{0x00, 0x00, 0x01}, Kind: TagBuiltinParticipant}
	EntitySPDPWriter        = EntityID{Key: [3]byte{0x00, 0x01, 0x00}, Kind: TagBuiltinWriterWithKey}
	EntitySPDPReader        = EntityID{Key: [3]byte{0x00, 0x01, 0x00}, Kind: TagBuiltinReaderWithKey}
	EntitySEDPPubWriter     = EntityID{Key: [3]byte{0x00, 0x00, 0x03}, Kind: TagBuiltinWriterWithKey}
	EntitySEDPPubReader     = EntityID{Key: [3]byte{0x00, 0x00, 0x03}, Kind: TagBuiltinReaderWithKey}
	EntitySEDPSubWriter     = EntityID{Key: [3]byte{0x00, 0x00, 0x04}, Kind: TagBuiltinWriterWithKey}
	EntitySEDPSubReader     = EntityID{Key: [3]byte{0x00, 0x00, 0x04}, Kind: TagBuiltinReaderWithKey}
	EntityTopicWriter       = EntityID{Key: [3]byte{0x00, 0x00, 0x02}, Kind: TagBuiltinWriterWithKey}
	EntityTopicReader       = EntityID{Key: [3]byte{0x00, 0x00, 0x02}, Kind: TagBuiltinReaderWithKey}
	EntityParticipantMsgOut = EntityID{Key: [3]byte{0x00, 0x02, 0x00}, Kind: TagBuiltinWriterWithKey}
	EntityParticipantMsgIn  = EntityID{Key: [3]byte{0x00, 0x02, 0x00}, Kind: TagBuiltinReaderWithKey}
)

var reserved = map[EntityID]struct{}{
	EntityParticipant:       {},
	EntitySPDPWriter:        {},
	EntitySPDPReader:        {},
	EntitySEDPPubWriter:     {},
	EntitySEDPPubReader:     {},
	EntitySEDPSubWriter:     {},
	EntitySEDPSubReader:     {},
	EntityTopicWriter:       {},
	EntityTopicReader:       {},
	EntityParticipantMsgOut: {},
	EntityParticipantMsgIn:  {},
}

// IsReserved entity id belongs to participant or its discovery channel
func (e EntityID) IsReserved() bool {
	_, ok := reserved[e]
	return ok
}

// BuildEntityID compose entity id from key and kind tag produced by Classify
func BuildEntityID(kind EntityKind, makeBuiltin bool, key uint32) EntityID {
	id := EntityID{Kind: Classify(kind, makeBuiltin)}
	fillKey(id.Key[:], key)

	return id
}

func fillKey(b []byte, value uint32) {
	for i := range b {
		shift := uint(len(b)-i-1) << 3
		b[i] = byte(0xff & (value >> shift))
	}
}

// EntityKey decoded entity key
func (e EntityID) EntityKey() uint32 {
	return uint32(e.Key[0])<<16 | uint32(e.Key[1])<<8 | uint32(e.Key[2])
}

// EntityKind decoded entity kind
func (e EntityID) EntityKind() EntityKind {
	return KindOf(e.Kind)
}

// IsUnknown all zero entity id
func (e EntityID) IsUnknown() bool {
	return e == EntityUnknown
}

// Uint32 entity id in network order
func (e EntityID) Uint32() uint32 {
	return e.EntityKey()<<8 | uint32(e.Kind)
}

// EntityIDFromUint32 reverse of Uint32
func EntityIDFromUint32(v uint32) EntityID {
	var id EntityID
	fillKey(id.Key[:], v>>8)
	id.Kind = Tag(v & 0xff)

	return id
}

func (e EntityID) String() string {
	return fmt.Sprintf("%08x", e.Uint32())
}

// GUID global unique identifier
type GUID struct {
	Prefix Prefix
	Entity EntityID
}

// Unknown returns the sentinel GUID with all-zero entity id
func Unknown() GUID {
	return GUID{}
}

// New GUID from prefix and entity id
func New(p Prefix, e EntityID) GUID {
	return GUID{Prefix: p, Entity: e}
}

// ParticipantGUID GUID of the participant owning prefix
func ParticipantGUID(p Prefix) GUID {
	return GUID{Prefix: p, Entity: EntityParticipant}
}

// IsUnknown GUID does not denote any real entity
func (g GUID) IsUnknown() bool {
	return g.Entity.IsUnknown()
}

// Participant GUID of the participant owning this entity
func (g GUID) Participant() GUID {
	return ParticipantGUID(g.Prefix)
}

func (g GUID) String() string {
	return g.Prefix.String() + "|" + g.Entity.String()
}

// Bytes encoded GUID
func (g GUID) Bytes() []byte {
	b := make([]byte, Len)
	g.Put(b)

	return b
}

// Put encode GUID into b which must be at least Len bytes long
func (g GUID) Put(b []byte) {
	copy(b, g.Prefix[:])
	binary.BigEndian.PutUint32(b[PrefixLen:], g.Entity.Uint32())
}

// FromBytes decode GUID
func FromBytes(b []byte) (GUID, error) {
	var g GUID
	if len(b) < Len {
		return g, ErrInvalidLength
	}

	copy(g.Prefix[:], b[:PrefixLen])
	g.Entity = EntityIDFromUint32(binary.BigEndian.Uint32(b[PrefixLen:]))

	return g, nil
}

// Parse GUID from its String form
func Parse(s string) (GUID, error) {
	var g GUID

	parts := strings.Split(s, "|")
	if len(parts) != 2 {
		return g, ErrInvalidFormat
	}

	prefix, err := hex.DecodeString(strings.Replace(parts[0], ".", "", -1))
	if err != nil || len(prefix) != PrefixLen {
		return g, ErrInvalidFormat
	}

	entity, err := hex.DecodeString(parts[1])
	if err != nil || len(entity) != 4 {
		return g, ErrInvalidFormat
	}

	copy(g.Prefix[:], prefix)
	g.Entity = EntityIDFromUint32(binary.BigEndian.Uint32(entity))

	return g, nil
}
