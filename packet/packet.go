// Copyright (c) 2017 The VolantMQ Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package packet implements encoding and decoding of discovery and
// delivery messages exchanged between participants.
//
// Every message starts with fixed header:
//
//	[0:4] magic "VDDS"
//	[4]   protocol version
//	[5]   message type
//
// Followed by body. Integers are big-endian, strings, byte slices and lists
// are prefixed with uvarint length.
package packet

// HeaderLen size of fixed header
const HeaderLen = 6

// Provider is an interface defined for all message types.
type Provider interface {
	// Type returns the message type
	Type() Type

	// Desc returns a string description of the message type
	Desc() string

	// Size of whole message including header
	Size() int

	// Encode writes the message bytes into the byte array from the argument. It
	// returns the number of bytes encoded and whether there's any errors along
	// the way. If there's any errors, then the byte slice and count should be
	// considered invalid.
	Encode([]byte) (int, error)

	// validate message fields prior encode and after decode
	validate() error

	encodeMessage(*writer)

	decodeMessage(*reader)
}

type header struct {
	mType Type
}

// Type returns the message type
func (h *header) Type() Type {
	return h.mType
}

// Desc returns a string description of the message type
func (h *header) Desc() string {
	return h.mType.Desc()
}

func encodeHeader(w *writer, t Type) {
	w.raw(Magic[:])
	w.byte(byte(ProtocolV1))
	w.byte(byte(t))
}

func size(m Provider) int {
	w := &writer{}
	encodeHeader(w, m.Type())
	m.encodeMessage(w)

	return w.off
}

func encode(m Provider, buf []byte) (int, error) {
	if err := m.validate(); err != nil {
		return 0, err
	}

	sz := size(m)
	if len(buf) < sz {
		return 0, ErrInsufficientBufferSize
	}

	w := &writer{buf: buf[:sz]}
	encodeHeader(w, m.Type())
	m.encodeMessage(w)

	return w.off, nil
}

// New creates a new message based on the message type
func New(t Type) (Provider, error) {
	switch t {
	case PARTICIPANT_ANNOUNCE:
		return NewParticipantAnnounce(), nil
	case PARTICIPANT_WITHDRAW:
		return NewParticipantWithdraw(), nil
	case ENDPOINT_ANNOUNCE:
		return NewEndpointAnnounce(), nil
	case ENDPOINT_WITHDRAW:
		return NewEndpointWithdraw(), nil
	case DATA:
		return NewData(), nil
	case HEARTBEAT:
		return NewHeartbeat(), nil
	case ACKNACK:
		return NewAckNack(), nil
	case GAP:
		return NewGap(), nil
	}

	return nil, ErrInvalidMessageType
}

// Encode message into newly allocated buffer
func Encode(m Provider) ([]byte, error) {
	buf := make([]byte, m.Size())

	n, err := m.Encode(buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// PeekType reads message type from header without decoding body
func PeekType(buf []byte) (Type, error) {
	if len(buf) < HeaderLen {
		return RESERVED, ErrInsufficientDataSize
	}

	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return RESERVED, ErrInvalidMagic
	}

	if ProtocolVersion(buf[4]) != ProtocolV1 {
		return RESERVED, ErrInvalidProtocolVersion
	}

	t := Type(buf[5])
	if !t.Valid() {
		return RESERVED, ErrInvalidMessageType
	}

	return t, nil
}

// Decode message from buffer. The whole buffer must be consumed by single message
func Decode(buf []byte) (Provider, error) {
	t, err := PeekType(buf)
	if err != nil {
		return nil, err
	}

	m, err := New(t)
	if err != nil {
		return nil, err
	}

	r := &reader{buf: buf, off: HeaderLen}
	m.decodeMessage(r)

	if r.err != nil {
		return nil, r.err
	}

	if r.remaining() != 0 {
		return nil, ErrInvalidLength
	}

	if err = m.validate(); err != nil {
		return nil, err
	}

	return m, nil
}
