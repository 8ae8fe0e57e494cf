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

package packet

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
)

var testPrefix = guid.Prefix{0x01, 0x56, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

func testWriter() guid.GUID {
	return guid.New(testPrefix, guid.BuildEntityID(guid.KindUserWriter, false, 1))
}

func testReader() guid.GUID {
	return guid.New(guid.Prefix{0x01, 0x56, 9}, guid.BuildEntityID(guid.KindUserReader, false, 2))
}

func TestEndpointAnnounce(t *testing.T) {
	msg := NewEndpointAnnounce()
	msg.GUID = testWriter()
	msg.Instance = uuid.New()
	msg.Sequence = 3
	msg.Topic = "Square"
	msg.TypeName = "ShapeType"
	msg.QoS = qos.DefaultWriter()
	msg.QoS.Partition = []string{"a", "b*"}
	msg.QoS.Deadline = time.Second
	msg.QoS.UserData = []byte{0xde, 0xad}

	buf, err := Encode(msg)
	require.NoError(t, err)
	require.Equal(t, msg.Size(), len(buf))
	require.Equal(t, Magic[:], buf[:4])

	typ, err := PeekType(buf)
	require.NoError(t, err)
	require.Equal(t, ENDPOINT_ANNOUNCE, typ)

	m, err := Decode(buf)
	require.NoError(t, err)

	got, ok := m.(*EndpointAnnounce)
	require.True(t, ok)
	require.Equal(t, msg.GUID, got.GUID)
	require.Equal(t, msg.Instance, got.Instance)
	require.Equal(t, msg.Topic, got.Topic)
	require.Equal(t, msg.TypeName, got.TypeName)
	require.True(t, msg.QoS.Equal(&got.QoS))
}

func TestAckNack(t *testing.T) {
	msg := NewAckNack()
	msg.Writer = testWriter()
	msg.Reader = testReader()
	msg.Highest = 2
	msg.Missing = []uint64{3, 7}

	buf, err := Encode(msg)
	require.NoError(t, err)

	m, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, msg, m)
}

func TestEncodeValidates(t *testing.T) {
	msg := NewData()
	msg.Writer = testWriter()
	msg.Reader = testReader()

	_, err := Encode(msg)
	require.Equal(t, ErrInvalidSequence, err)

	msg.Sequence = 1
	msg.Reader = testWriter()
	_, err = Encode(msg)
	require.Equal(t, ErrInvalidGUID, err)

	ack := NewAckNack()
	ack.Writer = testWriter()
	ack.Reader = testReader()
	ack.Highest = 5
	ack.Missing = []uint64{4}
	_, err = Encode(ack)
	require.Equal(t, ErrInvalidSequence, err)

	buf := make([]byte, 3)
	_, err = NewHeartbeat().Encode(buf)
	require.Error(t, err)
}

func TestInsufficientBuffer(t *testing.T) {
	msg := NewParticipantWithdraw()
	msg.Prefix = testPrefix
	msg.Generation = 1

	_, err := msg.Encode(make([]byte, msg.Size()-1))
	require.Equal(t, ErrInsufficientBufferSize, err)
}

func TestDecodeMalformed(t *testing.T) {
	announce := NewParticipantAnnounce()
	announce.Prefix = testPrefix
	announce.Instance = uuid.New()
	announce.Sequence = 1
	announce.Lease = 10 * time.Second
	announce.Locators = []string{"udp://127.0.0.1:7400"}

	good, err := Encode(announce)
	require.NoError(t, err)

	cases := []struct {
		name string
		buf  []byte
		err  error
	}{
		{"empty", nil, ErrInsufficientDataSize},
		{"bad magic", append([]byte("XDDS"), good[4:]...), ErrInvalidMagic},
		{"bad version", append(append([]byte{}, good[:4]...), append([]byte{9}, good[5:]...)...), ErrInvalidProtocolVersion},
		{"bad type", append(append([]byte{}, good[:5]...), append([]byte{0xFF}, good[6:]...)...), ErrInvalidMessageType},
		{"truncated", good[:len(good)-3], ErrInsufficientDataSize},
		{"trailing", append(append([]byte{}, good...), 0), ErrInvalidLength},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode(c.buf)
			require.Equal(t, c.err, err)
		})
	}
}

func TestDecodeRejectsZeroPrefix(t *testing.T) {
	msg := NewParticipantAnnounce()
	msg.Prefix = testPrefix
	msg.Sequence = 1

	buf, err := Encode(msg)
	require.NoError(t, err)

	// wipe prefix
	for i := HeaderLen; i < HeaderLen+guid.PrefixLen; i++ {
		buf[i] = 0
	}

	_, err = Decode(buf)
	require.Equal(t, ErrInvalidGUID, err)
}

func TestDecodeHugeList(t *testing.T) {
	w := &writer{buf: make([]byte, 128)}
	encodeHeader(w, GAP)
	w.guid(testWriter())
	w.guid(testReader())
	w.uvarint(MaxElements + 1)

	_, err := Decode(w.buf[:w.off])
	require.Equal(t, ErrTooManyElements, err)
}

func TestTypeNames(t *testing.T) {
	require.Equal(t, "HEARTBEAT", HEARTBEAT.Name())
	require.Equal(t, "UNKNOWN", Type(77).Name())
	require.True(t, ENDPOINT_WITHDRAW.IsDiscovery())
	require.False(t, DATA.IsDiscovery())
	require.Equal(t, "Insufficient data size", ErrInsufficientDataSize.Error())
}
