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
	"github.com/VolantMQ/volantdds/guid"
)

// Data sample sent by writer to single matched reader
type Data struct {
	header

	Writer    guid.GUID
	Reader    guid.GUID
	Sequence  uint64
	Timestamp int64
	Payload   []byte
}

// Heartbeat writer advertises sequences [First, Last] still available
type Heartbeat struct {
	header

	Writer guid.GUID
	Reader guid.GUID
	First  uint64
	Last   uint64
}

// AckNack reader acknowledges every sequence up to Highest and
// requests retransmission of Missing
type AckNack struct {
	header

	Reader  guid.GUID
	Writer  guid.GUID
	Highest uint64
	Missing []uint64
}

// Gap writer declares sequences which will never be delivered
type Gap struct {
	header

	Writer    guid.GUID
	Reader    guid.GUID
	Sequences []uint64
}

var _ Provider = (*Data)(nil)
var _ Provider = (*Heartbeat)(nil)
var _ Provider = (*AckNack)(nil)
var _ Provider = (*Gap)(nil)

// NewData creates a new DATA message
func NewData() *Data {
	return &Data{header: header{mType: DATA}}
}

// NewHeartbeat creates a new HEARTBEAT message
func NewHeartbeat() *Heartbeat {
	return &Heartbeat{header: header{mType: HEARTBEAT}}
}

// NewAckNack creates a new ACKNACK message
func NewAckNack() *AckNack {
	return &AckNack{header: header{mType: ACKNACK}}
}

// NewGap creates a new GAP message
func NewGap() *Gap {
	return &Gap{header: header{mType: GAP}}
}

func validatePair(writer, reader guid.GUID) error {
	if writer.IsUnknown() || !writer.Entity.Kind.IsWriter() {
		return ErrInvalidGUID
	}

	if reader.IsUnknown() || !reader.Entity.Kind.IsReader() {
		return ErrInvalidGUID
	}

	return nil
}

// Size of message
func (msg *Data) Size() int {
	return size(msg)
}

// Encode message
func (msg *Data) Encode(buf []byte) (int, error) {
	return encode(msg, buf)
}

func (msg *Data) validate() error {
	if err := validatePair(msg.Writer, msg.Reader); err != nil {
		return err
	}

	if msg.Sequence == 0 {
		return ErrInvalidSequence
	}

	if len(msg.Payload) > MaxLPString {
		return ErrInvalidLPStringSize
	}

	return nil
}

func (msg *Data) encodeMessage(w *writer) {
	w.guid(msg.Writer)
	w.guid(msg.Reader)
	w.uint64(msg.Sequence)
	w.uint64(uint64(msg.Timestamp))
	w.bytes(msg.Payload)
}

func (msg *Data) decodeMessage(r *reader) {
	msg.Writer = r.guid()
	msg.Reader = r.guid()
	msg.Sequence = r.uint64()
	msg.Timestamp = int64(r.uint64())
	msg.Payload = r.bytes()
}

// Size of message
func (msg *Heartbeat) Size() int {
	return size(msg)
}

// Encode message
func (msg *Heartbeat) Encode(buf []byte) (int, error) {
	return encode(msg, buf)
}

func (msg *Heartbeat) validate() error {
	if err := validatePair(msg.Writer, msg.Reader); err != nil {
		return err
	}

	// empty history is advertised as First = Last + 1
	if msg.First == 0 || msg.First > msg.Last+1 {
		return ErrInvalidSequence
	}

	return nil
}

func (msg *Heartbeat) encodeMessage(w *writer) {
	w.guid(msg.Writer)
	w.guid(msg.Reader)
	w.uint64(msg.First)
	w.uint64(msg.Last)
}

func (msg *Heartbeat) decodeMessage(r *reader) {
	msg.Writer = r.guid()
	msg.Reader = r.guid()
	msg.First = r.uint64()
	msg.Last = r.uint64()
}

// Size of message
func (msg *AckNack) Size() int {
	return size(msg)
}

// Encode message
func (msg *AckNack) Encode(buf []byte) (int, error) {
	return encode(msg, buf)
}

func (msg *AckNack) validate() error {
	if err := validatePair(msg.Writer, msg.Reader); err != nil {
		return err
	}

	if len(msg.Missing) > MaxElements {
		return ErrTooManyElements
	}

	for _, s := range msg.Missing {
		if s <= msg.Highest {
			return ErrInvalidSequence
		}
	}

	return nil
}

func (msg *AckNack) encodeMessage(w *writer) {
	w.guid(msg.Reader)
	w.guid(msg.Writer)
	w.uint64(msg.Highest)
	w.sequences(msg.Missing)
}

func (msg *AckNack) decodeMessage(r *reader) {
	msg.Reader = r.guid()
	msg.Writer = r.guid()
	msg.Highest = r.uint64()
	msg.Missing = r.sequences()
}

// Size of message
func (msg *Gap) Size() int {
	return size(msg)
}

// Encode message
func (msg *Gap) Encode(buf []byte) (int, error) {
	return encode(msg, buf)
}

func (msg *Gap) validate() error {
	if err := validatePair(msg.Writer, msg.Reader); err != nil {
		return err
	}

	if len(msg.Sequences) == 0 {
		return ErrInvalidSequence
	}

	if len(msg.Sequences) > MaxElements {
		return ErrTooManyElements
	}

	for _, s := range msg.Sequences {
		if s == 0 {
			return ErrInvalidSequence
		}
	}

	return nil
}

func (msg *Gap) encodeMessage(w *writer) {
	w.guid(msg.Writer)
	w.guid(msg.Reader)
	w.sequences(msg.Sequences)
}

func (msg *Gap) decodeMessage(r *reader) {
	msg.Writer = r.guid()
	msg.Reader = r.guid()
	msg.Sequences = r.sequences()
}
