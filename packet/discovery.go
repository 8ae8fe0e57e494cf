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
	"time"

	"github.com/google/uuid"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/qos"
)

// ParticipantAnnounce participant presence announcement
type ParticipantAnnounce struct {
	header

	Prefix   guid.Prefix
	Instance uuid.UUID
	Sequence uint64
	Domain   uint32
	Lease    time.Duration
	Locators []string
	UserData []byte
}

// ParticipantWithdraw participant leaves domain
type ParticipantWithdraw struct {
	header

	Prefix     guid.Prefix
	Instance   uuid.UUID
	Generation uint64
}

// EndpointAnnounce writer or reader announcement
type EndpointAnnounce struct {
	header

	GUID     guid.GUID
	Instance uuid.UUID
	Sequence uint64
	Topic    string
	TypeName string
	QoS      qos.Policies
}

// EndpointWithdraw writer or reader deleted
type EndpointWithdraw struct {
	header

	GUID       guid.GUID
	Instance   uuid.UUID
	Generation uint64
}

var _ Provider = (*ParticipantAnnounce)(nil)
var _ Provider = (*ParticipantWithdraw)(nil)
var _ Provider = (*EndpointAnnounce)(nil)
var _ Provider = (*EndpointWithdraw)(nil)

// NewParticipantAnnounce creates a new PARTICIPANT_ANNOUNCE message
func NewParticipantAnnounce() *ParticipantAnnounce {
	return &ParticipantAnnounce{header: header{mType: PARTICIPANT_ANNOUNCE}}
}

// NewParticipantWithdraw creates a new PARTICIPANT_WITHDRAW message
func NewParticipantWithdraw() *ParticipantWithdraw {
	return &ParticipantWithdraw{header: header{mType: PARTICIPANT_WITHDRAW}}
}

// NewEndpointAnnounce creates a new ENDPOINT_ANNOUNCE message
func NewEndpointAnnounce() *EndpointAnnounce {
	return &EndpointAnnounce{header: header{mType: ENDPOINT_ANNOUNCE}}
}

// NewEndpointWithdraw creates a new ENDPOINT_WITHDRAW message
func NewEndpointWithdraw() *EndpointWithdraw {
	return &EndpointWithdraw{header: header{mType: ENDPOINT_WITHDRAW}}
}

func validateEndpointGUID(g guid.GUID) error {
	if g.Prefix.IsZero() || g.IsUnknown() {
		return ErrInvalidGUID
	}

	if !g.Entity.Kind.IsWriter() && !g.Entity.Kind.IsReader() {
		return ErrInvalidGUID
	}

	return nil
}

// Size of message
func (msg *ParticipantAnnounce) Size() int {
	return size(msg)
}

// Encode message
func (msg *ParticipantAnnounce) Encode(buf []byte) (int, error) {
	return encode(msg, buf)
}

func (msg *ParticipantAnnounce) validate() error {
	if msg.Prefix.IsZero() {
		return ErrInvalidGUID
	}

	if msg.Sequence == 0 {
		return ErrInvalidSequence
	}

	if msg.Lease < 0 {
		return ErrInvalid
	}

	if len(msg.Locators) > MaxElements {
		return ErrTooManyElements
	}

	return nil
}

func (msg *ParticipantAnnounce) encodeMessage(w *writer) {
	w.prefix(msg.Prefix)
	w.uuid(msg.Instance)
	w.uint64(msg.Sequence)
	w.uint32(msg.Domain)
	w.duration(msg.Lease)
	w.strings(msg.Locators)
	w.bytes(msg.UserData)
}

func (msg *ParticipantAnnounce) decodeMessage(r *reader) {
	msg.Prefix = r.prefix()
	msg.Instance = r.uuid()
	msg.Sequence = r.uint64()
	msg.Domain = r.uint32()
	msg.Lease = r.duration()
	msg.Locators = r.strings()
	msg.UserData = r.bytes()
}

// Size of message
func (msg *ParticipantWithdraw) Size() int {
	return size(msg)
}

// Encode message
func (msg *ParticipantWithdraw) Encode(buf []byte) (int, error) {
	return encode(msg, buf)
}

func (msg *ParticipantWithdraw) validate() error {
	if msg.Prefix.IsZero() {
		return ErrInvalidGUID
	}

	return nil
}

func (msg *ParticipantWithdraw) encodeMessage(w *writer) {
	w.prefix(msg.Prefix)
	w.uuid(msg.Instance)
	w.uint64(msg.Generation)
}

func (msg *ParticipantWithdraw) decodeMessage(r *reader) {
	msg.Prefix = r.prefix()
	msg.Instance = r.uuid()
	msg.Generation = r.uint64()
}

// Size of message
func (msg *EndpointAnnounce) Size() int {
	return size(msg)
}

// Encode message
func (msg *EndpointAnnounce) Encode(buf []byte) (int, error) {
	return encode(msg, buf)
}

func (msg *EndpointAnnounce) validate() error {
	if err := validateEndpointGUID(msg.GUID); err != nil {
		return err
	}

	if msg.Sequence == 0 {
		return ErrInvalidSequence
	}

	if len(msg.Topic) == 0 || len(msg.Topic) > MaxLPString || len(msg.TypeName) > MaxLPString {
		return ErrInvalidTopic
	}

	return validatePolicies(&msg.QoS)
}

func (msg *EndpointAnnounce) encodeMessage(w *writer) {
	w.guid(msg.GUID)
	w.uuid(msg.Instance)
	w.uint64(msg.Sequence)
	w.string(msg.Topic)
	w.string(msg.TypeName)
	encodePolicies(w, &msg.QoS)
}

func (msg *EndpointAnnounce) decodeMessage(r *reader) {
	msg.GUID = r.guid()
	msg.Instance = r.uuid()
	msg.Sequence = r.uint64()
	msg.Topic = r.string()
	msg.TypeName = r.string()
	msg.QoS = decodePolicies(r)
}

// Size of message
func (msg *EndpointWithdraw) Size() int {
	return size(msg)
}

// Encode message
func (msg *EndpointWithdraw) Encode(buf []byte) (int, error) {
	return encode(msg, buf)
}

func (msg *EndpointWithdraw) validate() error {
	return validateEndpointGUID(msg.GUID)
}

func (msg *EndpointWithdraw) encodeMessage(w *writer) {
	w.guid(msg.GUID)
	w.uuid(msg.Instance)
	w.uint64(msg.Generation)
}

func (msg *EndpointWithdraw) decodeMessage(r *reader) {
	msg.GUID = r.guid()
	msg.Instance = r.uuid()
	msg.Generation = r.uint64()
}
