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

// Package volantdds is a data distribution middleware: domain participants
// discover each other and their writers and readers over multicast or
// websocket transports, match endpoints by topic, type and QoS policies
// and deliver samples through per-pair sessions with optional reliability.
//
// Packages of interest:
//   - participant creates participants, data writers and data readers.
//   - discovery runs participant and endpoint discovery and matching.
//   - session keeps reliable and best-effort delivery sessions of matched pairs.
//   - qos holds policy sets and the requested/offered compatibility check.
//   - guid allocates participant prefixes and entity identifiers.
//   - systree exposes discovered entities and counters over HTTP.
//
// The volantdds command in cmd/volantdds runs a participant from a yaml
// config, creating endpoints listed in it and serving metrics, health and
// systree endpoints.
package volantdds
