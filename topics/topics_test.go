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

package topics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/volantdds/guid"
)

func endpoint(p byte, kind guid.EntityKind, key uint32) guid.GUID {
	return guid.New(guid.Prefix{0x01, 0x56, p}, guid.BuildEntityID(kind, false, key))
}

func TestRegistryConsistent(t *testing.T) {
	r := NewRegistry()

	w := endpoint(1, guid.KindUserWriter, 1)
	rd := endpoint(2, guid.KindUserReader, 1)

	require.Empty(t, r.Add("temp", "Temperature", w, true))
	require.Empty(t, r.Add("temp", "Temperature", rd, false))
	require.True(t, r.Consistent("temp"))
	require.True(t, r.Consistent("unknown"))

	info := r.Topics()
	require.Len(t, info, 1)
	require.Equal(t, Info{Name: "temp", Types: []string{"Temperature"}, Writers: 1, Readers: 1, Endpoints: 2}, info[0])
}

func TestRegistryRemoteConflict(t *testing.T) {
	r := NewRegistry()

	local := endpoint(1, guid.KindUserWriter, 1)
	remote := endpoint(2, guid.KindUserReader, 1)

	require.Empty(t, r.Add("temp", "Temperature", local, true))

	c := r.Add("temp", "Humidity", remote, false)
	require.Equal(t, []Conflict{{Local: local, Topic: "temp", RemoteType: "Humidity"}}, c)
	require.False(t, r.Consistent("temp"))
}

func TestRegistryLocalConflict(t *testing.T) {
	r := NewRegistry()

	remote := endpoint(2, guid.KindUserReader, 1)
	local := endpoint(1, guid.KindUserWriter, 1)

	require.Empty(t, r.Add("temp", "Humidity", remote, false))

	c := r.Add("temp", "Temperature", local, true)
	require.Equal(t, []Conflict{{Local: local, Topic: "temp", RemoteType: "Humidity"}}, c)
}

func TestRegistrySameSideNoConflict(t *testing.T) {
	r := NewRegistry()

	require.Empty(t, r.Add("temp", "A", endpoint(2, guid.KindUserReader, 1), false))
	require.Empty(t, r.Add("temp", "B", endpoint(3, guid.KindUserReader, 1), false))
	require.False(t, r.Consistent("temp"))
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()

	w := endpoint(1, guid.KindUserWriter, 1)
	r.Add("temp", "Temperature", w, true)
	r.Remove(w)
	r.Remove(w)

	require.Empty(t, r.Topics())
}

func TestRegistryMove(t *testing.T) {
	r := NewRegistry()

	w := endpoint(1, guid.KindUserWriter, 1)
	r.Add("a", "T", w, true)
	r.Add("b", "T", w, true)

	info := r.Topics()
	require.Len(t, info, 1)
	require.Equal(t, "b", info[0].Name)
}
