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

// Package topics keeps topic name to type name bookkeeping of a participant
// and detects topics announced with conflicting types.
package topics

import (
	"sort"
	"sync"

	"github.com/VolantMQ/volantdds/guid"
)

// Conflict local endpoint shares topic name with remote endpoint of other type
type Conflict struct {
	Local      guid.GUID
	Topic      string
	RemoteType string
}

// Info summary of topic
type Info struct {
	Name      string
	Types     []string
	Writers   int
	Readers   int
	Endpoints int
}

type member struct {
	typeName string
	local    bool
}

type topic struct {
	members map[guid.GUID]member
}

// Registry of topics seen by participant. Safe for concurrent use
type Registry struct {
	lock   sync.RWMutex
	topics map[string]*topic
	owner  map[guid.GUID]string
}

// NewRegistry creates empty registry
func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]*topic),
		owner:  make(map[guid.GUID]string),
	}
}

// Add endpoint to topic. Returns conflicts of type names between local and
// remote endpoints introduced by this endpoint
func (r *Registry) Add(name, typeName string, g guid.GUID, local bool) []Conflict {
	r.lock.Lock()
	defer r.lock.Unlock()

	if prev, ok := r.owner[g]; ok {
		r.remove(prev, g)
	}

	t, ok := r.topics[name]
	if !ok {
		t = &topic{members: make(map[guid.GUID]member)}
		r.topics[name] = t
	}

	var conflicts []Conflict

	for peer, m := range t.members {
		if m.typeName == typeName || m.local == local {
			continue
		}

		if local {
			conflicts = append(conflicts, Conflict{Local: g, Topic: name, RemoteType: m.typeName})
		} else {
			conflicts = append(conflicts, Conflict{Local: peer, Topic: name, RemoteType: typeName})
		}
	}

	t.members[g] = member{typeName: typeName, local: local}
	r.owner[g] = name

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Local != conflicts[j].Local {
			return conflicts[i].Local.String() < conflicts[j].Local.String()
		}

		return conflicts[i].RemoteType < conflicts[j].RemoteType
	})

	return conflicts
}

// Remove endpoint from its topic
func (r *Registry) Remove(g guid.GUID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if name, ok := r.owner[g]; ok {
		r.remove(name, g)
	}
}

func (r *Registry) remove(name string, g guid.GUID) {
	delete(r.owner, g)

	if t, ok := r.topics[name]; ok {
		delete(t.members, g)

		if len(t.members) == 0 {
			delete(r.topics, name)
		}
	}
}

// Topics summary ordered by name
func (r *Registry) Topics() []Info {
	r.lock.RLock()
	defer r.lock.RUnlock()

	res := make([]Info, 0, len(r.topics))

	for name, t := range r.topics {
		i := Info{Name: name, Endpoints: len(t.members)}
		seen := make(map[string]struct{})

		for g, m := range t.members {
			if g.Entity.Kind.IsWriter() {
				i.Writers++
			} else {
				i.Readers++
			}

			if _, ok := seen[m.typeName]; !ok {
				seen[m.typeName] = struct{}{}
				i.Types = append(i.Types, m.typeName)
			}
		}

		sort.Strings(i.Types)
		res = append(res, i)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})

	return res
}

// Consistent reports whether every endpoint of topic uses the same type
func (r *Registry) Consistent(name string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	t, ok := r.topics[name]
	if !ok {
		return true
	}

	typeName := ""
	first := true

	for _, m := range t.members {
		if first {
			typeName = m.typeName
			first = false
			continue
		}

		if m.typeName != typeName {
			return false
		}
	}

	return true
}
