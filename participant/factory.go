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

package participant

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/VolantMQ/volantdds/guid"
)

// Factory creates participants with unique prefixes of one vendor
type Factory struct {
	allocator    *guid.PrefixAllocator
	lock         sync.Mutex
	participants map[guid.Prefix]*Participant
}

// NewFactory creates factory handing out prefixes tagged with vendor
func NewFactory(vendor guid.VendorID, opts ...guid.PrefixOption) *Factory {
	return &Factory{
		allocator:    guid.NewPrefixAllocator(vendor, opts...),
		participants: make(map[guid.Prefix]*Participant),
	}
}

// Create participant and start its discovery
func (f *Factory) Create(cfg Config) (*Participant, error) {
	prefix, err := f.allocator.Allocate()
	if err != nil {
		return nil, err
	}

	p, err := newParticipant(prefix, cfg)
	if err != nil {
		f.allocator.Release(prefix)
		return nil, err
	}

	p.onClose = f.remove

	f.lock.Lock()
	f.participants[prefix] = p
	f.lock.Unlock()

	p.start()

	return p, nil
}

func (f *Factory) remove(p *Participant) {
	f.lock.Lock()
	delete(f.participants, p.prefix)
	f.lock.Unlock()

	f.allocator.Release(p.prefix)
}

// Participants alive, ordered by prefix
func (f *Factory) Participants() []*Participant {
	f.lock.Lock()
	res := make([]*Participant, 0, len(f.participants))
	for _, p := range f.participants {
		res = append(res, p)
	}
	f.lock.Unlock()

	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].prefix[:], res[j].prefix[:]) < 0
	})

	return res
}

// Shutdown closes every participant
func (f *Factory) Shutdown(ctx context.Context) error {
	var err error

	for _, p := range f.Participants() {
		err = multierr.Append(err, p.Close(ctx))
	}

	return err
}
