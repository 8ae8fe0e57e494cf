package mem

import (
	"sort"
	"sync"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/persistence/types"
)

type dbStatus struct {
	done chan struct{}
	once sync.Once
}

type impl struct {
	status dbStatus

	h   history
	sys system
}

type history struct {
	status *dbStatus
	lock   sync.RWMutex
	data   map[guid.GUID][]persistenceTypes.Sample
}

type system struct {
	status *dbStatus
	lock   sync.Mutex
	state  *persistenceTypes.SystemState
}

var _ persistenceTypes.Provider = (*impl)(nil)
var _ persistenceTypes.History = (*history)(nil)
var _ persistenceTypes.System = (*system)(nil)

// New allocate new persistence provider of in memory type
func New(*persistenceTypes.MemConfig) (persistenceTypes.Provider, error) {
	pl := &impl{}

	pl.status.done = make(chan struct{})

	pl.h = history{
		status: &pl.status,
		data:   make(map[guid.GUID][]persistenceTypes.Sample),
	}

	pl.sys = system{
		status: &pl.status,
	}

	return pl, nil
}

func (s *dbStatus) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// History
func (p *impl) History() (persistenceTypes.History, error) {
	if p.status.closed() {
		return nil, persistenceTypes.ErrNotOpen
	}

	return &p.h, nil
}

// System
func (p *impl) System() (persistenceTypes.System, error) {
	if p.status.closed() {
		return nil, persistenceTypes.ErrNotOpen
	}

	return &p.sys, nil
}

// Shutdown provider
func (p *impl) Shutdown() error {
	p.status.once.Do(func() {
		close(p.status.done)
	})

	return nil
}

func (h *history) Store(writer guid.GUID, s persistenceTypes.Sample) error {
	if h.status.closed() {
		return persistenceTypes.ErrNotOpen
	}

	if s.Sequence == 0 {
		return persistenceTypes.ErrInvalidArgs
	}

	s.Payload = append([]byte(nil), s.Payload...)

	h.lock.Lock()
	defer h.lock.Unlock()

	samples := h.data[writer]

	idx := sort.Search(len(samples), func(i int) bool {
		return samples[i].Sequence >= s.Sequence
	})

	switch {
	case idx < len(samples) && samples[idx].Sequence == s.Sequence:
		samples[idx] = s
	case idx == len(samples):
		samples = append(samples, s)
	default:
		samples = append(samples, persistenceTypes.Sample{})
		copy(samples[idx+1:], samples[idx:])
		samples[idx] = s
	}

	h.data[writer] = samples

	return nil
}

func (h *history) ForEach(writer guid.GUID, fn func(persistenceTypes.Sample) error) error {
	if h.status.closed() {
		return persistenceTypes.ErrNotOpen
	}

	h.lock.RLock()
	samples := append([]persistenceTypes.Sample(nil), h.data[writer]...)
	h.lock.RUnlock()

	for _, s := range samples {
		if err := fn(s); err != nil {
			return err
		}
	}

	return nil
}

func (h *history) Trim(writer guid.GUID, keep int) error {
	if h.status.closed() {
		return persistenceTypes.ErrNotOpen
	}

	if keep <= 0 {
		return nil
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if samples := h.data[writer]; len(samples) > keep {
		h.data[writer] = append([]persistenceTypes.Sample(nil), samples[len(samples)-keep:]...)
	}

	return nil
}

func (h *history) Delete(writer guid.GUID) error {
	if h.status.closed() {
		return persistenceTypes.ErrNotOpen
	}

	h.lock.Lock()
	delete(h.data, writer)
	h.lock.Unlock()

	return nil
}

func (h *history) Writers() ([]guid.GUID, error) {
	if h.status.closed() {
		return nil, persistenceTypes.ErrNotOpen
	}

	h.lock.RLock()
	defer h.lock.RUnlock()

	writers := make([]guid.GUID, 0, len(h.data))
	for w := range h.data {
		writers = append(writers, w)
	}

	return writers, nil
}

func (s *system) GetInfo() (*persistenceTypes.SystemState, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state == nil {
		return nil, persistenceTypes.ErrNotInitialized
	}

	st := *s.state

	return &st, nil
}

func (s *system) SetInfo(state *persistenceTypes.SystemState) error {
	if state == nil {
		return persistenceTypes.ErrInvalidArgs
	}

	s.lock.Lock()
	st := *state
	s.state = &st
	s.lock.Unlock()

	return nil
}
