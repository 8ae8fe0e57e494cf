package guid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// nolint: golint
var (
	ErrKeysExhausted   = errors.New("guid: entity keys exhausted")
	ErrPrefixExhausted = errors.New("guid: unable to allocate unique prefix")
)

const prefixRetries = 16

// PrefixAllocator allocates participant prefixes.
// Prefix layout:
//
//	[0:2]   vendor tag
//	[2:6]   allocator discriminant (host, pid, random UUID)
//	[6:8]   allocation counter
//	[8:10]  milliseconds since epoch, low bits
//	[10:12] random
type PrefixAllocator struct {
	vendor       VendorID
	discriminant [4]byte
	now          func() time.Time
	random       io.Reader

	lock    sync.Mutex
	counter uint16
	issued  map[Prefix]struct{}
}

// PrefixOption tunes allocator
type PrefixOption func(*PrefixAllocator)

// WithClock replaces time source used for timestamp bits
func WithClock(now func() time.Time) PrefixOption {
	return func(a *PrefixAllocator) {
		a.now = now
	}
}

// WithRandom replaces source of random bits
func WithRandom(r io.Reader) PrefixOption {
	return func(a *PrefixAllocator) {
		a.random = r
	}
}

// WithDiscriminant replaces allocator discriminant
func WithDiscriminant(d [4]byte) PrefixOption {
	return func(a *PrefixAllocator) {
		a.discriminant = d
	}
}

// NewPrefixAllocator allocator of participant prefixes with given vendor tag
func NewPrefixAllocator(vendor VendorID, opts ...PrefixOption) *PrefixAllocator {
	a := &PrefixAllocator{
		vendor:       vendor,
		discriminant: processDiscriminant(),
		now:          time.Now,
		random:       rand.Reader,
		issued:       make(map[Prefix]struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func processDiscriminant() [4]byte {
	h := fnv.New32a()

	host, _ := os.Hostname()
	_, _ = h.Write([]byte(host))

	var pid [4]byte
	binary.BigEndian.PutUint32(pid[:], uint32(os.Getpid()))
	_, _ = h.Write(pid[:])

	id := uuid.New()
	_, _ = h.Write(id[:])

	var d [4]byte
	binary.BigEndian.PutUint32(d[:], h.Sum32())

	return d
}

// Vendor tag used by allocator
func (a *PrefixAllocator) Vendor() VendorID {
	return a.vendor
}

// Allocate next prefix. Returned prefix never repeats within allocator
func (a *PrefixAllocator) Allocate() (Prefix, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	for i := 0; i < prefixRetries; i++ {
		a.counter++

		var p Prefix
		copy(p[0:2], a.vendor[:])
		copy(p[2:6], a.discriminant[:])
		binary.BigEndian.PutUint16(p[6:8], a.counter)
		binary.BigEndian.PutUint16(p[8:10], uint16(a.now().UnixNano()/int64(time.Millisecond)))

		if _, err := io.ReadFull(a.random, p[10:12]); err != nil {
			return Prefix{}, err
		}

		if _, ok := a.issued[p]; ok {
			continue
		}

		a.issued[p] = struct{}{}

		return p, nil
	}

	return Prefix{}, ErrPrefixExhausted
}

// Release drops bookkeeping of prefix owned by participant that is gone
func (a *PrefixAllocator) Release(p Prefix) {
	a.lock.Lock()
	delete(a.issued, p)
	a.lock.Unlock()
}

// EntityAllocator hands out entity keys within single participant.
// Lifetime is bound to participant, keys are never reused.
type EntityAllocator struct {
	lock sync.Mutex
	next uint32
}

// NewEntityAllocator allocator starting with key 1
func NewEntityAllocator() *EntityAllocator {
	return &EntityAllocator{next: 1}
}

// Next entity id for the kind
func (a *EntityAllocator) Next(kind EntityKind, makeBuiltin bool) (EntityID, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	for a.next <= MaxEntityKey {
		key := a.next
		a.next++

		id := BuildEntityID(kind, makeBuiltin, key)
		if id.IsReserved() || id.IsUnknown() {
			continue
		}

		return id, nil
	}

	return EntityUnknown, ErrKeysExhausted
}
