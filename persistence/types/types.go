package persistenceTypes // nolint: golint

import (
	"github.com/VolantMQ/volantdds/guid"
)

// Errors persistence errors
type Errors int

const (
	// ErrInvalidArgs invalid arguments provided
	ErrInvalidArgs Errors = iota
	// ErrUnknownProvider if provider is unknown
	ErrUnknownProvider
	// ErrNotInitialized persistence provider not initialized yet
	ErrNotInitialized
	// ErrNotFound object not found
	ErrNotFound
	// ErrNotOpen storage is not open
	ErrNotOpen
	// ErrBrokenEntry persisted entry does not meet requirements
	ErrBrokenEntry
)

var errorsDesc = map[Errors]string{
	ErrInvalidArgs:     "persistence: invalid arguments",
	ErrUnknownProvider: "persistence: unknown provider",
	ErrNotInitialized:  "persistence: not initialized",
	ErrNotFound:        "persistence: not found",
	ErrNotOpen:         "persistence: not open",
	ErrBrokenEntry:     "persistence: broken entry",
}

// Errors description during persistence
func (e Errors) Error() string {
	if s, ok := errorsDesc[e]; ok {
		return s
	}

	return "unknown error"
}

// Sample persisted writer sample
type Sample struct {
	Sequence  uint64
	Timestamp int64
	Payload   []byte
}

// SystemState system configuration
type SystemState struct {
	Version string
	Domain  uint32
}

// History durability store of writer samples ordered by sequence
type History interface {
	// Store sample, sample with same sequence is replaced
	Store(writer guid.GUID, s Sample) error

	// ForEach iterates samples of writer in sequence order
	ForEach(writer guid.GUID, fn func(Sample) error) error

	// Trim keeps only newest keep samples. Non positive keep leaves history intact
	Trim(writer guid.GUID, keep int) error

	// Delete whole history of writer
	Delete(writer guid.GUID) error

	// Writers lists writers having history
	Writers() ([]guid.GUID, error)
}

// System persistence state of the system configuration
type System interface {
	GetInfo() (*SystemState, error)
	SetInfo(*SystemState) error
}

// Provider interface implemented by different backends
type Provider interface {
	History() (History, error)
	System() (System, error)
	Shutdown() error
}
