// Package persistence provides durability store backends keeping writer
// history for late joining readers.
package persistence

import (
	"github.com/VolantMQ/volantdds/persistence/boltdb"
	"github.com/VolantMQ/volantdds/persistence/mem"
	"github.com/VolantMQ/volantdds/persistence/types"
)

// New persistence provider
func New(config persistenceTypes.ProviderConfig) (persistenceTypes.Provider, error) {
	switch cfg := config.(type) {
	case *persistenceTypes.MemConfig:
		return mem.New(cfg)
	case *persistenceTypes.BoltDBConfig:
		return boltdb.New(cfg)
	default:
		return nil, persistenceTypes.ErrUnknownProvider
	}
}
