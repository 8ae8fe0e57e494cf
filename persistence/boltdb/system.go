package boltdb

import (
	"encoding/binary"
	"sync"

	"github.com/boltdb/bolt"

	"github.com/VolantMQ/volantdds/persistence/types"
)

type system struct {
	db *dbStatus

	// transactions that are in progress right now
	wgTx *sync.WaitGroup
	lock *sync.Mutex
}

var _ persistenceTypes.System = (*system)(nil)

func (s *system) GetInfo() (*persistenceTypes.SystemState, error) {
	if err := s.db.begin(s.wgTx, s.lock); err != nil {
		return nil, err
	}
	defer s.wgTx.Done()

	state := &persistenceTypes.SystemState{}

	err := s.db.db.View(func(tx *bolt.Tx) error {
		sys := tx.Bucket(bucketSystem)
		if sys == nil {
			return persistenceTypes.ErrNotInitialized
		}

		version := sys.Get([]byte("version"))
		if version == nil {
			return persistenceTypes.ErrNotInitialized
		}

		state.Version = string(version)

		if d := sys.Get([]byte("domain")); len(d) == 4 {
			state.Domain = binary.BigEndian.Uint32(d)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return state, nil
}

func (s *system) SetInfo(state *persistenceTypes.SystemState) error {
	if state == nil {
		return persistenceTypes.ErrInvalidArgs
	}

	if err := s.db.begin(s.wgTx, s.lock); err != nil {
		return err
	}
	defer s.wgTx.Done()

	return s.db.db.Update(func(tx *bolt.Tx) error {
		sys := tx.Bucket(bucketSystem)
		if sys == nil {
			return persistenceTypes.ErrNotInitialized
		}

		if e := sys.Put([]byte("version"), []byte(state.Version)); e != nil {
			return e
		}

		d := make([]byte, 4)
		binary.BigEndian.PutUint32(d, state.Domain)

		return sys.Put([]byte("domain"), d)
	})
}
