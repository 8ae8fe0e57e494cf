package boltdb

import (
	"sync"

	"github.com/boltdb/bolt"

	"github.com/VolantMQ/volantdds/persistence/types"
)

var (
	bucketHistory = []byte("history")
	bucketSystem  = []byte("system")
)

type dbStatus struct {
	db   *bolt.DB
	done chan struct{}
}

type impl struct {
	db dbStatus

	// transactions that are in progress right now
	wgTx sync.WaitGroup
	lock sync.Mutex

	h   history
	sys system
}

var _ persistenceTypes.Provider = (*impl)(nil)

// New allocate new persistence provider of boltDB type
func New(config *persistenceTypes.BoltDBConfig) (p persistenceTypes.Provider, err error) {
	if config == nil || len(config.File) == 0 {
		return nil, persistenceTypes.ErrInvalidArgs
	}

	pl := &impl{
		db: dbStatus{
			done: make(chan struct{}),
		},
	}

	if pl.db.db, err = bolt.Open(config.File, 0600, nil); err != nil {
		return nil, err
	}

	pl.h = history{
		db:   &pl.db,
		wgTx: &pl.wgTx,
		lock: &pl.lock,
	}

	pl.sys = system{
		db:   &pl.db,
		wgTx: &pl.wgTx,
		lock: &pl.lock,
	}

	err = pl.db.db.Update(func(tx *bolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(bucketHistory); e != nil {
			return e
		}
		if _, e := tx.CreateBucketIfNotExists(bucketSystem); e != nil {
			return e
		}

		return nil
	})

	if err != nil {
		_ = pl.db.db.Close()
		return nil, err
	}

	p = pl

	return p, nil
}

// History
func (p *impl) History() (persistenceTypes.History, error) {
	select {
	case <-p.db.done:
		return nil, persistenceTypes.ErrNotOpen
	default:
	}

	return &p.h, nil
}

// System
func (p *impl) System() (persistenceTypes.System, error) {
	select {
	case <-p.db.done:
		return nil, persistenceTypes.ErrNotOpen
	default:
	}

	return &p.sys, nil
}

// Shutdown provider
func (p *impl) Shutdown() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	select {
	case <-p.db.done:
		return persistenceTypes.ErrNotOpen
	default:
	}

	close(p.db.done)

	p.wgTx.Wait()

	err := p.db.db.Close()
	p.db.db = nil

	return err
}

// begin registers transaction. Returns ErrNotOpen once shutdown started
func (s *dbStatus) begin(wg *sync.WaitGroup, lock *sync.Mutex) error {
	lock.Lock()
	defer lock.Unlock()

	select {
	case <-s.done:
		return persistenceTypes.ErrNotOpen
	default:
	}

	wg.Add(1)

	return nil
}
