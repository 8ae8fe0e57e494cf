package boltdb

import (
	"encoding/binary"
	"sync"

	"github.com/boltdb/bolt"

	"github.com/VolantMQ/volantdds/guid"
	"github.com/VolantMQ/volantdds/persistence/types"
)

type history struct {
	db *dbStatus

	// transactions that are in progress right now
	wgTx *sync.WaitGroup
	lock *sync.Mutex
}

var _ persistenceTypes.History = (*history)(nil)

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)

	return k
}

func encodeSample(s *persistenceTypes.Sample) []byte {
	v := make([]byte, 8+len(s.Payload))
	binary.BigEndian.PutUint64(v, uint64(s.Timestamp))
	copy(v[8:], s.Payload)

	return v
}

func decodeSample(k, v []byte) (persistenceTypes.Sample, error) {
	if len(k) != 8 || len(v) < 8 {
		return persistenceTypes.Sample{}, persistenceTypes.ErrBrokenEntry
	}

	return persistenceTypes.Sample{
		Sequence:  binary.BigEndian.Uint64(k),
		Timestamp: int64(binary.BigEndian.Uint64(v)),
		Payload:   append([]byte(nil), v[8:]...),
	}, nil
}

func (h *history) Store(writer guid.GUID, s persistenceTypes.Sample) error {
	if s.Sequence == 0 {
		return persistenceTypes.ErrInvalidArgs
	}

	if err := h.db.begin(h.wgTx, h.lock); err != nil {
		return err
	}
	defer h.wgTx.Done()

	return h.db.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketHistory)
		if root == nil {
			return persistenceTypes.ErrNotInitialized
		}

		bucket, err := root.CreateBucketIfNotExists(writer.Bytes())
		if err != nil {
			return err
		}

		return bucket.Put(seqKey(s.Sequence), encodeSample(&s))
	})
}

func (h *history) ForEach(writer guid.GUID, fn func(persistenceTypes.Sample) error) error {
	if err := h.db.begin(h.wgTx, h.lock); err != nil {
		return err
	}
	defer h.wgTx.Done()

	var samples []persistenceTypes.Sample

	err := h.db.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketHistory)
		if root == nil {
			return persistenceTypes.ErrNotInitialized
		}

		bucket := root.Bucket(writer.Bytes())
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			s, e := decodeSample(k, v)
			if e != nil {
				return e
			}

			samples = append(samples, s)

			return nil
		})
	})

	if err != nil {
		return err
	}

	for _, s := range samples {
		if err = fn(s); err != nil {
			return err
		}
	}

	return nil
}

func (h *history) Trim(writer guid.GUID, keep int) error {
	if keep <= 0 {
		return nil
	}

	if err := h.db.begin(h.wgTx, h.lock); err != nil {
		return err
	}
	defer h.wgTx.Done()

	return h.db.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketHistory)
		if root == nil {
			return persistenceTypes.ErrNotInitialized
		}

		bucket := root.Bucket(writer.Bytes())
		if bucket == nil {
			return nil
		}

		excess := bucket.Stats().KeyN - keep
		if excess <= 0 {
			return nil
		}

		var keys [][]byte

		c := bucket.Cursor()
		for k, _ := c.First(); k != nil && len(keys) < excess; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}

		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

func (h *history) Delete(writer guid.GUID) error {
	if err := h.db.begin(h.wgTx, h.lock); err != nil {
		return err
	}
	defer h.wgTx.Done()

	return h.db.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketHistory)
		if root == nil {
			return persistenceTypes.ErrNotInitialized
		}

		if err := root.DeleteBucket(writer.Bytes()); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}

		return nil
	})
}

func (h *history) Writers() ([]guid.GUID, error) {
	if err := h.db.begin(h.wgTx, h.lock); err != nil {
		return nil, err
	}
	defer h.wgTx.Done()

	var writers []guid.GUID

	err := h.db.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketHistory)
		if root == nil {
			return persistenceTypes.ErrNotInitialized
		}

		return root.ForEach(func(k, v []byte) error {
			// nested buckets have nil value
			if v != nil {
				return nil
			}

			g, err := guid.FromBytes(k)
			if err != nil {
				return persistenceTypes.ErrBrokenEntry
			}

			writers = append(writers, g)

			return nil
		})
	})

	return writers, err
}
