package txdedupe

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
)

var bucketTxIDs = []byte("tx_ids")

// Store persists a bounded FIFO ring of committed tx_ids in a single
// bbolt file, so idempotence survives a restart when the caller opts
// in via enablePersistentTxDedupe.
type Store struct {
	db       *bolt.DB
	capacity int
}

// Open opens (creating if absent) the retention-set file at path,
// bounded to capacity entries.
func Open(path string, capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening tx dedupe store: %v", nverrors.ErrIO, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTxIDs)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing tx dedupe bucket: %v", nverrors.ErrIO, err)
	}
	return &Store{db: db, capacity: capacity}, nil
}

// Seen reports whether txID is currently within the retention window.
func (s *Store) Seen(txID string) (bool, error) {
	var seen bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTxIDs)
		seen = b.Get(txIDKey(txID)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: reading tx dedupe store: %v", nverrors.ErrIO, err)
	}
	return seen, nil
}

// Remember records txID as committed, evicting the oldest entry once
// the store exceeds capacity.
func (s *Store) Remember(txID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTxIDs)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		var seqBuf [8]byte
		binary.BigEndian.PutUint64(seqBuf[:], seq)
		if err := b.Put(txIDKey(txID), seqBuf[:]); err != nil {
			return err
		}
		return s.evictOldestLocked(b)
	})
}

// evictOldestLocked removes entries beyond capacity, oldest (lowest
// recorded sequence number) first.
func (s *Store) evictOldestLocked(b *bolt.Bucket) error {
	count := b.Stats().KeyN
	if count <= s.capacity {
		return nil
	}
	type entry struct {
		key []byte
		seq uint64
	}
	var entries []entry
	if err := b.ForEach(func(k, v []byte) error {
		entries = append(entries, entry{key: append([]byte(nil), k...), seq: binary.BigEndian.Uint64(v)})
		return nil
	}); err != nil {
		return err
	}
	excess := count - s.capacity
	for i := 0; i < len(entries) && excess > 0; i++ {
		oldestIdx := 0
		for j := 1; j < len(entries); j++ {
			if entries[j].seq < entries[oldestIdx].seq {
				oldestIdx = j
			}
		}
		if err := b.Delete(entries[oldestIdx].key); err != nil {
			return err
		}
		entries = append(entries[:oldestIdx], entries[oldestIdx+1:]...)
		excess--
	}
	return nil
}

func txIDKey(txID string) []byte { return []byte(txID) }

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error { return s.db.Close() }
