// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	bolt "go.etcd.io/bbolt"
)

var (
	boltBucket = []byte("riftvm")

	_ database.Database = (*BoltDatabase)(nil)
	_ database.Batch    = (*boltBatch)(nil)
	_ database.Iterator = (*boltIterator)(nil)
)

// BoltDatabase implements database.Database over a single-bucket bbolt
// file, giving the daemon a persistent backing store behind the same
// interface memdb serves in tests.
type BoltDatabase struct {
	lock   sync.RWMutex
	db     *bolt.DB
	closed bool
}

// NewBoltDatabase opens (or creates) the bbolt file at [path].
func NewBoltDatabase(path string) (*BoltDatabase, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltDatabase{db: db}, nil
}

func (b *BoltDatabase) Has(key []byte) (bool, error) {
	_, err := b.Get(key)
	if err == database.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (b *BoltDatabase) Get(key []byte) ([]byte, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return nil, database.ErrClosed
	}
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get(key)
		if v == nil {
			return database.ErrNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

func (b *BoltDatabase) Put(key []byte, value []byte) error {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return database.ErrClosed
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, append([]byte(nil), value...))
	})
}

func (b *BoltDatabase) Delete(key []byte) error {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return database.ErrClosed
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

func (b *BoltDatabase) NewBatch() database.Batch { return &boltBatch{db: b} }

func (b *BoltDatabase) NewIterator() database.Iterator {
	return b.NewIteratorWithStartAndPrefix(nil, nil)
}

func (b *BoltDatabase) NewIteratorWithStart(start []byte) database.Iterator {
	return b.NewIteratorWithStartAndPrefix(start, nil)
}

func (b *BoltDatabase) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return b.NewIteratorWithStartAndPrefix(nil, prefix)
}

// NewIteratorWithStartAndPrefix snapshots the matching keys under a read
// transaction. The kernel's per-prefix ranges are small (one contract
// namespace, one receipt index), so a snapshot costs little and keeps the
// iterator valid across writes.
func (b *BoltDatabase) NewIteratorWithStartAndPrefix(start, prefix []byte) database.Iterator {
	b.lock.RLock()
	defer b.lock.RUnlock()

	it := &boltIterator{index: -1}
	if b.closed {
		it.err = database.ErrClosed
		return it
	}
	seek := prefix
	if bytes.Compare(start, prefix) > 0 {
		seek = start
	}
	it.err = b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, v := c.Seek(seek); k != nil; k, v = c.Next() {
			if len(prefix) > 0 && !bytes.HasPrefix(k, prefix) {
				break
			}
			it.keys = append(it.keys, append([]byte(nil), k...))
			it.values = append(it.values, append([]byte(nil), v...))
		}
		return nil
	})
	return it
}

func (b *BoltDatabase) Compact(start []byte, limit []byte) error {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return database.ErrClosed
	}
	return nil // bbolt compacts only via offline copy
}

func (b *BoltDatabase) HealthCheck(context.Context) (interface{}, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return nil, database.ErrClosed
	}
	return nil, nil
}

func (b *BoltDatabase) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return database.ErrClosed
	}
	b.closed = true
	return b.db.Close()
}

type boltBatchOp struct {
	key    []byte
	value  []byte
	delete bool
}

type boltBatch struct {
	db   *BoltDatabase
	ops  []boltBatchOp
	size int
}

func (b *boltBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, boltBatchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
	b.size += len(key) + len(value)
	return nil
}

func (b *boltBatch) Delete(key []byte) error {
	b.ops = append(b.ops, boltBatchOp{
		key:    append([]byte(nil), key...),
		delete: true,
	})
	b.size += len(key)
	return nil
}

func (b *boltBatch) Size() int { return b.size }

// Write applies the batch in one bbolt update transaction.
func (b *boltBatch) Write() error {
	b.db.lock.RLock()
	defer b.db.lock.RUnlock()
	if b.db.closed {
		return database.ErrClosed
	}
	return b.db.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range b.ops {
			if op.delete {
				if err := bucket.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

func (b *boltBatch) Replay(w database.KeyValueWriterDeleter) error {
	for _, op := range b.ops {
		if op.delete {
			if err := w.Delete(op.key); err != nil {
				return err
			}
			continue
		}
		if err := w.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}

func (b *boltBatch) Inner() database.Batch { return b }

type boltIterator struct {
	keys   [][]byte
	values [][]byte
	index  int
	err    error
}

func (it *boltIterator) Next() bool {
	if it.err != nil || it.index+1 >= len(it.keys) {
		it.index = len(it.keys)
		return false
	}
	it.index++
	return true
}

func (it *boltIterator) Error() error { return it.err }

func (it *boltIterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return it.keys[it.index]
}

func (it *boltIterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.values) {
		return nil
	}
	return it.values[it.index]
}

func (it *boltIterator) Release() {
	it.keys = nil
	it.values = nil
}
