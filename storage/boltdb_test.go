// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBolt(t *testing.T) *BoltDatabase {
	db, err := NewBoltDatabase(filepath.Join(t.TempDir(), "riftvm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltRoundtrip(t *testing.T) {
	assert := assert.New(t)
	db := newTestBolt(t)

	_, err := db.Get([]byte("missing"))
	assert.ErrorIs(err, database.ErrNotFound)

	assert.NoError(db.Put([]byte("k"), []byte("v")))
	got, err := db.Get([]byte("k"))
	assert.NoError(err)
	assert.Equal([]byte("v"), got)

	ok, err := db.Has([]byte("k"))
	assert.NoError(err)
	assert.True(ok)

	assert.NoError(db.Delete([]byte("k")))
	ok, err = db.Has([]byte("k"))
	assert.NoError(err)
	assert.False(ok)
}

func TestBoltBatch(t *testing.T) {
	assert := assert.New(t)
	db := newTestBolt(t)

	assert.NoError(db.Put([]byte("gone"), []byte("x")))

	batch := db.NewBatch()
	assert.NoError(batch.Put([]byte("a"), []byte("1")))
	assert.NoError(batch.Put([]byte("b"), []byte("2")))
	assert.NoError(batch.Delete([]byte("gone")))
	assert.NotZero(batch.Size())
	assert.NoError(batch.Write())

	got, err := db.Get([]byte("a"))
	assert.NoError(err)
	assert.Equal([]byte("1"), got)

	_, err = db.Get([]byte("gone"))
	assert.ErrorIs(err, database.ErrNotFound)
}

func TestBoltBatchReplay(t *testing.T) {
	assert := assert.New(t)
	db := newTestBolt(t)

	batch := db.NewBatch()
	assert.NoError(batch.Put([]byte("a"), []byte("1")))
	assert.NoError(batch.Delete([]byte("b")))

	target := memdb.New()
	assert.NoError(target.Put([]byte("b"), []byte("stale")))
	assert.NoError(batch.Replay(target))

	got, err := target.Get([]byte("a"))
	assert.NoError(err)
	assert.Equal([]byte("1"), got)
	_, err = target.Get([]byte("b"))
	assert.ErrorIs(err, database.ErrNotFound)
}

func TestBoltIteratorPrefix(t *testing.T) {
	assert := assert.New(t)
	db := newTestBolt(t)

	assert.NoError(db.Put([]byte("kv/a"), []byte("1")))
	assert.NoError(db.Put([]byte("kv/b"), []byte("2")))
	assert.NoError(db.Put([]byte("kw/c"), []byte("3")))

	it := db.NewIteratorWithPrefix([]byte("kv/"))
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.NoError(it.Error())
	assert.Equal([]string{"kv/a", "kv/b"}, keys)
}

func TestBoltClosed(t *testing.T) {
	assert := assert.New(t)
	db, err := NewBoltDatabase(filepath.Join(t.TempDir(), "riftvm.db"))
	assert.NoError(err)
	assert.NoError(db.Close())

	assert.ErrorIs(db.Put([]byte("k"), nil), database.ErrClosed)
	_, err = db.Get([]byte("k"))
	assert.ErrorIs(err, database.ErrClosed)
	_, err = db.HealthCheck(context.Background())
	assert.ErrorIs(err, database.ErrClosed)
	assert.ErrorIs(db.Close(), database.ErrClosed)
}
