// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/assert"
)

func newTestStore() *Store {
	return New(memdb.New())
}

func TestPathValidation(t *testing.T) {
	assert := assert.New(t)

	_, err := NewPath()
	assert.ErrorIs(err, ErrEmptyPath)

	_, err = NewPath("a", "has space")
	assert.ErrorIs(err, ErrInvalidSegment)

	_, err = NewPath("a", "")
	assert.ErrorIs(err, ErrInvalidSegment)

	p, err := ParsePath("accounts/abc-1/balance")
	assert.NoError(err)
	assert.Equal("accounts/abc-1/balance", p.String())
}

func TestCommitVisibleToParentOnly(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore()

	parent := store.Begin()
	child := parent.Begin()

	assert.NoError(child.Put(MustPath("a", "b"), []byte("v1")))

	// Invisible outside the child before commit.
	_, err := parent.Get(MustPath("a", "b"))
	assert.ErrorIs(err, ErrNotFound)

	assert.NoError(child.Commit())

	// Visible to the parent, not yet to the committed root.
	got, err := parent.Get(MustPath("a", "b"))
	assert.NoError(err)
	assert.Equal([]byte("v1"), got)

	_, err = store.Get(MustPath("a", "b"))
	assert.ErrorIs(err, ErrNotFound)

	assert.NoError(parent.Commit())

	got, err = store.Get(MustPath("a", "b"))
	assert.NoError(err)
	assert.Equal([]byte("v1"), got)
}

func TestRollbackRestoresParentExactly(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore()

	parent := store.Begin()
	assert.NoError(parent.Put(MustPath("k"), []byte("before")))

	child := parent.Begin()
	assert.NoError(child.Put(MustPath("k"), []byte("after")))
	assert.NoError(child.Delete(MustPath("k2")))
	child.Rollback()

	got, err := parent.Get(MustPath("k"))
	assert.NoError(err)
	assert.Equal([]byte("before"), got)
}

func TestDeleteShadowing(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore()

	root := store.Begin()
	assert.NoError(root.Put(MustPath("x"), []byte("v")))
	assert.NoError(root.Commit())

	tx := store.Begin()
	assert.NoError(tx.Delete(MustPath("x")))
	_, err := tx.Get(MustPath("x"))
	assert.ErrorIs(err, ErrNotFound)

	// Still committed underneath until tx commits.
	got, err := store.Get(MustPath("x"))
	assert.NoError(err)
	assert.Equal([]byte("v"), got)

	assert.NoError(tx.Commit())
	_, err = store.Get(MustPath("x"))
	assert.ErrorIs(err, ErrNotFound)
}

func TestLeafSubtreeExclusive(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore()

	tx := store.Begin()
	assert.NoError(tx.Put(MustPath("a", "b", "c"), []byte("leaf")))

	// A leaf may not land on a subtree node.
	assert.ErrorIs(tx.Put(MustPath("a", "b"), []byte("x")), ErrTypeMismatch)
	// A subtree may not grow under a leaf.
	assert.ErrorIs(tx.Put(MustPath("a", "b", "c", "d"), []byte("x")), ErrTypeMismatch)
	// Reading a subtree node as a leaf is a kind mismatch, not an absence.
	_, err := tx.Get(MustPath("a", "b"))
	assert.ErrorIs(err, ErrTypeMismatch)

	assert.NoError(tx.Commit())
	_, err = store.Get(MustPath("a"))
	assert.ErrorIs(err, ErrTypeMismatch)
}

func TestListChildrenMergedSorted(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore()

	root := store.Begin()
	assert.NoError(root.Put(MustPath("dir", "b"), []byte("1")))
	assert.NoError(root.Put(MustPath("dir", "d", "nested"), []byte("2")))
	assert.NoError(root.Commit())

	tx := store.Begin()
	assert.NoError(tx.Put(MustPath("dir", "a"), []byte("3")))
	assert.NoError(tx.Delete(MustPath("dir", "b")))

	children, err := tx.ListChildren(MustPath("dir"))
	assert.NoError(err)
	assert.Equal([]string{"a", "d"}, children)

	// Committed view is untouched until commit.
	children, err = store.ListChildren(MustPath("dir"))
	assert.NoError(err)
	assert.Equal([]string{"b", "d"}, children)
}

func TestClosedScopeRejected(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore()

	tx := store.Begin()
	assert.NoError(tx.Commit())

	assert.ErrorIs(tx.Put(MustPath("x"), nil), ErrClosedScope)
	_, err := tx.Get(MustPath("x"))
	assert.ErrorIs(err, ErrClosedScope)
	assert.ErrorIs(tx.Commit(), ErrClosedScope)
}

func TestNestedCommitThenParentRollback(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore()

	parent := store.Begin()
	child := parent.Begin()
	assert.NoError(child.Put(MustPath("w"), []byte("child")))
	assert.NoError(child.Commit())

	// A committed child survives only if its ancestor commits.
	parent.Rollback()
	_, err := store.Get(MustPath("w"))
	assert.ErrorIs(err, ErrNotFound)
}
