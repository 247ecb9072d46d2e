// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"sort"
	"strings"

	"github.com/ava-labs/avalanchego/database"
)

type scopeEntry struct {
	value  []byte
	remove bool
}

// Transaction is one nested scope of the durable store. Reads resolve
// through the scope chain down to the committed root; writes land in this
// scope only and become visible to the parent on Commit. Rollback discards
// the scope with zero effect on the parent.
//
// A scope with parent == nil commits directly into the root.
type Transaction struct {
	store  *Store
	parent *Transaction
	writes map[string]scopeEntry
	open   bool
}

// Begin opens a child scope nested under this one.
func (t *Transaction) Begin() *Transaction {
	return &Transaction{
		store:  t.store,
		parent: t,
		writes: make(map[string]scopeEntry),
		open:   true,
	}
}

// Get resolves the leaf value at [path] through the scope chain.
func (t *Transaction) Get(path Path) ([]byte, error) {
	if !t.open {
		return nil, ErrClosedScope
	}
	key := path.String()
	if e, ok := t.lookup(key); ok {
		if e.remove {
			return nil, t.missing(path)
		}
		return append([]byte(nil), e.value...), nil
	}
	value, err := t.store.vdb.Get([]byte(key))
	if err == database.ErrNotFound {
		return nil, t.missing(path)
	}
	return value, err
}

// missing distinguishes a truly absent leaf from a path occupied by a
// subtree, which is a kind mismatch rather than an absence.
func (t *Transaction) missing(path Path) error {
	ok, err := t.subtreeAt(path)
	if err != nil {
		return err
	}
	if ok {
		return ErrTypeMismatch
	}
	return ErrNotFound
}

// Has reports whether a leaf value resolves at [path].
func (t *Transaction) Has(path Path) (bool, error) {
	if !t.open {
		return false, ErrClosedScope
	}
	if e, ok := t.lookup(path.String()); ok {
		return !e.remove, nil
	}
	return t.store.vdb.Has(path.Key())
}

// Put records a leaf write into this scope. It fails with ErrTypeMismatch
// if [path] holds a subtree in the merged view, or if any proper ancestor
// of [path] holds a leaf.
func (t *Transaction) Put(path Path, value []byte) error {
	if !t.open {
		return ErrClosedScope
	}
	ok, err := t.subtreeAt(path)
	if err != nil {
		return err
	}
	if ok {
		return ErrTypeMismatch
	}
	for i := 1; i < len(path); i++ {
		exists, err := t.Has(path[:i])
		if err != nil {
			return err
		}
		if exists {
			return ErrTypeMismatch
		}
	}
	t.writes[path.String()] = scopeEntry{value: append([]byte(nil), value...)}
	return nil
}

// Delete records a leaf tombstone into this scope. Deleting an absent leaf
// is a no-op.
func (t *Transaction) Delete(path Path) error {
	if !t.open {
		return ErrClosedScope
	}
	t.writes[path.String()] = scopeEntry{remove: true}
	return nil
}

// ListChildren returns the sorted, deduplicated child segment names under
// [path] in this scope's merged view. This is the canonical iteration
// order exposed to guests.
func (t *Transaction) ListChildren(path Path) ([]string, error) {
	if !t.open {
		return nil, ErrClosedScope
	}
	prefix := path.String() + PathSeparator
	seen := make(map[string]struct{})

	it := t.store.vdb.NewIteratorWithPrefix([]byte(prefix))
	defer it.Release()
	for it.Next() {
		key := string(it.Key())
		if e, ok := t.lookup(key); ok && e.remove {
			continue
		}
		seen[firstSegment(key, prefix)] = struct{}{}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	for scope := t; scope != nil; scope = scope.parent {
		for key := range scope.writes {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			// The nearest scope owns the key's fate.
			if e, _ := t.lookup(key); !e.remove {
				seen[firstSegment(key, prefix)] = struct{}{}
			}
		}
	}
	return sortedKeys(seen), nil
}

// Commit merges this scope's writes into its parent (or applies them to the
// committed root for a top-level scope) and closes the scope.
func (t *Transaction) Commit() error {
	if !t.open {
		return ErrClosedScope
	}
	t.open = false
	if t.parent != nil {
		for key, e := range t.writes {
			t.parent.writes[key] = e
		}
		t.writes = nil
		return nil
	}
	// Apply in sorted key order so the backing batch is deterministic.
	for _, key := range sortedWriteKeys(t.writes) {
		e := t.writes[key]
		if e.remove {
			if err := t.store.vdb.Delete([]byte(key)); err != nil {
				return err
			}
			continue
		}
		if err := t.store.vdb.Put([]byte(key), e.value); err != nil {
			return err
		}
	}
	t.writes = nil
	return t.store.commit()
}

// Rollback discards this scope and all its writes.
func (t *Transaction) Rollback() {
	t.open = false
	t.writes = nil
}

// lookup resolves [key] through the scope chain; the nearest scope wins.
func (t *Transaction) lookup(key string) (scopeEntry, bool) {
	for scope := t; scope != nil; scope = scope.parent {
		if e, ok := scope.writes[key]; ok {
			return e, true
		}
	}
	return scopeEntry{}, false
}

func sortedWriteKeys(writes map[string]scopeEntry) []string {
	keys := make([]string, 0, len(writes))
	for key := range writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// subtreeAt reports whether any leaf resolves strictly below [path].
func (t *Transaction) subtreeAt(path Path) (bool, error) {
	prefix := path.String() + PathSeparator

	for scope := t; scope != nil; scope = scope.parent {
		for key := range scope.writes {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			if e, _ := t.lookup(key); !e.remove {
				return true, nil
			}
		}
	}

	it := t.store.vdb.NewIteratorWithPrefix([]byte(prefix))
	defer it.Release()
	for it.Next() {
		if e, ok := t.lookup(string(it.Key())); ok && e.remove {
			continue
		}
		return true, it.Error()
	}
	return false, it.Error()
}
