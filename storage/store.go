// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"errors"
	"sort"
	"strings"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
)

var (
	// ErrNotFound is returned when a path holds no leaf value.
	ErrNotFound = database.ErrNotFound

	// ErrTypeMismatch is returned when the stored kind at a path (leaf or
	// subtree) does not match the requested kind. It fails the enclosing
	// operation, not the kernel.
	ErrTypeMismatch = errors.New("path kind mismatch: leaf and subtree are exclusive")

	// ErrClosedScope is returned on any use of a committed or rolled-back
	// transaction scope. The processor treats it as an invariant violation.
	ErrClosedScope = errors.New("transaction scope is closed")
)

// Store is the durable store's committed root. All mutation goes through
// nested Transaction scopes opened with Begin; a top-level scope commit is
// applied to the backing database as one atomic batch.
//
// The kernel is single-threaded, so the store performs no locking of its
// own; serialization is structural.
type Store struct {
	vdb *versiondb.Database
}

// New wraps [db] as the committed root of a durable store.
func New(db database.Database) *Store {
	return &Store{vdb: versiondb.New(db)}
}

// Begin opens a top-level transaction scope.
func (s *Store) Begin() *Transaction {
	return &Transaction{
		store:  s,
		writes: make(map[string]scopeEntry),
		open:   true,
	}
}

// Get reads a committed leaf value, bypassing any open scopes. Read-only
// collaborators (query service) use this.
func (s *Store) Get(path Path) ([]byte, error) {
	value, err := s.vdb.Get(path.Key())
	if err == database.ErrNotFound {
		ok, serr := s.hasSubtree(path)
		if serr != nil {
			return nil, serr
		}
		if ok {
			return nil, ErrTypeMismatch
		}
		return nil, ErrNotFound
	}
	return value, err
}

// Has reports whether a committed leaf exists at [path].
func (s *Store) Has(path Path) (bool, error) {
	return s.vdb.Has(path.Key())
}

// ListChildren returns the sorted child segment names under [path] in the
// committed state.
func (s *Store) ListChildren(path Path) ([]string, error) {
	prefix := path.String() + PathSeparator
	it := s.vdb.NewIteratorWithPrefix([]byte(prefix))
	defer it.Release()

	seen := make(map[string]struct{})
	for it.Next() {
		seen[firstSegment(string(it.Key()), prefix)] = struct{}{}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return sortedKeys(seen), nil
}

func (s *Store) hasSubtree(path Path) (bool, error) {
	prefix := path.String() + PathSeparator
	it := s.vdb.NewIteratorWithPrefix([]byte(prefix))
	defer it.Release()
	found := it.Next()
	if err := it.Error(); err != nil {
		return false, err
	}
	return found, nil
}

// commit flushes pending root writes to the backing database atomically.
// Called by top-level scope commits.
func (s *Store) commit() error {
	return s.vdb.Commit()
}

// Close releases the backing database wrapper.
func (s *Store) Close() error {
	return s.vdb.Close()
}

func firstSegment(key, prefix string) string {
	rest := key[len(prefix):]
	if i := strings.Index(rest, PathSeparator); i >= 0 {
		return rest[:i]
	}
	return rest
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
