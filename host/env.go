// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package host is the fixed capability surface injected into each sandbox
// instance: namespaced storage, receipt logging, cross-contract calls,
// ledger access and deterministic randomness/time. Every capability burns
// fuel from the operation's shared budget.
package host

import (
	"encoding/binary"
	"errors"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/inconshreveable/log15"

	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/storage"
)

// ErrCallDepthExceeded fails a nested call past the kernel's hard depth
// ceiling. Like fuel exhaustion it aborts the whole call chain; no guest
// catch block sees it.
var ErrCallDepthExceeded = errors.New("call depth exceeded")

// rollupBlockSeconds spaces the deterministic clock: guest-visible time is
// genesis epoch + level * rollupBlockSeconds, never wall-clock time.
const rollupBlockSeconds = 15

// LogSink receives guest log lines for the current operation's receipt.
type LogSink interface {
	AppendLog(level string, message string)
}

// CallFunc runs a nested cross-contract call: child storage scope, nested
// engine instance, shared fuel. Returns the callee's JSON result.
type CallFunc func(caller keys.Address, target keys.Address, entrypoint string, args []byte) ([]byte, error)

// WithdrawFunc queues a withdrawal of rollup funds back to the base chain.
type WithdrawFunc func(from keys.Address, target []byte, amount uint64) error

// Env binds one sandbox instance to the kernel: the executing contract's
// identity, the operation's storage scope, the shared fuel budget and the
// hooks back into the processor. The durable-store scope is an explicit
// handle here, never a hidden global.
type Env struct {
	Self    keys.Address
	Caller  keys.Address
	OpID    ids.ID
	Level   uint64
	OpIndex uint32

	Tx   *storage.Transaction
	Fuel *Fuel
	Logs LogSink

	Call     CallFunc
	Withdraw WithdrawFunc

	Log log15.Logger

	// GenesisEpoch anchors the deterministic clock, in unix seconds.
	GenesisEpoch uint64

	randCounter uint64
}

// Timestamp is the deterministic "current time" in unix seconds, a pure
// function of rollup metadata.
func (e *Env) Timestamp() uint64 {
	return e.GenesisEpoch + e.Level*rollupBlockSeconds
}

// RandomSeed returns the next 32-byte deterministic pseudo-random block,
// derived solely from (operation id, level, op index, draw counter).
func (e *Env) RandomSeed() [32]byte {
	preimage := make([]byte, len(e.OpID)+8+4+8)
	copy(preimage, e.OpID[:])
	binary.BigEndian.PutUint64(preimage[len(e.OpID):], e.Level)
	binary.BigEndian.PutUint32(preimage[len(e.OpID)+8:], e.OpIndex)
	binary.BigEndian.PutUint64(preimage[len(e.OpID)+12:], e.randCounter)
	e.randCounter++

	var seed [32]byte
	copy(seed[:], crypto.Keccak256(preimage))
	return seed
}

// KvPath resolves a guest storage key into the contract's own namespace.
// Keys may contain '/' to address nested paths; every resolved path stays
// under kv/<self>, so no contract can reach another's namespace.
func (e *Env) KvPath(key string) (storage.Path, error) {
	sub, err := storage.ParsePath(key)
	if err != nil {
		return nil, err
	}
	base := storage.MustPath("kv", e.Self.String())
	return base.Append(sub...)
}
