// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kernel is the deterministic execution core: it decodes signed
// inbox operations, verifies and orders them, runs contract code against
// the durable store under a fuel budget, and records immutable receipts
// and outbox messages. Given the same store contents and the same inbox
// bytes, every node computes the same state.
package kernel

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/inconshreveable/log15"

	"github.com/rift-labs/riftvm/engine"
	"github.com/rift-labs/riftvm/host"
	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/ledger"
	"github.com/rift-labs/riftvm/storage"
)

const (
	// DefaultFuelBudget is the per-operation budget when the node config
	// leaves it unset.
	DefaultFuelBudget = 10_000_000

	// maxCallDepth bounds nested cross-contract calls. Fuel usually runs
	// out first; this is the hard deterministic ceiling.
	maxCallDepth = 64

	// InitEntrypoint runs once, within the deploying operation, when a
	// deploy carries init args.
	InitEntrypoint = "init"
)

var (
	ErrPayloadMismatch = errors.New("revealed payload does not match root hash")
	ErrNoResolver      = errors.New("no payload resolver configured")
)

// PayloadResolver fetches the preimage of a reveal root from the data
// transport. The kernel verifies the hash itself; the resolver is not
// trusted.
type PayloadResolver interface {
	Resolve(root ids.ID) ([]byte, error)
}

// Config carries the tunables the node hands the processor at boot.
type Config struct {
	FuelBudget uint64

	// GenesisEpoch anchors the guest-visible deterministic clock, unix
	// seconds.
	GenesisEpoch uint64
}

// Processor drives operations through the verify/execute/record pipeline.
// It is single-threaded by construction: operations within a level run in
// inbox order, never concurrently.
type Processor struct {
	store    *storage.Store
	outbox   *Outbox
	engine   *engine.Engine
	resolver PayloadResolver
	config   Config
	log      log15.Logger
}

func NewProcessor(store *storage.Store, resolver PayloadResolver, config Config, log log15.Logger) *Processor {
	if config.FuelBudget == 0 {
		config.FuelBudget = DefaultFuelBudget
	}
	return &Processor{
		store:    store,
		outbox:   NewOutbox(store),
		engine:   engine.New(log),
		resolver: resolver,
		config:   config,
		log:      log,
	}
}

func (p *Processor) Outbox() *Outbox { return p.outbox }

// ProcessBatch runs one inbox level. Entries that do not decode are
// logged and dropped without a receipt: there is no verified source to
// attribute one to. Every decodable operation yields exactly one receipt,
// success or failure. The returned error is fatal to the node; per
// operation failures are receipts, not errors.
func (p *Processor) ProcessBatch(level uint64, rawOps [][]byte) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0, len(rawOps))
	for index, raw := range rawOps {
		op, err := ParseOperation(raw)
		if err != nil {
			p.log.Warn("dropping malformed inbox entry",
				"level", level, "index", index, "error", err)
			continue
		}
		receipt, err := p.process(level, uint32(index), op)
		if err != nil {
			return nil, err
		}
		if err := p.emit(receipt); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)

		p.log.Debug("operation processed",
			"level", level, "index", index,
			"op", receipt.OpID, "status", receipt.Status.String(),
			"code", receipt.ErrorCode, "fuelUsed", receipt.FuelUsed)
	}

	tx := p.store.Begin()
	if err := writeCounter(tx, lastLevelPath, level); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return receipts, nil
}

// process runs one decoded operation to its receipt. Errors returned here
// are node-fatal (broken store, codec failure); everything attributable
// to the operation itself lands in the receipt instead.
func (p *Processor) process(level uint64, index uint32, op *Operation) (*Receipt, error) {
	opID, err := op.ID()
	if err != nil {
		return nil, err
	}
	receipt := &Receipt{OpID: opID, Level: level, Index: index}

	// Signature first. A failed check consumes nothing, not even the
	// nonce: anyone can replay bytes they found on the wire.
	unsigned, err := op.UnsignedBytes()
	if err != nil {
		return nil, err
	}
	if err := keys.Verify(unsigned, op.Signature, op.Source); err != nil {
		receipt.Status = StatusFailed
		receipt.ErrorCode = errorCode(err)
		return receipt, nil
	}

	// Nonce check in a throwaway scope.
	check := p.store.Begin()
	err = ledger.ExpectNonce(check, op.Source, op.Nonce)
	check.Rollback()
	if err != nil {
		if !errors.Is(err, ledger.ErrNonceMismatch) {
			return nil, err
		}
		receipt.Status = StatusFailed
		receipt.ErrorCode = CodeNonceMismatch
		return receipt, nil
	}

	// Consume the nonce in its own committed scope before execution: a
	// failed or rolled back execution still burns it, so the operation
	// can never replay.
	consume := p.store.Begin()
	if err := ledger.IncrementNonce(consume, op.Source); err != nil {
		consume.Rollback()
		return nil, err
	}
	if err := consume.Commit(); err != nil {
		return nil, err
	}

	fuel := host.NewFuel(p.config.FuelBudget)
	logs := &logBuffer{}

	tx := p.store.Begin()
	result, contractAddr, execErr := p.execute(tx, op, opID, level, index, fuel, logs)
	if execErr != nil {
		tx.Rollback()
		receipt.Status = StatusFailed
		receipt.ErrorCode = errorCode(execErr)
	} else {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		receipt.Status = StatusSuccess
		receipt.Result = result
		receipt.ContractAddress = contractAddr
	}
	receipt.FuelUsed = fuel.Used()
	receipt.Logs = logs.entries
	return receipt, nil
}

// execute dispatches the operation content inside [tx]. It returns the
// JSON result and, for deploys, the new contract address. Any returned
// error fails the operation and rolls the scope back.
func (p *Processor) execute(
	tx *storage.Transaction,
	op *Operation,
	opID ids.ID,
	level uint64,
	index uint32,
	fuel *host.Fuel,
	logs *logBuffer,
) ([]byte, keys.Address, error) {
	content := op.Content

	if reveal, ok := content.(*RevealLargePayload); ok {
		inner, err := p.resolve(reveal)
		if err != nil {
			return nil, keys.EmptyAddress, err
		}
		content = inner
	}

	switch c := content.(type) {
	case *Deploy:
		return p.deploy(tx, op, opID, level, index, fuel, logs, c)

	case *RunContract:
		result, err := p.runContract(
			tx, opID, level, index, fuel, logs,
			op.Source, c.Target, c.Entrypoint, c.Args, 0)
		return result, keys.EmptyAddress, err

	default:
		return nil, keys.EmptyAddress, fmt.Errorf("%w: unhandled content kind %q", ErrDecoding, content.Kind())
	}
}

// resolve fetches and verifies a reveal's preimage, decoding the content
// it carries. A reveal may not carry another reveal.
func (p *Processor) resolve(reveal *RevealLargePayload) (Content, error) {
	if p.resolver == nil {
		return nil, ErrNoResolver
	}
	raw, err := p.resolver.Resolve(reveal.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPayloadMismatch, err)
	}
	if root := ids.ID(hashing.ComputeHash256Array(raw)); root != reveal.Root {
		return nil, fmt.Errorf("%w: got %s", ErrPayloadMismatch, root)
	}
	content, err := ParseContent(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPayloadMismatch, err)
	}
	if _, ok := content.(*RevealLargePayload); ok {
		return nil, ErrNestedReveal
	}
	return content, nil
}

// deploy installs code at the address derived from the source and its
// nonce, moves the optional starting credit, and runs the init
// entrypoint when init args are present.
func (p *Processor) deploy(
	tx *storage.Transaction,
	op *Operation,
	opID ids.ID,
	level uint64,
	index uint32,
	fuel *host.Fuel,
	logs *logBuffer,
	c *Deploy,
) ([]byte, keys.Address, error) {
	if len(bytes.TrimSpace(c.Code)) == 0 {
		return nil, keys.EmptyAddress, engine.ErrInvalidCode
	}

	addr := keys.ContractAddress(op.Source, op.Nonce)
	if err := ledger.SetCode(tx, addr, c.Code); err != nil {
		return nil, keys.EmptyAddress, err
	}
	if c.Credit > 0 {
		if err := fuel.Consume(host.FuelTransfer); err != nil {
			return nil, keys.EmptyAddress, err
		}
		if err := ledger.Transfer(tx, op.Source, addr, c.Credit); err != nil {
			return nil, keys.EmptyAddress, err
		}
	}

	result := []byte("null")
	if len(c.InitArgs) > 0 {
		var err error
		result, err = p.runContract(
			tx, opID, level, index, fuel, logs,
			op.Source, addr, InitEntrypoint, c.InitArgs, 0)
		if err != nil {
			return nil, keys.EmptyAddress, err
		}
	}
	return result, addr, nil
}

// runContract instantiates [target]'s code and invokes [entrypoint] with
// [args] in a sandbox bound to [tx]. Nested calls recurse back through
// here with a child scope and the same fuel budget.
func (p *Processor) runContract(
	tx *storage.Transaction,
	opID ids.ID,
	level uint64,
	index uint32,
	fuel *host.Fuel,
	logs *logBuffer,
	caller keys.Address,
	target keys.Address,
	entrypoint string,
	args []byte,
	depth int,
) ([]byte, error) {
	if depth >= maxCallDepth {
		return nil, host.ErrCallDepthExceeded
	}

	code, err := ledger.Code(tx, target)
	if err != nil {
		return nil, err
	}

	env := &host.Env{
		Self:         target,
		Caller:       caller,
		OpID:         opID,
		Level:        level,
		OpIndex:      index,
		Tx:           tx,
		Fuel:         fuel,
		Logs:         logs,
		Log:          p.log,
		GenesisEpoch: p.config.GenesisEpoch,
	}
	env.Call = func(from keys.Address, callee keys.Address, ep string, callArgs []byte) ([]byte, error) {
		// The callee runs in a child scope: its writes merge into this
		// scope on success and vanish with it on rollback.
		child := tx.Begin()
		result, err := p.runContract(
			child, opID, level, index, fuel, logs,
			from, callee, ep, callArgs, depth+1)
		if err != nil {
			child.Rollback()
			return nil, err
		}
		if err := child.Commit(); err != nil {
			return nil, err
		}
		return result, nil
	}
	env.Withdraw = func(from keys.Address, withdrawTarget []byte, amount uint64) error {
		if err := ledger.Debit(tx, from, amount); err != nil {
			return err
		}
		return p.outbox.Append(tx, level, &Withdrawal{
			From:   from,
			Target: withdrawTarget,
			Amount: amount,
		})
	}

	instance, err := p.engine.Instantiate(code, env)
	if err != nil {
		return nil, err
	}
	return instance.Run(entrypoint, args)
}

// errorCode maps an execution failure onto its stable receipt code.
func errorCode(err error) string {
	var guest *engine.GuestError
	if errors.As(err, &guest) {
		if guest.Stack {
			return CodeStackExhausted
		}
		return CodeRuntimeTrap
	}

	switch {
	case errors.Is(err, keys.ErrInvalidSignature):
		return CodeInvalidSignature
	case errors.Is(err, keys.ErrAddressMismatch):
		return CodeAddressMismatch
	case errors.Is(err, ledger.ErrNonceMismatch):
		return CodeNonceMismatch
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return CodeBalanceOverflow
	case errors.Is(err, ledger.ErrAddressOccupied):
		return CodeAddressOccupied
	case errors.Is(err, ledger.ErrNoCode):
		return CodeNoCode
	case errors.Is(err, host.ErrFuelExhausted):
		return CodeFuelExhausted
	case errors.Is(err, storage.ErrTypeMismatch):
		return CodeStorageTypeMismatch
	case errors.Is(err, host.ErrCallDepthExceeded):
		return CodeCallDepthExceeded
	case errors.Is(err, ErrPayloadMismatch), errors.Is(err, ErrNestedReveal), errors.Is(err, ErrNoResolver):
		return CodePayloadMismatch
	case errors.Is(err, engine.ErrInvalidCode):
		return CodeInvalidCode
	case errors.Is(err, engine.ErrNoEntrypoint):
		return CodeNoEntrypoint
	case errors.Is(err, host.ErrBadAmount),
		errors.Is(err, host.ErrNotSerializable),
		errors.Is(err, keys.ErrInvalidAddress):
		// Guest misuse of a host capability is the contract's fault, not
		// the kernel's. INTERNAL stays reserved for kernel faults.
		return CodeRuntimeTrap
	default:
		return CodeInternal
	}
}
