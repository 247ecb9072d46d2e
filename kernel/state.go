// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"fmt"
	"sort"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/ledger"
	"github.com/rift-labs/riftvm/storage"
)

// Durable-store layout owned by the kernel. Contract namespaces live under
// kv/, accounts under accounts/ (see ledger).
var (
	initializedPath  = storage.MustPath("genesis", "initialized")
	lastLevelPath    = storage.MustPath("meta", "lastLevel")
	receiptCountPath = storage.MustPath("meta", "receiptCount")
	outboxNextPath   = storage.MustPath("meta", "outboxNext")
	outboxHeadPath   = storage.MustPath("meta", "outboxHead")
)

func receiptSeqPath(seq uint64) storage.Path {
	return storage.MustPath("receipts", "index", seqSegment(seq))
}

func receiptIDPath(opID ids.ID) storage.Path {
	return storage.MustPath("receipts", "byId", opID.String())
}

// Genesis seeds the ledger on an uninitialized store.
type Genesis struct {
	// Epoch anchors the deterministic clock, unix seconds.
	Epoch uint64 `json:"epoch"`
	// Allocations maps address text form to starting balance.
	Allocations map[string]uint64 `json:"allocations"`
}

// InitGenesis applies [genesis] once. Subsequent boots are no-ops; the
// initialized flag guards it.
func (p *Processor) InitGenesis(genesis *Genesis) error {
	tx := p.store.Begin()

	initialized, err := tx.Has(initializedPath)
	if err != nil {
		tx.Rollback()
		return err
	}
	if initialized {
		tx.Rollback()
		return nil
	}

	// Apply in sorted address order so every replay writes identically.
	addrs := make([]string, 0, len(genesis.Allocations))
	for addr := range genesis.Allocations {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, text := range addrs {
		addr, err := keys.ParseAddress(text)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("genesis allocation %q: %w", text, err)
		}
		if err := ledger.Credit(tx, addr, genesis.Allocations[text]); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Put(initializedPath, nil); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	p.log.Info("genesis applied", "allocations", len(addrs), "epoch", genesis.Epoch)
	return nil
}

// Tip reports the last processed inbox level and the receipt count.
func (p *Processor) Tip() (uint64, uint64, error) {
	tx := p.store.Begin()
	defer tx.Rollback()

	level, err := readCounter(tx, lastLevelPath)
	if err != nil {
		return 0, 0, err
	}
	count, err := readCounter(tx, receiptCountPath)
	if err != nil {
		return 0, 0, err
	}
	return level, count, nil
}

// GetReceipt returns the first receipt recorded for [opID].
func (p *Processor) GetReceipt(opID ids.ID) (*Receipt, error) {
	tx := p.store.Begin()
	defer tx.Rollback()

	indexed, err := tx.Has(receiptIDPath(opID))
	if err != nil {
		return nil, err
	}
	if !indexed {
		return nil, ErrReceiptNotFound
	}
	seq, err := readCounter(tx, receiptIDPath(opID))
	if err != nil {
		return nil, err
	}
	return p.GetReceiptByIndex(seq)
}

// GetReceiptByIndex returns the [seq]-th receipt ever emitted.
func (p *Processor) GetReceiptByIndex(seq uint64) (*Receipt, error) {
	tx := p.store.Begin()
	defer tx.Rollback()

	raw, err := tx.Get(receiptSeqPath(seq))
	if err == storage.ErrNotFound {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	receipt := &Receipt{}
	if _, err := Codec.Unmarshal(raw, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// GetAccount returns the committed account state of [addr].
func (p *Processor) GetAccount(addr keys.Address) (ledger.Account, error) {
	tx := p.store.Begin()
	defer tx.Rollback()
	return ledger.GetAccount(tx, addr)
}

// GetStorage reads a committed leaf from a contract's kv namespace.
func (p *Processor) GetStorage(addr keys.Address, key string) ([]byte, error) {
	sub, err := storage.ParsePath(key)
	if err != nil {
		return nil, err
	}
	base := storage.MustPath("kv", addr.String())
	path, err := base.Append(sub...)
	if err != nil {
		return nil, err
	}
	return p.store.Get(path)
}

// emit persists [receipt] append-only and queues it on the outbox, in one
// scope of its own: receipts survive regardless of the operation outcome.
func (p *Processor) emit(receipt *Receipt) error {
	tx := p.store.Begin()

	raw, err := Codec.Marshal(CodecVersion, receipt)
	if err != nil {
		tx.Rollback()
		return err
	}

	seq, err := readCounter(tx, receiptCountPath)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Put(receiptSeqPath(seq), raw); err != nil {
		tx.Rollback()
		return err
	}
	if err := writeCounter(tx, receiptCountPath, seq+1); err != nil {
		tx.Rollback()
		return err
	}

	// First receipt for an operation id wins the lookup index; replays
	// of the same bytes never overwrite it.
	indexed, err := tx.Has(receiptIDPath(receipt.OpID))
	if err != nil {
		tx.Rollback()
		return err
	}
	if !indexed {
		if err := writeCounter(tx, receiptIDPath(receipt.OpID), seq); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := p.outbox.Append(tx, receipt.Level, receipt); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
