// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"encoding/binary"
	"fmt"

	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/storage"
)

// OutboxPayload is anything the kernel relays to the base chain: receipts
// and guest-initiated withdrawals.
type OutboxPayload interface {
	outboxPayload()
}

// Withdrawal moves rollup funds back to a base-chain target. Queued from
// the guest's withdraw capability inside the execution scope, so a rolled
// back operation leaves no withdrawal behind.
type Withdrawal struct {
	From   keys.Address `serialize:"true" json:"from"`
	Target []byte       `serialize:"true" json:"target"`
	Amount uint64       `serialize:"true" json:"amount"`
}

func (*Withdrawal) outboxPayload() {}

// OutboxMessage is one versioned outbox queue entry, ordered by Seq.
type OutboxMessage struct {
	Level   uint64        `serialize:"true" json:"level"`
	Seq     uint64        `serialize:"true" json:"seq"`
	Payload OutboxPayload `serialize:"true" json:"payload"`
}

// Outbox is the ordered queue of serialized messages awaiting relay. The
// queue and its cursor live in the durable store; appends happen inside
// the appending operation's scope, draining in its own scope.
type Outbox struct {
	store *storage.Store
}

func NewOutbox(store *storage.Store) *Outbox {
	return &Outbox{store: store}
}

func outboxEntryPath(seq uint64) storage.Path {
	return storage.MustPath("outbox", "queue", seqSegment(seq))
}

// seqSegment formats a sequence number so lexicographic key order equals
// numeric order.
func seqSegment(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

// Append queues [payload] within [tx]: the entry commits or rolls back
// with the enclosing scope.
func (o *Outbox) Append(tx *storage.Transaction, level uint64, payload OutboxPayload) error {
	seq, err := readCounter(tx, outboxNextPath)
	if err != nil {
		return err
	}
	msg := &OutboxMessage{Level: level, Seq: seq, Payload: payload}
	raw, err := Codec.Marshal(CodecVersion, msg)
	if err != nil {
		return err
	}
	if err := tx.Put(outboxEntryPath(seq), raw); err != nil {
		return err
	}
	return writeCounter(tx, outboxNextPath, seq+1)
}

// Pending returns the committed, not yet delivered messages in order.
func (o *Outbox) Pending() ([]*OutboxMessage, error) {
	tx := o.store.Begin()
	defer tx.Rollback()

	head, err := readCounter(tx, outboxHeadPath)
	if err != nil {
		return nil, err
	}
	next, err := readCounter(tx, outboxNextPath)
	if err != nil {
		return nil, err
	}

	msgs := make([]*OutboxMessage, 0, next-head)
	for seq := head; seq < next; seq++ {
		raw, err := tx.Get(outboxEntryPath(seq))
		if err != nil {
			return nil, err
		}
		msg := &OutboxMessage{}
		if _, err := Codec.Unmarshal(raw, msg); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// MarkDelivered advances the delivery cursor past [seq] and drops the
// delivered entries. Delivery is at-least-once: a crash between relay and
// cursor advance re-relays.
func (o *Outbox) MarkDelivered(seq uint64) error {
	tx := o.store.Begin()
	head, err := readCounter(tx, outboxHeadPath)
	if err != nil {
		tx.Rollback()
		return err
	}
	for s := head; s <= seq; s++ {
		if err := tx.Delete(outboxEntryPath(s)); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := writeCounter(tx, outboxHeadPath, seq+1); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func readCounter(tx *storage.Transaction, path storage.Path) (uint64, error) {
	raw, err := tx.Get(path)
	if err == storage.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupted counter at %s", path)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func writeCounter(tx *storage.Transaction, path storage.Path, value uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, value)
	return tx.Put(path, raw)
}
