// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relay drains the kernel's outbox to an external sink. Delivery
// is at-least-once: the cursor only advances after the sink accepted the
// message, so consumers must dedup on sequence number.
package relay

import (
	"context"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/rift-labs/riftvm/kernel"
)

// Sink accepts outbox messages in sequence order.
type Sink interface {
	Deliver(msg *kernel.OutboxMessage) error
	Close() error
}

// Relay pumps pending outbox messages into a sink.
type Relay struct {
	outbox *kernel.Outbox
	sink   Sink
	log    log15.Logger
}

func New(outbox *kernel.Outbox, sink Sink, log log15.Logger) *Relay {
	return &Relay{outbox: outbox, sink: sink, log: log}
}

// Drain delivers everything currently pending and advances the cursor.
// A sink failure leaves the cursor where it was; the next drain retries
// from the first undelivered message.
func (r *Relay) Drain() error {
	pending, err := r.outbox.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	for _, msg := range pending {
		if err := r.sink.Deliver(msg); err != nil {
			r.log.Warn("outbox delivery failed", "seq", msg.Seq, "error", err)
			return err
		}
	}

	last := pending[len(pending)-1].Seq
	if err := r.outbox.MarkDelivered(last); err != nil {
		return err
	}
	r.log.Debug("outbox drained", "delivered", len(pending), "through", last)
	return nil
}

// Run drains on [interval] until the context ends.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(); err != nil {
				r.log.Error("outbox drain failed", "error", err)
			}
		}
	}
}
