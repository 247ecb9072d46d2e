// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// CodecVersion versions every inbox and outbox encoding.
	CodecVersion = 0
)

// Codec serializes operations, receipts and outbox messages.
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}

	// Operation content types. Registration order is part of the wire
	// format: never reorder, only append.
	errs.Add(
		c.RegisterType(&Deploy{}),
		c.RegisterType(&RunContract{}),
		c.RegisterType(&RevealLargePayload{}),
	)

	// Outbox payload types.
	errs.Add(
		c.RegisterType(&Receipt{}),
		c.RegisterType(&Withdrawal{}),
	)

	errs.Add(
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}
