// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/rift-labs/riftvm/keys"
)

var (
	ErrDecoding     = errors.New("malformed inbox bytes")
	ErrNestedReveal = errors.New("reveal payload may not contain another reveal")
)

// Content is an operation's typed payload. Concrete types are registered
// with the codec; an unknown content tag fails decoding outright.
type Content interface {
	// Kind names the content for logs and receipts.
	Kind() string
}

// Deploy installs contract code at the address derived from the source and
// its nonce at deploy time. Credit moves that amount from the deployer to
// the new contract. When InitArgs is present, the contract's "init"
// entrypoint runs within the same operation.
type Deploy struct {
	Code     []byte `serialize:"true" json:"code"`
	Credit   uint64 `serialize:"true" json:"credit"`
	InitArgs []byte `serialize:"true" json:"initArgs"`
}

func (*Deploy) Kind() string { return "deploy" }

// RunContract invokes an entrypoint of a deployed contract. Args is a JSON
// document handed to the entrypoint.
type RunContract struct {
	Target     keys.Address `serialize:"true" json:"target"`
	Entrypoint string       `serialize:"true" json:"entrypoint"`
	Args       []byte       `serialize:"true" json:"args"`
}

func (*RunContract) Kind() string { return "runContract" }

// RevealLargePayload references an out-of-band payload by hash: the
// transport reveals the preimage, the kernel verifies it against Root and
// executes the content it decodes to.
type RevealLargePayload struct {
	Root ids.ID `serialize:"true" json:"root"`
	Size uint64 `serialize:"true" json:"size"`
}

func (*RevealLargePayload) Kind() string { return "revealLargePayload" }

// contentEnvelope wraps a Content for standalone (reveal payload)
// encoding.
type contentEnvelope struct {
	Content Content `serialize:"true"`
}

// Operation is one signed inbox entry.
type Operation struct {
	Source    keys.Address   `serialize:"true" json:"source"`
	Nonce     uint64         `serialize:"true" json:"nonce"`
	Content   Content        `serialize:"true" json:"content"`
	Signature keys.Signature `serialize:"true" json:"signature"`
}

// UnsignedBytes is the canonical encoding the signature covers.
func (op *Operation) UnsignedBytes() ([]byte, error) {
	unsigned := Operation{
		Source:  op.Source,
		Nonce:   op.Nonce,
		Content: op.Content,
	}
	return Codec.Marshal(CodecVersion, &unsigned)
}

// Bytes is the full wire encoding carried by the inbox.
func (op *Operation) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, op)
}

// ID identifies the operation: sha256 over the full wire encoding.
func (op *Operation) ID() (ids.ID, error) {
	raw, err := op.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	return ids.ID(hashing.ComputeHash256Array(raw)), nil
}

// SignOperation builds and signs an operation from [key], whose derived
// address becomes the source.
func SignOperation(nonce uint64, content Content, key *ecdsa.PrivateKey) (*Operation, error) {
	op := &Operation{
		Source:  keys.UserAddress(&key.PublicKey),
		Nonce:   nonce,
		Content: content,
	}
	unsigned, err := op.UnsignedBytes()
	if err != nil {
		return nil, err
	}
	if op.Signature, err = keys.Sign(unsigned, key); err != nil {
		return nil, err
	}
	return op, nil
}

// ParseOperation decodes raw inbox bytes. Unknown content tags and codec
// version mismatches are rejected as DecodingError, never silently
// ignored.
func ParseOperation(raw []byte) (*Operation, error) {
	op := &Operation{}
	version, err := Codec.Unmarshal(raw, op)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecoding, err)
	}
	if version != CodecVersion {
		return nil, fmt.Errorf("%w: codec version %d", ErrDecoding, version)
	}
	return op, nil
}

// EncodeContent wraps [content] as a standalone reveal payload.
func EncodeContent(content Content) ([]byte, ids.ID, error) {
	raw, err := Codec.Marshal(CodecVersion, &contentEnvelope{Content: content})
	if err != nil {
		return nil, ids.Empty, err
	}
	return raw, ids.ID(hashing.ComputeHash256Array(raw)), nil
}

// ParseContent decodes a revealed payload back into its content.
func ParseContent(raw []byte) (Content, error) {
	envelope := &contentEnvelope{}
	version, err := Codec.Unmarshal(raw, envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecoding, err)
	}
	if version != CodecVersion {
		return nil, fmt.Errorf("%w: codec version %d", ErrDecoding, version)
	}
	return envelope.Content, nil
}
