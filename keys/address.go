// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keys

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/cb58"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind tags an address as belonging to a user key or to a deployed
// contract.
type Kind byte

const (
	User Kind = iota
	Contract
)

func (k Kind) String() string {
	if k == Contract {
		return "contract"
	}
	return "user"
}

const (
	// AddressLen is one kind byte followed by a 20 byte digest.
	AddressLen = 21

	digestLen = 20
)

var (
	ErrInvalidAddress = errors.New("invalid address")

	// EmptyAddress is the zero value; no key or deployment derives it.
	EmptyAddress = Address{}
)

// Address identifies an account. Derivation is a pure function of its
// inputs and is stable indefinitely: every ledger and storage key hangs off
// this identity.
type Address [AddressLen]byte

// UserAddress derives the address of a public key: the trailing 20 bytes of
// keccak256 over the uncompressed key, tagged User.
func UserAddress(pub *ecdsa.PublicKey) Address {
	var a Address
	a[0] = byte(User)
	digest := crypto.PubkeyToAddress(*pub)
	copy(a[1:], digest[:])
	return a
}

// ContractAddress derives the address of a contract deployed by
// [deployer] at [nonce] (the deployer's nonce when the deploy operation was
// accepted): keccak256(deployer || nonce)[12:], tagged Contract.
func ContractAddress(deployer Address, nonce uint64) Address {
	preimage := make([]byte, AddressLen+8)
	copy(preimage, deployer[:])
	binary.BigEndian.PutUint64(preimage[AddressLen:], nonce)

	var a Address
	a[0] = byte(Contract)
	copy(a[1:], crypto.Keccak256(preimage)[32-digestLen:])
	return a
}

func (a Address) Kind() Kind       { return Kind(a[0]) }
func (a Address) IsContract() bool { return a.Kind() == Contract }
func (a Address) Bytes() []byte    { return a[:] }

// String returns the CB58 text form (checksummed, like avalanche IDs).
func (a Address) String() string {
	s, _ := cb58.Encode(a[:])
	return s
}

// ParseAddress parses the CB58 text form back into an address.
func ParseAddress(s string) (Address, error) {
	raw, err := cb58.Decode(s)
	if err != nil {
		return EmptyAddress, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if len(raw) != AddressLen {
		return EmptyAddress, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLen, len(raw))
	}
	if k := Kind(raw[0]); k != User && k != Contract {
		return EmptyAddress, fmt.Errorf("%w: unknown kind 0x%02x", ErrInvalidAddress, raw[0])
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}
