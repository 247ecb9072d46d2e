// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLen is a recoverable secp256k1 signature: r || s || v.
const SignatureLen = 65

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrAddressMismatch  = errors.New("recovered signer does not match declared source")
)

// Signature is the recoverable signature carried by every operation.
type Signature [SignatureLen]byte

// SigHash is the digest signed by operation sources: keccak256 of the
// operation's canonical unsigned encoding.
func SigHash(unsigned []byte) []byte {
	return crypto.Keccak256(unsigned)
}

// Sign produces a recoverable signature over the canonical unsigned
// encoding of an operation.
func Sign(unsigned []byte, key *ecdsa.PrivateKey) (Signature, error) {
	var sig Signature
	raw, err := crypto.Sign(SigHash(unsigned), key)
	if err != nil {
		return sig, err
	}
	if len(raw) != SignatureLen {
		return sig, fmt.Errorf("%w: unexpected length %d", ErrInvalidSignature, len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}

// RecoverSigner recovers the user address that signed [unsigned].
func RecoverSigner(unsigned []byte, sig Signature) (Address, error) {
	pub, err := crypto.SigToPub(SigHash(unsigned), sig[:])
	if err != nil {
		return EmptyAddress, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	return UserAddress(pub), nil
}

// Verify checks [sig] over [unsigned] against the declared [source]
// address. It fails with ErrInvalidSignature when the signature does not
// recover, and with ErrAddressMismatch when it recovers a different signer.
func Verify(unsigned []byte, sig Signature, source Address) error {
	signer, err := RecoverSigner(unsigned, sig)
	if err != nil {
		return err
	}
	if signer != source {
		return fmt.Errorf("%w: signed by %s, declared %s", ErrAddressMismatch, signer, source)
	}
	return nil
}

// GenerateKey returns a fresh secp256k1 key. Test and tooling helper; the
// kernel itself never creates keys.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}
