// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAddressDerivationIsPure(t *testing.T) {
	assert := assert.New(t)

	key, err := GenerateKey()
	require.NoError(t, err)

	a := UserAddress(&key.PublicKey)
	b := UserAddress(&key.PublicKey)
	assert.Equal(a, b)
	assert.Equal(User, a.Kind())
	assert.False(a.IsContract())

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(a, UserAddress(&other.PublicKey))
}

func TestContractAddressDerivation(t *testing.T) {
	assert := assert.New(t)

	key, err := GenerateKey()
	require.NoError(t, err)
	deployer := UserAddress(&key.PublicKey)

	a := ContractAddress(deployer, 0)
	assert.Equal(Contract, a.Kind())
	assert.True(a.IsContract())

	// Same inputs, same address; a different nonce moves it.
	assert.Equal(a, ContractAddress(deployer, 0))
	assert.NotEqual(a, ContractAddress(deployer, 1))
}

func TestAddressTextRoundtrip(t *testing.T) {
	assert := assert.New(t)

	key, err := GenerateKey()
	require.NoError(t, err)
	a := UserAddress(&key.PublicKey)

	parsed, err := ParseAddress(a.String())
	assert.NoError(err)
	assert.Equal(a, parsed)

	_, err = ParseAddress("not-a-cb58-address!!")
	assert.ErrorIs(err, ErrInvalidAddress)
}

func TestSignVerify(t *testing.T) {
	assert := assert.New(t)

	key, err := GenerateKey()
	require.NoError(t, err)
	source := UserAddress(&key.PublicKey)
	unsigned := []byte("canonical operation encoding")

	sig, err := Sign(unsigned, key)
	require.NoError(t, err)

	assert.NoError(Verify(unsigned, sig, source))

	// A recovered-but-different signer is an address mismatch.
	other, err := GenerateKey()
	require.NoError(t, err)
	assert.ErrorIs(Verify(unsigned, sig, UserAddress(&other.PublicKey)), ErrAddressMismatch)

	// Tampered payload recovers some signer, never the declared one.
	assert.Error(Verify(append([]byte(nil), append(unsigned, 'x')...), sig, source))
}
