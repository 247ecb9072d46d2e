// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuelConsume(t *testing.T) {
	assert := assert.New(t)

	fuel := NewFuel(1_000)
	assert.NoError(fuel.Consume(400))
	assert.Equal(uint64(600), fuel.Remaining())
	assert.Equal(uint64(400), fuel.Used())

	// Exceeding the budget burns the remainder: a failed operation
	// reports its full budget as used.
	assert.ErrorIs(fuel.Consume(601), ErrFuelExhausted)
	assert.Zero(fuel.Remaining())
	assert.Equal(uint64(1_000), fuel.Used())

	// Once exhausted, everything fails, including zero-cost calls after
	// a one-unit charge.
	assert.ErrorIs(fuel.Consume(1), ErrFuelExhausted)
}

func TestDeterministicClockAndRandom(t *testing.T) {
	assert := assert.New(t)

	mk := func() *Env {
		return &Env{Level: 42, OpIndex: 3, GenesisEpoch: 1_700_000_000}
	}

	a, b := mk(), mk()
	assert.Equal(a.Timestamp(), b.Timestamp())
	assert.Equal(uint64(1_700_000_000+42*rollupBlockSeconds), a.Timestamp())

	// Identical metadata yields an identical draw sequence.
	for i := 0; i < 8; i++ {
		assert.Equal(a.RandomSeed(), b.RandomSeed())
	}

	// The stream advances between draws.
	c := mk()
	first := c.RandomSeed()
	assert.NotEqual(first, c.RandomSeed())
}

func TestKvPathStaysNamespaced(t *testing.T) {
	assert := assert.New(t)

	env := &Env{}
	path, err := env.KvPath("counters/total")
	assert.NoError(err)
	assert.Equal("kv/"+env.Self.String()+"/counters/total", path.String())

	// Separator abuse cannot escape the namespace: empty segments are
	// invalid, and segments are literal names, never traversal.
	_, err = env.KvPath("//etc")
	assert.Error(err)
	_, err = env.KvPath("")
	assert.Error(err)
}
