// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rift-labs/riftvm/host"
	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/storage"
)

type recordedLog struct {
	level, message string
}

type logRecorder struct {
	lines []recordedLog
}

func (r *logRecorder) AppendLog(level, message string) {
	r.lines = append(r.lines, recordedLog{level, message})
}

func newTestEnv(t *testing.T, budget uint64) (*host.Env, *logRecorder) {
	t.Helper()
	store := storage.New(memdb.New())
	key, err := keys.GenerateKey()
	require.NoError(t, err)

	logs := &logRecorder{}
	env := &host.Env{
		Self:  keys.ContractAddress(keys.UserAddress(&key.PublicKey), 0),
		Tx:    store.Begin(),
		Fuel:  host.NewFuel(budget),
		Logs:  logs,
		Log:   log15.New("test", t.Name()),
		Level: 1,
	}
	return env, logs
}

const counterContract = `
function init() {
	Kv.set("count", 0);
}
function bump(args) {
	var n = Kv.get("count") || 0;
	n += args.by;
	Kv.set("count", n);
	return { count: n };
}
`

func TestRunEntrypoint(t *testing.T) {
	assert := assert.New(t)
	env, _ := newTestEnv(t, 1_000_000)
	eng := New(log15.New())

	instance, err := eng.Instantiate([]byte(counterContract), env)
	require.NoError(t, err)

	_, err = instance.Run("init", nil)
	assert.NoError(err)

	result, err := instance.Run("bump", []byte(`{"by":5}`))
	assert.NoError(err)
	assert.JSONEq(`{"count":5}`, string(result))

	result, err = instance.Run("bump", []byte(`{"by":2}`))
	assert.NoError(err)
	assert.JSONEq(`{"count":7}`, string(result))
}

func TestInvalidCode(t *testing.T) {
	assert := assert.New(t)
	env, _ := newTestEnv(t, 1_000_000)

	_, err := New(log15.New()).Instantiate([]byte("function ( {"), env)
	assert.ErrorIs(err, ErrInvalidCode)
}

func TestMissingEntrypoint(t *testing.T) {
	assert := assert.New(t)
	env, _ := newTestEnv(t, 1_000_000)

	instance, err := New(log15.New()).Instantiate([]byte("var x = 1;"), env)
	require.NoError(t, err)

	_, err = instance.Run("nope", nil)
	assert.ErrorIs(err, ErrNoEntrypoint)
}

func TestGuestExceptionIsTrapped(t *testing.T) {
	assert := assert.New(t)
	env, _ := newTestEnv(t, 1_000_000)

	instance, err := New(log15.New()).Instantiate(
		[]byte(`function boom() { throw new Error("guest failure"); }`), env)
	require.NoError(t, err)

	_, err = instance.Run("boom", nil)
	var guestErr *GuestError
	assert.ErrorAs(err, &guestErr)
	assert.Contains(guestErr.Message, "guest failure")
}

func TestStackExhaustionIsTrapped(t *testing.T) {
	assert := assert.New(t)
	env, _ := newTestEnv(t, 1_000_000_000)

	instance, err := New(log15.New()).Instantiate(
		[]byte(`function spin() { return spin(); }`), env)
	require.NoError(t, err)

	_, err = instance.Run("spin", nil)
	var guestErr *GuestError
	assert.ErrorAs(err, &guestErr)
	assert.True(guestErr.Stack)
}

func TestFuelExhaustionAborts(t *testing.T) {
	assert := assert.New(t)
	// Enough to instantiate and start, not enough to keep writing.
	env, _ := newTestEnv(t, 5_000)

	instance, err := New(log15.New()).Instantiate(
		[]byte(`function churn() { for (;;) { Kv.set("k", "vvvvvvvvvvvvvvvv"); } }`), env)
	require.NoError(t, err)

	_, err = instance.Run("churn", nil)
	assert.ErrorIs(err, host.ErrFuelExhausted)
	assert.Zero(env.Fuel.Remaining())
}

func TestFuelExhaustionUncatchable(t *testing.T) {
	assert := assert.New(t)
	env, _ := newTestEnv(t, 5_000)

	// The guest tries to swallow the failure; the sticky exhaustion flag
	// fails the run anyway.
	instance, err := New(log15.New()).Instantiate(
		[]byte(`function churn() {
			try { for (;;) { Kv.set("k", "vvvvvvvvvvvvvvvv"); } } catch (e) { return "caught"; }
		}`), env)
	require.NoError(t, err)

	_, err = instance.Run("churn", nil)
	assert.ErrorIs(err, host.ErrFuelExhausted)
}

func TestConsoleAppendsToReceiptLog(t *testing.T) {
	assert := assert.New(t)
	env, logs := newTestEnv(t, 1_000_000)

	instance, err := New(log15.New()).Instantiate(
		[]byte(`function talk() { Console.log("hello", 42); Console.warn("careful"); return 1; }`), env)
	require.NoError(t, err)

	result, err := instance.Run("talk", nil)
	assert.NoError(err)
	assert.Equal("1", string(result))

	require.Len(t, logs.lines, 2)
	assert.Equal(recordedLog{"log", "hello 42"}, logs.lines[0])
	assert.Equal(recordedLog{"warn", "careful"}, logs.lines[1])
}

func TestDeterministicKeysOrder(t *testing.T) {
	assert := assert.New(t)
	env, _ := newTestEnv(t, 1_000_000)

	instance, err := New(log15.New()).Instantiate([]byte(`
		function fill() {
			Kv.set("z", 1); Kv.set("a", 2); Kv.set("m", 3);
			return Kv.keys();
		}
	`), env)
	require.NoError(t, err)

	result, err := instance.Run("fill", nil)
	assert.NoError(err)
	assert.Equal(`["a","m","z"]`, string(result))
}

func TestDeterministicRandom(t *testing.T) {
	assert := assert.New(t)
	eng := New(log15.New())
	code := []byte(`function draw() { return [Rollup.random(), Rollup.random()]; }`)

	run := func() string {
		env, _ := newTestEnv(t, 1_000_000)
		env.Self = keys.Address{} // fix identity so both runs share metadata
		instance, err := eng.Instantiate(code, env)
		require.NoError(t, err)
		out, err := instance.Run("draw", nil)
		require.NoError(t, err)
		return string(out)
	}

	assert.Equal(run(), run())
}
