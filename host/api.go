// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/dop251/goja"

	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/ledger"
	"github.com/rift-labs/riftvm/storage"
)

var (
	ErrNotSerializable = errors.New("value is not JSON-serializable")
	ErrBadAmount       = errors.New("amount must be a non-negative decimal string")
)

// Register installs the capability set on the sandbox's global scope:
// Kv, Console, Ledger, Contract and Rollup. The surface is fixed and
// versioned with the operation codec; guests get nothing else.
func Register(rt *goja.Runtime, env *Env) error {
	// Fixed registration order: global enumeration order is visible to
	// guests and must not vary between replays.
	caps := []struct {
		name  string
		build func(*goja.Runtime, *Env) *goja.Object
	}{
		{"Kv", kvObject},
		{"Console", consoleObject},
		{"Ledger", ledgerObject},
		{"Contract", contractObject},
		{"Rollup", rollupObject},
	}
	for _, c := range caps {
		if err := rt.Set(c.name, c.build(rt, env)); err != nil {
			return err
		}
	}
	return nil
}

// charge burns fuel and aborts the whole call chain, uncatchably, when the
// budget is spent.
func charge(rt *goja.Runtime, env *Env, amount uint64) {
	if err := env.Fuel.Consume(amount); err != nil {
		abort(rt, err)
	}
}

// abort interrupts the runtime before throwing, so no guest catch block
// can swallow the failure: the interrupt flag stops execution at the next
// instruction regardless.
func abort(rt *goja.Runtime, err error) {
	rt.Interrupt(err)
	panic(rt.NewGoError(err))
}

// throwErr surfaces a host failure as a catchable guest exception. An
// ancestor contract may deliberately tolerate a callee's failure.
func throwErr(rt *goja.Runtime, err error) {
	panic(rt.NewGoError(err))
}

func kvObject(rt *goja.Runtime, env *Env) *goja.Object {
	obj := rt.NewObject()

	mustSet(obj, "get", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		charge(rt, env, FuelHostCallBase+uint64(len(key))*FuelPerReadByte)
		path, err := env.KvPath(key)
		if err != nil {
			throwErr(rt, err)
		}
		raw, err := env.Tx.Get(path)
		if err == storage.ErrNotFound {
			return goja.Null()
		}
		if err != nil {
			throwErr(rt, err)
		}
		charge(rt, env, uint64(len(raw))*FuelPerReadByte)
		value, err := JSONParse(rt, raw)
		if err != nil {
			throwErr(rt, err)
		}
		return value
	})

	mustSet(obj, "set", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		raw, err := JSONStringify(rt, call.Argument(1))
		if err != nil {
			throwErr(rt, err)
		}
		charge(rt, env, FuelHostCallBase+uint64(len(key)+len(raw))*FuelPerWriteByte)
		path, err := env.KvPath(key)
		if err != nil {
			throwErr(rt, err)
		}
		if err := env.Tx.Put(path, raw); err != nil {
			throwErr(rt, err)
		}
		return goja.Undefined()
	})

	mustSet(obj, "delete", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		charge(rt, env, FuelHostCallBase+uint64(len(key))*FuelPerWriteByte)
		path, err := env.KvPath(key)
		if err != nil {
			throwErr(rt, err)
		}
		if err := env.Tx.Delete(path); err != nil {
			throwErr(rt, err)
		}
		return goja.Undefined()
	})

	mustSet(obj, "has", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		charge(rt, env, FuelHostCallBase+uint64(len(key))*FuelPerReadByte)
		path, err := env.KvPath(key)
		if err != nil {
			throwErr(rt, err)
		}
		ok, err := env.Tx.Has(path)
		if err != nil {
			throwErr(rt, err)
		}
		return rt.ToValue(ok)
	})

	// keys lists child names under a key prefix in canonical
	// (lexicographic) order — the only iteration order guests ever see.
	mustSet(obj, "keys", func(call goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase)
		path := storage.MustPath("kv", env.Self.String())
		if arg := call.Argument(0); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			var err error
			if path, err = env.KvPath(arg.String()); err != nil {
				throwErr(rt, err)
			}
		}
		children, err := env.Tx.ListChildren(path)
		if err != nil {
			throwErr(rt, err)
		}
		charge(rt, env, uint64(len(children))*FuelPerReadByte)
		return rt.ToValue(children)
	})

	return obj
}

func consoleObject(rt *goja.Runtime, env *Env) *goja.Object {
	obj := rt.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		level := level
		mustSet(obj, level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			line := strings.Join(parts, " ")
			charge(rt, env, FuelHostCallBase+uint64(len(line))*FuelPerLogByte)
			env.Logs.AppendLog(level, line)
			if env.Log != nil {
				env.Log.Debug("guest log", "contract", env.Self, "level", level, "msg", line)
			}
			return goja.Undefined()
		})
	}
	return obj
}

func ledgerObject(rt *goja.Runtime, env *Env) *goja.Object {
	obj := rt.NewObject()

	// Balances cross the boundary as decimal strings: uint64 exceeds the
	// exactly-representable range of JS numbers.
	mustSet(obj, "balance", func(call goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase)
		addr, err := parseAddress(call.Argument(0).String())
		if err != nil {
			throwErr(rt, err)
		}
		balance, err := ledger.Balance(env.Tx, addr)
		if err != nil {
			throwErr(rt, err)
		}
		return rt.ToValue(strconv.FormatUint(balance, 10))
	})

	mustSet(obj, "transfer", func(call goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase+FuelTransfer)
		to, err := parseAddress(call.Argument(0).String())
		if err != nil {
			throwErr(rt, err)
		}
		amount, err := parseAmount(call.Argument(1))
		if err != nil {
			throwErr(rt, err)
		}
		if err := ledger.Transfer(env.Tx, env.Self, to, amount); err != nil {
			throwErr(rt, err)
		}
		return goja.Undefined()
	})

	return obj
}

func contractObject(rt *goja.Runtime, env *Env) *goja.Object {
	obj := rt.NewObject()

	mustSet(obj, "call", func(call goja.FunctionCall) goja.Value {
		target, err := parseAddress(call.Argument(0).String())
		if err != nil {
			throwErr(rt, err)
		}
		entrypoint := call.Argument(1).String()
		args := []byte("null")
		if arg := call.Argument(2); !goja.IsUndefined(arg) {
			if args, err = JSONStringify(rt, arg); err != nil {
				throwErr(rt, err)
			}
		}
		charge(rt, env, FuelCallBase+uint64(len(args))*FuelPerWriteByte)

		result, err := env.Call(env.Self, target, entrypoint, args)
		if errors.Is(err, ErrFuelExhausted) || errors.Is(err, ErrCallDepthExceeded) {
			abort(rt, err)
		}
		if err != nil {
			throwErr(rt, err)
		}
		if len(result) == 0 {
			return goja.Null()
		}
		value, err := JSONParse(rt, result)
		if err != nil {
			throwErr(rt, err)
		}
		return value
	})

	return obj
}

func rollupObject(rt *goja.Runtime, env *Env) *goja.Object {
	obj := rt.NewObject()

	mustSet(obj, "level", func(goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase)
		return rt.ToValue(env.Level)
	})
	mustSet(obj, "opIndex", func(goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase)
		return rt.ToValue(env.OpIndex)
	})
	mustSet(obj, "self", func(goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase)
		return rt.ToValue(env.Self.String())
	})
	mustSet(obj, "caller", func(goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase)
		return rt.ToValue(env.Caller.String())
	})
	mustSet(obj, "timestamp", func(goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase)
		return rt.ToValue(env.Timestamp())
	})

	// random draws from a keccak stream seeded by rollup metadata; the
	// result is a float in [0, 1) built from 53 bits, replay-stable.
	mustSet(obj, "random", func(goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase)
		seed := env.RandomSeed()
		bits := binary.BigEndian.Uint64(seed[:8]) >> 11
		return rt.ToValue(float64(bits) / float64(uint64(1)<<53))
	})

	mustSet(obj, "withdraw", func(call goja.FunctionCall) goja.Value {
		charge(rt, env, FuelHostCallBase+FuelWithdraw)
		target, err := formatting.Decode(formatting.Hex, call.Argument(0).String())
		if err != nil {
			throwErr(rt, fmt.Errorf("invalid withdrawal target: %w", err))
		}
		amount, err := parseAmount(call.Argument(1))
		if err != nil {
			throwErr(rt, err)
		}
		if err := env.Withdraw(env.Self, target, amount); err != nil {
			throwErr(rt, err)
		}
		return goja.Undefined()
	})

	return obj
}

func mustSet(obj *goja.Object, name string, fn func(goja.FunctionCall) goja.Value) {
	if err := obj.Set(name, fn); err != nil {
		panic(err)
	}
}

func parseAmount(v goja.Value) (uint64, error) {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, ErrBadAmount
	}
	s := v.String()
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	return amount, nil
}

// JSONStringify serializes a guest value with the sandbox's own
// JSON.stringify: property order is the guest's insertion order, with no
// Go map round-trip to perturb it.
func JSONStringify(rt *goja.Runtime, v goja.Value) ([]byte, error) {
	stringify, ok := goja.AssertFunction(rt.Get("JSON").ToObject(rt).Get("stringify"))
	if !ok {
		return nil, ErrNotSerializable
	}
	out, err := stringify(goja.Undefined(), v)
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(out) {
		return nil, ErrNotSerializable
	}
	return []byte(out.String()), nil
}

// JSONParse deserializes kernel-held JSON into the sandbox.
func JSONParse(rt *goja.Runtime, raw []byte) (goja.Value, error) {
	parse, ok := goja.AssertFunction(rt.Get("JSON").ToObject(rt).Get("parse"))
	if !ok {
		return nil, ErrNotSerializable
	}
	return parse(goja.Undefined(), rt.ToValue(string(raw)))
}

func parseAddress(s string) (keys.Address, error) {
	return keys.ParseAddress(s)
}
