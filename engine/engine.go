// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine adapts the embedded JavaScript engine (goja) behind a
// narrow, trap-safe boundary. The kernel marshals only JSON documents
// across it, never guest objects; traps of any kind convert into errors
// here and never escape.
package engine

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/dop251/goja"
	"github.com/inconshreveable/log15"

	"github.com/rift-labs/riftvm/host"
)

const (
	// maxCallStackSize bounds guest recursion deterministically; goja
	// converts the overflow into a catchable-at-this-boundary trap well
	// before the Go stack is at risk.
	maxCallStackSize = 2048

	programCacheSize = 256
)

var (
	ErrInvalidCode  = errors.New("contract code does not parse")
	ErrNoEntrypoint = errors.New("entrypoint is not an exported function")
)

// GuestError is an uncaught guest exception or stack exhaustion, i.e. a
// runtime trap: the operation fails, the kernel keeps running.
type GuestError struct {
	Stack   bool
	Message string
}

func (e *GuestError) Error() string {
	if e.Stack {
		return "runtime trap: stack exhausted"
	}
	return "runtime trap: " + e.Message
}

// Engine creates sandbox instances. It is stateless apart from a compiled
// program cache keyed by code hash.
type Engine struct {
	log      log15.Logger
	programs cache.Cacher[ids.ID, *goja.Program]
}

func New(log log15.Logger) *Engine {
	return &Engine{
		log:      log,
		programs: &cache.LRU[ids.ID, *goja.Program]{Size: programCacheSize},
	}
}

// Instance is one isolated sandbox bound to a host environment. It runs
// synchronously to completion or trap; there are no suspension points.
type Instance struct {
	rt  *goja.Runtime
	env *host.Env
}

// Instantiate charges instantiation fuel, compiles (or reuses) the
// program, builds a fresh runtime with the host surface registered, and
// evaluates the program's top level, which defines the contract's
// entrypoint functions as globals.
func (e *Engine) Instantiate(code []byte, env *host.Env) (*Instance, error) {
	cost := host.FuelInstantiateBase + uint64(len(code))*host.FuelPerCodeByte
	if err := env.Fuel.Consume(cost); err != nil {
		return nil, err
	}

	program, err := e.compile(code)
	if err != nil {
		return nil, err
	}

	rt := goja.New()
	rt.SetMaxCallStackSize(maxCallStackSize)
	if err := host.Register(rt, env); err != nil {
		return nil, fmt.Errorf("registering host surface: %w", err)
	}

	instance := &Instance{rt: rt, env: env}
	if _, err := instance.guarded(func() (goja.Value, error) {
		return rt.RunProgram(program)
	}); err != nil {
		return nil, err
	}
	return instance, nil
}

func (e *Engine) compile(code []byte) (*goja.Program, error) {
	codeHash := ids.ID(hashing.ComputeHash256Array(code))
	if cached, ok := e.programs.Get(codeHash); ok {
		return cached, nil
	}
	program, err := goja.Compile(codeHash.String(), string(code), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCode, err)
	}
	e.programs.Put(codeHash, program)
	return program, nil
}

// Run invokes the global function named [entrypoint] with [args] (a JSON
// document) and returns the JSON-serialized result. Two runs with
// identical code, host responses and args never diverge.
func (i *Instance) Run(entrypoint string, args []byte) ([]byte, error) {
	fn, ok := goja.AssertFunction(i.rt.GlobalObject().Get(entrypoint))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoEntrypoint, entrypoint)
	}

	argValue := goja.Value(goja.Undefined())
	if len(args) > 0 {
		var err error
		if argValue, err = host.JSONParse(i.rt, args); err != nil {
			return nil, fmt.Errorf("parsing entrypoint args: %w", err)
		}
	}

	result, err := i.guarded(func() (goja.Value, error) {
		return fn(goja.Undefined(), argValue)
	})
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(result) || goja.IsNull(result) {
		return []byte("null"), nil
	}
	return host.JSONStringify(i.rt, result)
}

// guarded runs guest code and converts every failure mode — interrupt,
// stack overflow, thrown exception, stray panic — into an error at this
// boundary. The surrounding kernel process must never die from guest code.
func (i *Instance) guarded(run func() (goja.Value, error)) (value goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &GuestError{Message: fmt.Sprintf("panic in sandbox: %v", r)}
		}
	}()

	value, err = run()
	if err != nil {
		return nil, i.trap(err)
	}
	// A guest catch block may have swallowed the thrown fuel error right
	// at the end of execution; the sticky flag still fails the run.
	if i.env.Fuel.Exhausted() {
		return nil, host.ErrFuelExhausted
	}
	return value, nil
}

func (i *Instance) trap(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		// Host aborts interrupt with the causing Go error; hand it back
		// unwrapped so the kernel can classify it.
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return &GuestError{Message: interrupted.String()}
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return &GuestError{Stack: true}
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		if i.env.Fuel.Exhausted() {
			return host.ErrFuelExhausted
		}
		// An uncaught host error thrown into the guest comes back as a
		// GoError carrying the original Go error in its value property;
		// keep the error's identity so the kernel can classify it.
		if cause := goErrorCause(exception); cause != nil {
			return cause
		}
		return &GuestError{Message: exception.String()}
	}

	return &GuestError{Message: err.Error()}
}

func goErrorCause(exception *goja.Exception) error {
	obj, ok := exception.Value().(*goja.Object)
	if !ok {
		return nil
	}
	v := obj.Get("value")
	if v == nil {
		return nil
	}
	cause, _ := v.Export().(error)
	return cause
}
