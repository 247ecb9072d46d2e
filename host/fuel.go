// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import "errors"

// ErrFuelExhausted aborts the current call chain. It is the kernel's only
// cancellation primitive; guests cannot catch it.
var ErrFuelExhausted = errors.New("fuel exhausted")

// Fuel cost schedule. Fixed base per host call plus size-proportional
// components, modeled on per-hostcall gas schedules of comparable chains.
const (
	FuelHostCallBase    uint64 = 100
	FuelPerReadByte     uint64 = 1
	FuelPerWriteByte    uint64 = 5
	FuelPerLogByte      uint64 = 1
	FuelInstantiateBase uint64 = 2_000
	FuelPerCodeByte     uint64 = 2
	FuelCallBase        uint64 = 5_000
	FuelTransfer        uint64 = 1_000
	FuelWithdraw        uint64 = 2_000
)

// Fuel is the shared metering budget of one operation and every nested
// call it makes. A single Fuel instance threads through the whole call
// chain.
type Fuel struct {
	budget    uint64
	remaining uint64
	exhausted bool
}

func NewFuel(budget uint64) *Fuel {
	return &Fuel{budget: budget, remaining: budget}
}

// Consume burns [amount] units. When the budget cannot cover the amount
// the remainder is burned too, so a failed operation always reports its
// full budget as used.
func (f *Fuel) Consume(amount uint64) error {
	if f.exhausted || amount > f.remaining {
		f.remaining = 0
		f.exhausted = true
		return ErrFuelExhausted
	}
	f.remaining -= amount
	return nil
}

func (f *Fuel) Remaining() uint64 { return f.remaining }
func (f *Fuel) Used() uint64      { return f.budget - f.remaining }

// Exhausted reports whether the budget ever failed to cover a charge. It
// stays set: an exhausted operation cannot recover, even if a guest catch
// block swallows the thrown error.
func (f *Fuel) Exhausted() bool { return f.exhausted }
