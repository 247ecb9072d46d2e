// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kernel

import (
	"errors"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/rift-labs/riftvm/keys"
)

// Status is an operation's terminal outcome.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failed"
}

// Receipt error codes. Stable strings: they are part of the outbox wire
// surface consumed by base-chain tooling.
const (
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeAddressMismatch     = "ADDRESS_MISMATCH"
	CodeNonceMismatch       = "NONCE_MISMATCH"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeBalanceOverflow     = "BALANCE_OVERFLOW"
	CodeFuelExhausted       = "FUEL_EXHAUSTED"
	CodeRuntimeTrap         = "RUNTIME_TRAP"
	CodeStackExhausted      = "STACK_EXHAUSTED"
	CodeStorageTypeMismatch = "STORAGE_TYPE_MISMATCH"
	CodeAddressOccupied     = "ADDRESS_OCCUPIED"
	CodeNoCode              = "NO_CODE"
	CodeCallDepthExceeded   = "CALL_DEPTH_EXCEEDED"
	CodePayloadMismatch     = "PAYLOAD_MISMATCH"
	CodeInvalidCode         = "INVALID_CODE"
	CodeNoEntrypoint        = "NO_ENTRYPOINT"
	CodeInternal            = "INTERNAL"
)

var ErrReceiptNotFound = errors.New("receipt not found")

// LogEntry is one guest log line captured into a receipt.
type LogEntry struct {
	Level   string `serialize:"true" json:"level"`
	Message string `serialize:"true" json:"message"`
}

// Receipt is the immutable record of one processed operation. It is
// created exactly once, persisted append-only and serialized into the
// outbox.
type Receipt struct {
	OpID      ids.ID     `serialize:"true" json:"opId"`
	Level     uint64     `serialize:"true" json:"level"`
	Index     uint32     `serialize:"true" json:"index"`
	Status    Status     `serialize:"true" json:"status"`
	ErrorCode string     `serialize:"true" json:"errorCode,omitempty"`
	FuelUsed  uint64     `serialize:"true" json:"fuelUsed"`
	Logs      []LogEntry `serialize:"true" json:"logs,omitempty"`
	Result    []byte     `serialize:"true" json:"result,omitempty"`

	// ContractAddress is set by successful deploys; EmptyAddress
	// otherwise.
	ContractAddress keys.Address `serialize:"true" json:"contractAddress"`
}

func (*Receipt) outboxPayload() {}

// logBuffer collects guest log lines during execution; the processor
// bakes them into the receipt afterwards. Implements host.LogSink.
type logBuffer struct {
	entries []LogEntry
}

func (b *logBuffer) AppendLog(level, message string) {
	b.entries = append(b.entries, LogEntry{Level: level, Message: message})
}
