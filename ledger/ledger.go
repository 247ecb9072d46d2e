// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger keeps account balances, nonces and contract code in the
// durable store. Accounts materialize implicitly on first write; a never
// written address reads as the zero account.
package ledger

import (
	"errors"
	"fmt"

	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/storage"
)

const accountsPrefix = "accounts"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrNonceMismatch       = errors.New("operation nonce does not match account nonce")
	ErrAddressOccupied     = errors.New("account already holds contract code")
	ErrNoCode              = errors.New("account holds no contract code")

	errWrongCodecVersion = errors.New("account record has wrong codec version")
)

// Account is the persistent state of one address. The zero value is the
// implicit default of every untouched address.
type Account struct {
	Balance uint64 `serialize:"true" json:"balance"`
	Nonce   uint64 `serialize:"true" json:"nonce"`
	Code    []byte `serialize:"true" json:"code"`
}

func (a *Account) HasCode() bool { return len(a.Code) > 0 }

func accountPath(addr keys.Address) storage.Path {
	return storage.MustPath(accountsPrefix, addr.String())
}

// GetAccount returns the stored account, or the implicit zero default.
func GetAccount(tx *storage.Transaction, addr keys.Address) (Account, error) {
	var account Account
	raw, err := tx.Get(accountPath(addr))
	if err == storage.ErrNotFound {
		return account, nil
	}
	if err != nil {
		return account, err
	}
	version, err := Codec.Unmarshal(raw, &account)
	if err != nil {
		return account, err
	}
	if version != codecVersion {
		return account, errWrongCodecVersion
	}
	return account, nil
}

func putAccount(tx *storage.Transaction, addr keys.Address, account *Account) error {
	raw, err := Codec.Marshal(codecVersion, account)
	if err != nil {
		return err
	}
	return tx.Put(accountPath(addr), raw)
}

// Balance returns the spendable balance of [addr].
func Balance(tx *storage.Transaction, addr keys.Address) (uint64, error) {
	account, err := GetAccount(tx, addr)
	return account.Balance, err
}

// Credit adds [amount] to the balance of [addr]. It fails only with
// ErrBalanceOverflow on uint64 overflow.
func Credit(tx *storage.Transaction, addr keys.Address, amount uint64) error {
	account, err := GetAccount(tx, addr)
	if err != nil {
		return err
	}
	balance, err := safemath.Add64(account.Balance, amount)
	if err != nil {
		return fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, account.Balance, amount)
	}
	account.Balance = balance
	return putAccount(tx, addr, &account)
}

// Debit removes [amount] from the balance of [addr]. It fails with
// ErrInsufficientBalance when the balance is smaller than [amount]; a
// balance can never go negative.
func Debit(tx *storage.Transaction, addr keys.Address, amount uint64) error {
	account, err := GetAccount(tx, addr)
	if err != nil {
		return err
	}
	balance, err := safemath.Sub(account.Balance, amount)
	if err != nil {
		return fmt.Errorf("%w: balance %d, debit %d", ErrInsufficientBalance, account.Balance, amount)
	}
	account.Balance = balance
	return putAccount(tx, addr, &account)
}

// Transfer moves [amount] from [from] to [to] within the scope.
func Transfer(tx *storage.Transaction, from, to keys.Address, amount uint64) error {
	if from == to {
		// Debit would succeed iff the balance covers the amount; the
		// balance itself is unchanged.
		balance, err := Balance(tx, from)
		if err != nil {
			return err
		}
		if balance < amount {
			return fmt.Errorf("%w: balance %d, debit %d", ErrInsufficientBalance, balance, amount)
		}
		return nil
	}
	if err := Debit(tx, from, amount); err != nil {
		return err
	}
	return Credit(tx, to, amount)
}

// Nonce returns the next expected operation nonce for [addr].
func Nonce(tx *storage.Transaction, addr keys.Address) (uint64, error) {
	account, err := GetAccount(tx, addr)
	return account.Nonce, err
}

// ExpectNonce fails with ErrNonceMismatch unless [nonce] is exactly the
// account's next expected value. Reuse and skip are both rejected.
func ExpectNonce(tx *storage.Transaction, addr keys.Address, nonce uint64) error {
	expected, err := Nonce(tx, addr)
	if err != nil {
		return err
	}
	if nonce != expected {
		return fmt.Errorf("%w: got %d, expected %d", ErrNonceMismatch, nonce, expected)
	}
	return nil
}

// IncrementNonce advances the account nonce by exactly one. The processor
// calls it once per signature-verified operation, before execution, in a
// scope that commits regardless of the execution outcome.
func IncrementNonce(tx *storage.Transaction, addr keys.Address) error {
	account, err := GetAccount(tx, addr)
	if err != nil {
		return err
	}
	nonce, err := safemath.Add64(account.Nonce, 1)
	if err != nil {
		return err
	}
	account.Nonce = nonce
	return putAccount(tx, addr, &account)
}

// SetCode installs contract code on [addr]. An address deploys at most
// once: re-deploying over existing code fails with ErrAddressOccupied.
func SetCode(tx *storage.Transaction, addr keys.Address, code []byte) error {
	account, err := GetAccount(tx, addr)
	if err != nil {
		return err
	}
	if account.HasCode() {
		return fmt.Errorf("%w: %s", ErrAddressOccupied, addr)
	}
	account.Code = code
	return putAccount(tx, addr, &account)
}

// Code returns the contract code installed on [addr], or ErrNoCode.
func Code(tx *storage.Transaction, addr keys.Address) ([]byte, error) {
	account, err := GetAccount(tx, addr)
	if err != nil {
		return nil, err
	}
	if !account.HasCode() {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, addr)
	}
	return account.Code, nil
}
