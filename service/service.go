// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package service exposes the kernel's read-only query surface over
// JSON-RPC. Mutation happens only through the inbox; the API never
// submits operations.
package service

import (
	"errors"
	"net/http"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/ids"
	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/rift-labs/riftvm/kernel"
	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/storage"
)

// Name is the JSON-RPC namespace the service registers under.
const Name = "riftvm"

var errNoValue = errors.New("no value at key")

// Service answers queries against committed state only: in-flight
// operation scopes are never visible here.
type Service struct {
	proc *kernel.Processor
}

// NewHTTPHandler wires the service into a JSON-RPC server.
func NewHTTPHandler(proc *kernel.Processor) (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(&Service{proc: proc}, Name)
}

type GetAccountArgs struct {
	Address string `json:"address"`
}

type GetAccountReply struct {
	Kind    string       `json:"kind"`
	Balance cjson.Uint64 `json:"balance"`
	Nonce   cjson.Uint64 `json:"nonce"`
	HasCode bool         `json:"hasCode"`
}

// GetAccount returns the committed balance, nonce and code flag of an
// address. Unknown addresses answer with the implicit zero account.
func (s *Service) GetAccount(_ *http.Request, args *GetAccountArgs, reply *GetAccountReply) error {
	addr, err := keys.ParseAddress(args.Address)
	if err != nil {
		return err
	}
	account, err := s.proc.GetAccount(addr)
	if err != nil {
		return err
	}
	reply.Kind = addr.Kind().String()
	reply.Balance = cjson.Uint64(account.Balance)
	reply.Nonce = cjson.Uint64(account.Nonce)
	reply.HasCode = account.HasCode()
	return nil
}

type GetReceiptArgs struct {
	OpID ids.ID `json:"opId"`
}

type GetReceiptByIndexArgs struct {
	Index cjson.Uint64 `json:"index"`
}

type ReceiptReply struct {
	OpID            ids.ID            `json:"opId"`
	Level           cjson.Uint64      `json:"level"`
	Index           cjson.Uint32      `json:"index"`
	Status          string            `json:"status"`
	ErrorCode       string            `json:"errorCode,omitempty"`
	FuelUsed        cjson.Uint64      `json:"fuelUsed"`
	Logs            []kernel.LogEntry `json:"logs,omitempty"`
	Result          string            `json:"result,omitempty"`
	ContractAddress string            `json:"contractAddress,omitempty"`
}

func (r *ReceiptReply) fill(receipt *kernel.Receipt) {
	r.OpID = receipt.OpID
	r.Level = cjson.Uint64(receipt.Level)
	r.Index = cjson.Uint32(receipt.Index)
	r.Status = receipt.Status.String()
	r.ErrorCode = receipt.ErrorCode
	r.FuelUsed = cjson.Uint64(receipt.FuelUsed)
	r.Logs = receipt.Logs
	r.Result = string(receipt.Result)
	if receipt.ContractAddress != keys.EmptyAddress {
		r.ContractAddress = receipt.ContractAddress.String()
	}
}

// GetReceipt returns the first receipt recorded for an operation id.
func (s *Service) GetReceipt(_ *http.Request, args *GetReceiptArgs, reply *ReceiptReply) error {
	receipt, err := s.proc.GetReceipt(args.OpID)
	if err != nil {
		return err
	}
	reply.fill(receipt)
	return nil
}

// GetReceiptByIndex returns the n-th receipt ever emitted.
func (s *Service) GetReceiptByIndex(_ *http.Request, args *GetReceiptByIndexArgs, reply *ReceiptReply) error {
	receipt, err := s.proc.GetReceiptByIndex(uint64(args.Index))
	if err != nil {
		return err
	}
	reply.fill(receipt)
	return nil
}

type GetTipReply struct {
	Level        cjson.Uint64 `json:"level"`
	ReceiptCount cjson.Uint64 `json:"receiptCount"`
}

// GetTip reports the last processed inbox level and how many receipts
// exist.
func (s *Service) GetTip(_ *http.Request, _ *struct{}, reply *GetTipReply) error {
	level, count, err := s.proc.Tip()
	if err != nil {
		return err
	}
	reply.Level = cjson.Uint64(level)
	reply.ReceiptCount = cjson.Uint64(count)
	return nil
}

type GetStorageArgs struct {
	Address string `json:"address"`
	Key     string `json:"key"`
}

type GetStorageReply struct {
	// Value is the raw JSON document at the key.
	Value string `json:"value"`
}

// GetStorage reads one committed leaf from a contract's key-value
// namespace.
func (s *Service) GetStorage(_ *http.Request, args *GetStorageArgs, reply *GetStorageReply) error {
	addr, err := keys.ParseAddress(args.Address)
	if err != nil {
		return err
	}
	value, err := s.proc.GetStorage(addr, args.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return errNoValue
	}
	if err != nil {
		return err
	}
	reply.Value = string(value)
	return nil
}
